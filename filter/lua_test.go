package filter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extract/expression"
	"extract/filter"
)

var variables = expression.TokenList{
	{Kind: expression.KindVariable, Text: "x", Start: 0, End: 1},
	{Kind: expression.KindVariable, Text: "pi", Start: 2, End: 4},
	{Kind: expression.KindVariable, Text: "_tmp", Start: 5, End: 9},
}

func names(tokens expression.TokenList) []string {
	var out []string
	for _, t := range tokens {
		out = append(out, t.Text)
	}
	return out
}

const script = `
reserved = { pi = true, e = true }

function keep(name, first, last)
  if reserved[name] then
    return false
  end
  return string.sub(name, 1, 1) ~= "_"
end

function after(name, first, last)
  return first >= 2
end

function broken(name)
  error("boom")
end
`

func TestLua_Filter(t *testing.T) {
	f, err := filter.NewLua(script, "")
	require.NoError(t, err)

	kept, err := f.Filter(variables)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names(kept))
}

func TestLua_Offsets(t *testing.T) {
	f, err := filter.NewLua(script, "after")
	require.NoError(t, err)

	kept, err := f.Filter(variables)
	require.NoError(t, err)
	assert.Equal(t, []string{"pi", "_tmp"}, names(kept))
}

func TestLua_Errors(t *testing.T) {
	_, err := filter.NewLua(script, "missing")
	assert.ErrorIs(t, err, filter.ErrNoFunction)

	_, err = filter.NewLua("this is not lua", "")
	assert.Error(t, err)

	f, err := filter.NewLua(script, "broken")
	require.NoError(t, err)
	_, err = f.Filter(variables)
	assert.Error(t, err)

	// the state stays usable after a failed call
	_, err = f.Filter(nil)
	assert.NoError(t, err)
}

func TestLoadLua(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.lua")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	f, err := filter.LoadLua(path, "keep")
	require.NoError(t, err)

	kept, err := f.Filter(variables)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names(kept))

	_, err = filter.LoadLua(filepath.Join(t.TempDir(), "missing.lua"), "keep")
	assert.Error(t, err)
}

func TestNone(t *testing.T) {
	kept, err := filter.None{}.Filter(variables)
	require.NoError(t, err)
	assert.Equal(t, variables, kept)
}
