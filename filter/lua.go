// Package filter narrows the variables of an extraction before completion is
// reported.
package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"

	"extract/expression"
)

const DefaultFunction = "keep"

var ErrNoFunction = errors.New("lua filter function not defined")

// Filter decides which variables of an expression are reported.
type Filter interface {
	Filter(variables expression.TokenList) (expression.TokenList, error)
}

// None keeps every variable.
type None struct{}

func (None) Filter(variables expression.TokenList) (expression.TokenList, error) {
	return variables, nil
}

// Lua keeps the variables for which a Lua function returns true. The
// function is called as fn(name, start, end).
type Lua struct {
	mu    sync.Mutex
	state *lua.State
	fn    string
}

// NewLua runs script and uses its global function fn as predicate.
func NewLua(script string, fn string) (*Lua, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	if err := lua.DoString(l, script); err != nil {
		return nil, fmt.Errorf("load lua filter: %w", err)
	}
	return newLua(l, fn)
}

// LoadLua runs the script file at path and uses its global function fn as
// predicate.
func LoadLua(path string, fn string) (*Lua, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	if err := lua.DoFile(l, path); err != nil {
		return nil, fmt.Errorf("load lua filter %v: %w", path, err)
	}
	return newLua(l, fn)
}

func newLua(l *lua.State, fn string) (*Lua, error) {
	if fn == "" {
		fn = DefaultFunction
	}

	l.Global(fn)
	defined := l.IsFunction(-1)
	l.Pop(1)
	if !defined {
		return nil, fmt.Errorf("%w: %v", ErrNoFunction, fn)
	}

	return &Lua{state: l, fn: fn}, nil
}

// Keep calls the predicate for a single variable.
func (f *Lua) Keep(variable expression.Token) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.Global(f.fn)
	f.state.PushString(variable.Text)
	f.state.PushInteger(variable.Start)
	f.state.PushInteger(variable.End)
	if err := f.state.ProtectedCall(3, 1, 0); err != nil {
		f.state.SetTop(0)
		return false, fmt.Errorf("lua filter %v(%q): %w", f.fn, variable.Text, err)
	}
	keep := f.state.ToBoolean(-1)
	// empty stack
	f.state.SetTop(0)
	return keep, nil
}

func (f *Lua) Filter(variables expression.TokenList) (expression.TokenList, error) {
	var kept expression.TokenList
	for _, v := range variables {
		keep, err := f.Keep(v)
		if err != nil {
			return nil, err
		}
		if keep {
			kept = append(kept, v)
		}
	}
	return kept, nil
}
