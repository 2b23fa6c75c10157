package progress_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extract/expression"
	"extract/progress"
)

var variables = expression.TokenList{
	{Kind: expression.KindVariable, Text: "x", Start: 0, End: 1},
	{Kind: expression.KindVariable, Text: "y", Start: 2, End: 3},
}

func TestChannel_KeepsOrder(t *testing.T) {
	ch := progress.NewChannel(4)
	ch.ProgressUpdated("x+y", 0)
	ch.ProgressUpdated("x+y", 100)
	ch.ProcessCompleted("x+y", variables)

	assert.Equal(t, progress.ProgressUpdatedEvent{Expr: "x+y", Percent: 0}, <-ch.C)
	assert.Equal(t, progress.ProgressUpdatedEvent{Expr: "x+y", Percent: 100}, <-ch.C)

	event := <-ch.C
	completed, ok := event.(progress.ProcessCompletedEvent)
	require.True(t, ok, "got %T", event)
	assert.Equal(t, "x+y", completed.Expression())
	assert.Equal(t, variables, completed.Variables)
}

func TestMulti(t *testing.T) {
	var calls []string
	record := func(name string) progress.Observer {
		return progress.Funcs{
			OnProgressUpdated: func(expr string, percent float64) {
				calls = append(calls, fmt.Sprintf("%s:%s:%v", name, expr, percent))
			},
			OnProcessCompleted: func(expr string, vars expression.TokenList) {
				calls = append(calls, fmt.Sprintf("%s:%s:%d", name, expr, len(vars)))
			},
		}
	}

	m := progress.Multi{record("a"), record("b"), progress.Discard}
	m.ProgressUpdated("e", 50)
	m.ProcessCompleted("e", variables)

	assert.Equal(t, []string{"a:e:50", "b:e:50", "a:e:2", "b:e:2"}, calls)
}

func TestGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	g, err := progress.NewGauge(reg)
	require.NoError(t, err)

	g.ProgressUpdated("x+y", 25)
	g.ProgressUpdated("x+y", 75)
	g.ProcessCompleted("x+y", variables)

	expected := `
# HELP expression_extraction_progress_percent Progress of the latest extraction of an expression in percent.
# TYPE expression_extraction_progress_percent gauge
expression_extraction_progress_percent{expression="x+y"} 75
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "expression_extraction_progress_percent"))

	_, err = progress.NewGauge(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestLogger(t *testing.T) {
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	l := progress.NewLogger(logger)
	l.ProgressUpdated("x+y", 50)
	l.ProcessCompleted("x+y", variables)

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"percent"=50`)
	assert.Contains(t, lines[1], `"variables"=["x","y"]`)
}

func TestChannel_DropsProgressWhenFull(t *testing.T) {
	ch := progress.NewChannel(1)
	ch.ProgressUpdated("x", 0)
	ch.ProgressUpdated("x", 50)

	assert.Equal(t, progress.ProgressUpdatedEvent{Expr: "x", Percent: 0}, <-ch.C)
	assert.Empty(t, ch.C)

	ch.ProcessCompleted("x", variables)
	assert.IsType(t, progress.ProcessCompletedEvent{}, <-ch.C)
}
