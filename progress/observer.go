// Package progress delivers progress and completion notifications of
// expression extraction jobs.
package progress

import (
	"extract/expression"
)

// Observer receives the notifications of extraction jobs. ProgressUpdated
// is called repeatedly with non-decreasing percentages during a scan,
// ProcessCompleted at most once per job and only for completed jobs.
type Observer interface {
	expression.ProgressReporter
	ProcessCompleted(expression string, variables expression.TokenList)
}

// Funcs adapts plain functions to an Observer. Nil functions are skipped.
type Funcs struct {
	OnProgressUpdated  func(expression string, percent float64)
	OnProcessCompleted func(expression string, variables expression.TokenList)
}

func (f Funcs) ProgressUpdated(expr string, percent float64) {
	if f.OnProgressUpdated != nil {
		f.OnProgressUpdated(expr, percent)
	}
}

func (f Funcs) ProcessCompleted(expr string, variables expression.TokenList) {
	if f.OnProcessCompleted != nil {
		f.OnProcessCompleted(expr, variables)
	}
}

// Multi fans notifications out to every observer in order.
type Multi []Observer

func (m Multi) ProgressUpdated(expr string, percent float64) {
	for _, o := range m {
		o.ProgressUpdated(expr, percent)
	}
}

func (m Multi) ProcessCompleted(expr string, variables expression.TokenList) {
	for _, o := range m {
		o.ProcessCompleted(expr, variables)
	}
}

// Discard ignores all notifications.
var Discard Observer = Funcs{}
