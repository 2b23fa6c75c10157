package progress

import (
	"github.com/go-logr/logr"

	"extract/expression"
)

// Logger writes notifications to a logr.Logger. Progress is logged at V(1).
type Logger struct {
	logr.Logger
}

func NewLogger(logger logr.Logger) *Logger {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Logger{Logger: logger}
}

func (l *Logger) ProgressUpdated(expr string, percent float64) {
	l.V(1).Info("progress updated", "expression", expr, "percent", percent)
}

func (l *Logger) ProcessCompleted(expr string, variables expression.TokenList) {
	names := make([]string, 0, len(variables))
	for _, v := range variables {
		names = append(names, v.Text)
	}
	l.Info("process completed", "expression", expr, "variables", names)
}
