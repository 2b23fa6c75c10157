package progress

import (
	"extract/expression"
)

// Event is either a ProgressUpdatedEvent or a ProcessCompletedEvent.
type Event interface {
	Expression() string
}

type ProgressUpdatedEvent struct {
	Expr    string
	Percent float64
}

func (e ProgressUpdatedEvent) Expression() string { return e.Expr }

type ProcessCompletedEvent struct {
	Expr      string
	Variables expression.TokenList
}

func (e ProcessCompletedEvent) Expression() string { return e.Expr }

// Channel is an Observer that sends every notification as an Event on C, in
// the order observed. Progress events are dropped while C is full so an
// unread channel never stalls a scan. Completion events are always
// delivered: ProcessCompleted blocks until C has room, so C must be read.
type Channel struct {
	C chan Event
}

func NewChannel(size int) *Channel {
	return &Channel{
		C: make(chan Event, size),
	}
}

func (c *Channel) ProgressUpdated(expr string, percent float64) {
	select {
	case c.C <- ProgressUpdatedEvent{Expr: expr, Percent: percent}:
	default:
	}
}

func (c *Channel) ProcessCompleted(expr string, variables expression.TokenList) {
	c.C <- ProcessCompletedEvent{Expr: expr, Variables: variables}
}
