package job

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"extract/expression"
)

// Handle tracks one scheduled extraction.
type Handle struct {
	id         uuid.UUID
	expression string
	ctx        context.Context
	cancel     context.CancelFunc

	once      sync.Once
	done      chan struct{}
	variables expression.TokenList
	err       error
}

func newHandle(ctx context.Context, expr string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	return &Handle{
		id:         uuid.New(),
		expression: expr,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (h *Handle) ID() uuid.UUID {
	return h.id
}

func (h *Handle) Expression() string {
	return h.expression
}

// Cancel stops the job at its next suspension point. A cancelled job never
// reports completion. Cancelling a finished job has no effect.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the job has finished, failed or been cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the job is done or ctx ends and returns the reported
// variables.
func (h *Handle) Wait(ctx context.Context) (expression.TokenList, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.variables, h.err
	}
}

func (h *Handle) finish(variables expression.TokenList, err error) {
	h.once.Do(func() {
		if err != nil {
			variables = nil
		}
		h.variables = variables
		h.err = err
		h.cancel()
		close(h.done)
	})
}
