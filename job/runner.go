// Package job schedules expression extractions on a pool of workers.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"extract/expression"
	"extract/filter"
	"extract/progress"
)

var (
	// ErrQueueFull is returned when no more jobs can be queued.
	ErrQueueFull = errors.New("extraction queue is full")
	// ErrRunnerClosed is returned for submissions after the runner stopped.
	ErrRunnerClosed = errors.New("extraction runner is closed")
	// ErrRunnerStarted is returned when Start is called more than once.
	ErrRunnerStarted = errors.New("extraction runner already started")
)

// Options configures a Runner.
type Options struct {
	// Workers is the number of jobs processed concurrently.
	Workers int
	// QueueSize is the number of jobs that can wait for a worker.
	QueueSize int
	// Delay defers the start of every job once.
	Delay time.Duration
	// Timeout bounds a single job, measured from the moment a worker picks it up. Zero disables it.
	Timeout  time.Duration
	Scanner  *expression.Scanner
	Observer progress.Observer
	Filter   filter.Filter
	Logger   logr.Logger
	Metrics  *Metrics
}

// Runner runs extraction jobs. Every job reports ProcessCompleted to the
// observer exactly once if it completes and never if it fails or is
// cancelled.
type Runner struct {
	Options
	queue       chan *Handle
	mu          sync.RWMutex
	started     bool
	closed      bool
	workersDone sync.WaitGroup
}

func NewRunner(opts Options) *Runner {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Scanner == nil {
		opts.Scanner = expression.NewScanner()
	}
	if opts.Observer == nil {
		opts.Observer = progress.Discard
	}
	if opts.Filter == nil {
		opts.Filter = filter.None{}
	}

	return &Runner{
		Options: opts,
		queue:   make(chan *Handle, opts.QueueSize),
	}
}

// Start runs the workers and blocks until ctx is cancelled. Jobs still
// queued at that point are cancelled. A Runner can be started once.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRunnerStarted
	}
	r.started = true
	r.mu.Unlock()

	r.Logger.Info("starting extraction runner", "workers", r.Workers, "queueSize", r.QueueSize)

	for i := 0; i < r.Workers; i++ {
		r.workersDone.Add(1)
		go r.worker(ctx, i)
	}

	<-ctx.Done()
	r.Logger.Info("extraction runner shutting down")

	r.mu.Lock()
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.workersDone.Wait()

	for h := range r.queue {
		r.Metrics.dequeued(0)
		r.finish(h, time.Now(), nil, ctx.Err())
	}

	r.Logger.Info("extraction runner stopped")
	return nil
}

// StartExtraction schedules a single extraction of expr. Every call
// schedules a new job, even for an expression that is already queued. The
// job is cancelled when ctx is.
func (r *Runner) StartExtraction(ctx context.Context, expr string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRunnerClosed
	}

	h := newHandle(ctx, expr)
	select {
	case r.queue <- h:
		r.Metrics.submitted(len(r.queue))
		r.Logger.V(1).Info("enqueued extraction", "id", h.ID(), "expression", expr)
		return h, nil
	default:
		h.cancel()
		return nil, fmt.Errorf("%w: cannot enqueue %q", ErrQueueFull, expr)
	}
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.workersDone.Done()
	logger := r.Logger.WithValues("worker", id)
	logger.V(1).Info("worker started")
	defer logger.V(1).Info("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-r.queue:
			if !ok {
				return
			}
			r.Metrics.dequeued(len(r.queue))
			r.run(ctx, logger, h)
		}
	}
}

func (r *Runner) run(ctx context.Context, logger logr.Logger, h *Handle) {
	start := time.Now()
	logger = logger.WithValues("id", h.ID(), "expression", h.Expression())

	if err := ctx.Err(); err != nil {
		r.finish(h, start, nil, err)
		return
	}

	jobCtx := h.ctx
	stop := context.AfterFunc(ctx, h.cancel)
	defer stop()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, r.Timeout)
		defer cancel()
	}

	variables, err := r.extract(jobCtx, h.Expression())
	if err != nil {
		r.finish(h, start, nil, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.V(1).Info("extraction cancelled", "reason", err.Error())
		} else {
			logger.Error(err, "extraction failed")
		}
		return
	}

	r.Observer.ProcessCompleted(h.Expression(), variables)
	r.finish(h, start, variables, nil)
	logger.V(1).Info("extraction completed", "variables", len(variables), "duration", time.Since(start).Seconds())
}

func (r *Runner) extract(ctx context.Context, expr string) (expression.TokenList, error) {
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	variables, err := r.Scanner.ExtractVariables(ctx, expr, r.Observer)
	if err != nil {
		return nil, err
	}
	return r.Filter.Filter(variables)
}

func (r *Runner) finish(h *Handle, start time.Time, variables expression.TokenList, err error) {
	result := ResultCompleted
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = ResultCancelled
	case err != nil:
		result = ResultFailed
	}
	r.Metrics.finished(result, time.Since(start).Seconds())
	h.finish(variables, err)
}
