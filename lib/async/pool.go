// Package async provides bounded worker pool utilities.
package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/topsongs/playsim/errs"
)

// Task represents a unit of work executed by the pool workers.
type Task func(context.Context) error

// Pool defines a bounded worker pool. Submit blocks when the queue is full,
// so the queue itself acts as the backpressure mechanism for producers.
type Pool struct {
	intake     context.Context
	stopIntake context.CancelFunc
	jobs       chan job
	quit       chan struct{}
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	quitOnce  sync.Once
}

type job struct {
	ctx context.Context
	fn  Task
}

// NewPool creates a worker pool with the given concurrency and queue depth.
func NewPool(workers, queue int) (*Pool, error) {
	if workers <= 0 {
		return nil, errs.New("lib/async", errs.CodeInvalidConfig, errs.WithMessage("workers must be >0"))
	}
	if queue < 0 {
		queue = 0
	}
	intake, stopIntake := context.WithCancel(context.Background())
	p := new(Pool)
	p.intake = intake
	p.stopIntake = stopIntake
	p.jobs = make(chan job, queue)
	p.quit = make(chan struct{})
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Submit schedules the provided task for execution, blocking the caller while
// the queue is at capacity. Submitting to a closed pool is an error.
func (p *Pool) Submit(ctx context.Context, fn Task) error {
	if fn == nil {
		return errs.New("lib/async", errs.CodeInvalidConfig, errs.WithMessage("task must not be nil"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Reject before entering the select: once intake is cancelled, the
	// buffered send below could still win the race and enqueue a task no
	// worker will ever run.
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool closed"))
	}
	p.wg.Add(1)
	select {
	case <-p.intake.Done():
		p.wg.Done()
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool closed"))
	case <-ctx.Done():
		p.wg.Done()
		return fmt.Errorf("submit context: %w", ctx.Err())
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	}
}

// Depth reports the number of queued tasks awaiting a worker.
func (p *Pool) Depth() int {
	return len(p.jobs)
}

// Close stops accepting new tasks. Queued tasks are still drained by workers.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.stopIntake()
	})
}

// Shutdown stops intake and waits for queued and in-flight tasks to complete.
// If the context expires first, workers are released and the tasks still
// queued are discarded; the discarded count is returned so callers can give
// each dropped task a terminal outcome.
func (p *Pool) Shutdown(ctx context.Context) (int, error) {
	p.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.quitOnce.Do(func() { close(p.quit) })
		return 0, nil
	case <-ctx.Done():
		p.quitOnce.Do(func() { close(p.quit) })
		return p.discardQueued(), fmt.Errorf("shutdown context: %w", ctx.Err())
	}
}

// Wait blocks until every accepted task has finished or the context expires.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait context: %w", ctx.Err())
	}
}

// discardQueued empties the job queue after workers have been released,
// balancing the accepted-task accounting for each dropped job.
func (p *Pool) discardQueued() int {
	dropped := 0
	for {
		select {
		case <-p.jobs:
			p.wg.Done()
			dropped++
		default:
			return dropped
		}
	}
}

func (p *Pool) worker() {
	for {
		select {
		case <-p.quit:
			return
		case job := <-p.jobs:
			ctx := job.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			func() {
				// A panicking task must not take the worker down with it.
				defer func() { _ = recover() }()
				_ = job.fn(ctx)
			}()
			p.wg.Done()
		}
	}
}
