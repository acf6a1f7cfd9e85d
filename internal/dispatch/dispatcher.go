// Package dispatch delivers generated play events to the ingestion endpoint
// through a bounded worker pool with retry, backoff, and failure accounting.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/errs"
	"github.com/topsongs/playsim/internal/event"
	"github.com/topsongs/playsim/internal/observability"
	"github.com/topsongs/playsim/lib/async"
)

const (
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	// Budget for aborted in-flight deliveries to record their outcomes after
	// a drain timeout.
	abortGrace = 5 * time.Second
)

// Counters aggregates terminal dispatch outcomes for one run. Attempted
// always equals Succeeded+Failed once the dispatcher has drained.
type Counters struct {
	Attempted uint64
	Succeeded uint64
	Retried   uint64
	Failed    uint64
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTransient
	outcomePermanent
)

// Dispatcher owns the bounded dispatch queue and its worker pool. Submit
// blocks while the queue is full, which is the system's backpressure
// mechanism against a slow downstream endpoint.
type Dispatcher struct {
	pool       *async.Pool
	client     *http.Client
	endpoint   string
	maxRetries int
	logger     observability.Logger
	metrics    *observability.RuntimeMetrics

	// lifecycle context for in-flight deliveries; independent of the run
	// context so a cancelled run still drains its queue.
	ctx    context.Context
	cancel context.CancelFunc

	attempted atomic.Uint64
	succeeded atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
}

// New constructs a dispatcher for the configured endpoint and pool sizing.
func New(cfg config.DispatchConfig, logger observability.Logger, metrics *observability.RuntimeMetrics) (*Dispatcher, error) {
	pool, err := async.NewPool(cfg.Workers, cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.Log()
	}
	if metrics == nil {
		metrics = observability.NewRuntimeMetrics()
	}

	transport := &http.Transport{
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: cfg.Workers,
		IdleConnTimeout:     90 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		pool:       pool,
		client:     &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
		endpoint:   cfg.Endpoint,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
		metrics:    metrics,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Submit enqueues one event for delivery, blocking the calling generation
// path while the queue is at capacity. The context only guards the enqueue
// wait; once accepted, the event is delivered even if ctx is cancelled.
func (d *Dispatcher) Submit(ctx context.Context, evt event.PlayEvent) error {
	err := d.pool.Submit(ctx, func(context.Context) error {
		d.deliver(evt)
		return nil
	})
	if err != nil {
		return err
	}
	d.attempted.Add(1)
	d.metrics.RecordQueueDepth(d.pool.Depth())
	return nil
}

// Drain stops intake and waits for queued and in-flight deliveries to finish.
// If the context expires first, events still queued are recorded as permanent
// failures and in-flight deliveries are aborted, so every accepted event ends
// with exactly one terminal outcome.
func (d *Dispatcher) Drain(ctx context.Context) error {
	dropped, err := d.pool.Shutdown(ctx)
	if dropped > 0 {
		d.failed.Add(uint64(dropped))
		for i := 0; i < dropped; i++ {
			d.metrics.IncrementPermanentFailures()
		}
		d.logger.Error("dropped queued events on drain timeout", observability.F("dropped", dropped))
	}
	d.cancel()
	if err != nil {
		// Aborted deliveries record their outcomes on the way out; give them
		// a moment so counters are final when the caller reads them.
		graceCtx, cancelGrace := context.WithTimeout(context.Background(), abortGrace)
		defer cancelGrace()
		if werr := d.pool.Wait(graceCtx); werr != nil {
			d.logger.Error("in-flight deliveries did not settle after drain timeout", observability.F("error", werr))
		}
	}
	d.metrics.RecordQueueDepth(0)
	return err
}

// QueueDepth reports the number of events waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return d.pool.Depth()
}

// Counters returns a snapshot of the dispatch accounting.
func (d *Dispatcher) Counters() Counters {
	return Counters{
		Attempted: d.attempted.Load(),
		Succeeded: d.succeeded.Load(),
		Retried:   d.retried.Load(),
		Failed:    d.failed.Load(),
	}
}

// deliver performs the bounded retry sequence for one event and records
// exactly one terminal counter.
func (d *Dispatcher) deliver(evt event.PlayEvent) {
	body, err := evt.Encode()
	if err != nil {
		d.failed.Add(1)
		d.metrics.IncrementPermanentFailures()
		d.logger.Error("event serialization failed", observability.F("event_id", evt.EventID), observability.F("error", err))
		return
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = retryInitialInterval
	backoffCfg.MaxInterval = retryMaxInterval

	for attempt := 0; ; attempt++ {
		result, err := d.post(body)
		switch result {
		case outcomeSuccess:
			d.succeeded.Add(1)
			return
		case outcomePermanent:
			d.failed.Add(1)
			d.metrics.IncrementPermanentFailures()
			d.logger.Error("event rejected, not retrying",
				observability.F("event_id", evt.EventID), observability.F("error", err))
			return
		case outcomeTransient:
			d.metrics.IncrementTransientFailures()
			if attempt >= d.maxRetries {
				d.failed.Add(1)
				d.metrics.IncrementPermanentFailures()
				d.logger.Error("event dropped after exhausting retries",
					observability.F("event_id", evt.EventID),
					observability.F("attempts", attempt+1),
					observability.F("error", err))
				return
			}
			d.retried.Add(1)
			d.metrics.IncrementRetries()
			d.logger.Debug("retrying event delivery",
				observability.F("event_id", evt.EventID),
				observability.F("attempt", attempt+1),
				observability.F("error", err))
			sleep := backoffCfg.NextBackOff()
			select {
			case <-d.ctx.Done():
				// Hard shutdown mid-sequence still records a terminal outcome.
				d.failed.Add(1)
				d.metrics.IncrementPermanentFailures()
				return
			case <-time.After(sleep):
			}
		}
	}
}

// post performs a single delivery attempt and classifies its outcome.
func (d *Dispatcher) post(body []byte) (outcome, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return outcomePermanent, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return outcomeTransient, errs.New("dispatch", errs.CodeNetwork, errs.WithCause(err))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return outcomeSuccess, nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return outcomeTransient, errs.New("dispatch", errs.CodeEndpoint, errs.WithHTTP(resp.StatusCode))
	default:
		return outcomePermanent, errs.New("dispatch", errs.CodeEndpoint, errs.WithHTTP(resp.StatusCode))
	}
}
