// Package engine orchestrates reference data loading, event generation,
// pacing, and dispatch into one simulation run.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/internal/dispatch"
	"github.com/topsongs/playsim/internal/event"
	"github.com/topsongs/playsim/internal/observability"
	"github.com/topsongs/playsim/internal/pacer"
	"github.com/topsongs/playsim/internal/refdata"
)

// State names one phase of the run state machine.
type State string

const (
	// StateIdle means no run has started.
	StateIdle State = "idle"
	// StateLoading means reference data is being loaded and validated.
	StateLoading State = "loading"
	// StateGenerating means events are being produced and submitted.
	StateGenerating State = "generating"
	// StateDraining means generation has stopped and in-flight dispatches are flushing.
	StateDraining State = "draining"
	// StateCompleted means the run finished normally.
	StateCompleted State = "completed"
	// StateFailed means a configuration or setup error aborted the run.
	StateFailed State = "failed"
	// StateCancelled means an external cancellation ended the run early.
	StateCancelled State = "cancelled"
)

const defaultDrainTimeout = 30 * time.Second

// RunSummary reports the accounting for one finished run.
type RunSummary struct {
	Attempted  uint64
	Succeeded  uint64
	Retried    uint64
	Failed     uint64
	StartedAt  time.Time
	FinishedAt time.Time
	Final      State
	// Partial marks summaries from cancelled runs.
	Partial bool
}

// Elapsed returns the wall-clock duration of the run.
func (s RunSummary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Engine owns the run state machine and the RunSummary for one run at a time.
type Engine struct {
	cfg     config.Settings
	logger  observability.Logger
	metrics *observability.RuntimeMetrics

	mu    sync.Mutex
	state State

	// seed fixes all random sources when non-zero; zero means time-seeded.
	seed         int64
	liveTick     time.Duration
	drainTimeout time.Duration
}

// New constructs an engine for the given settings.
func New(cfg config.Settings, logger observability.Logger, metrics *observability.RuntimeMetrics) *Engine {
	if logger == nil {
		logger = observability.Log()
	}
	if metrics == nil {
		metrics = observability.NewRuntimeMetrics()
	}
	return &Engine{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		state:        StateIdle,
		liveTick:     time.Second,
		drainTimeout: defaultDrainTimeout,
	}
}

// State returns the engine's current phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run executes one simulation run to completion, cancellation, or failure.
// Configuration and setup errors return before any event is generated, with
// no summary; otherwise the caller always receives a finalized RunSummary,
// marked partial when the run was cancelled.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	started := time.Now()

	if err := e.cfg.Validate(); err != nil {
		e.setState(StateFailed)
		return RunSummary{}, err
	}

	e.setState(StateLoading)
	refs, err := refdata.Load(e.cfg.ReferenceData.Dir, e.cfg.ReferenceData.Format)
	if err != nil {
		e.setState(StateFailed)
		return RunSummary{}, err
	}
	songs, users, locations := refs.Counts()
	e.logger.Info("reference data loaded",
		observability.F("songs", songs),
		observability.F("users", users),
		observability.F("locations", locations))

	seed := e.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	factory, err := event.NewFactory(refs, e.cfg.Devices, seed)
	if err != nil {
		e.setState(StateFailed)
		return RunSummary{}, err
	}
	dispatcher, err := dispatch.New(e.cfg.Dispatch, e.logger, e.metrics)
	if err != nil {
		e.setState(StateFailed)
		return RunSummary{}, err
	}

	e.setState(StateGenerating)
	e.logger.Info("generation started", observability.F("mode", e.cfg.Mode))

	gaugeCtx, stopGauge := context.WithCancel(context.Background())
	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		e.reportQueueDepth(gaugeCtx, dispatcher)
	})

	var genErr error
	switch e.cfg.Mode {
	case config.ModeHistorical:
		genErr = e.runHistorical(ctx, factory, dispatcher, seed)
	case config.ModeLive:
		genErr = e.runLive(ctx, factory, dispatcher)
	}
	cancelled := ctx.Err() != nil

	e.setState(StateDraining)
	e.logger.Info("draining in-flight dispatches", observability.F("queued", dispatcher.QueueDepth()))
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), e.drainTimeout)
	defer cancelDrain()
	if err := dispatcher.Drain(drainCtx); err != nil {
		e.logger.Error("drain did not finish cleanly", observability.F("error", err))
	}
	stopGauge()
	lifecycle.Wait()

	counters := dispatcher.Counters()
	summary := RunSummary{
		Attempted:  counters.Attempted,
		Succeeded:  counters.Succeeded,
		Retried:    counters.Retried,
		Failed:     counters.Failed,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	if genErr != nil && !cancelled {
		// Setup-class failure after validation; nothing partial to report.
		e.setState(StateFailed)
		return RunSummary{}, genErr
	}

	if cancelled {
		e.setState(StateCancelled)
		summary.Final = StateCancelled
		summary.Partial = true
	} else {
		e.setState(StateCompleted)
		summary.Final = StateCompleted
	}
	e.logger.Info("run finished",
		observability.F("state", summary.Final),
		observability.F("attempted", summary.Attempted),
		observability.F("succeeded", summary.Succeeded),
		observability.F("retried", summary.Retried),
		observability.F("failed", summary.Failed),
		observability.F("elapsed", summary.Elapsed()))
	return summary, nil
}

// runHistorical submits exactly the configured volume, pacing whole batches
// through the posting-rate limiter. Timestamps are drawn uniformly over the
// window and never correlate with dispatch order.
func (e *Engine) runHistorical(ctx context.Context, factory *event.Factory, dispatcher *dispatch.Dispatcher, seed int64) error {
	h := e.cfg.Historical
	schedule, err := pacer.PlanHistorical(h.Volume, h.PostingRate)
	if err != nil {
		return err
	}
	e.logger.Info("historical schedule planned",
		observability.F("batches", schedule.Batches),
		observability.F("batch_size", schedule.BatchSize),
		observability.F("interval", schedule.Interval))

	throttle := pacer.NewHistoricalPacer(h.PostingRate, schedule.BatchSize)
	rng := rand.New(rand.NewSource(seed + 1))

	for batch := 0; batch < schedule.Batches; batch++ {
		size := schedule.SizeOf(batch)
		if err := throttle.WaitN(ctx, size); err != nil {
			return err
		}
		for i := 0; i < size; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			evt := factory.Create(pacer.UniformTimestamp(rng, h.StartTime, h.EndTime))
			if err := dispatcher.Submit(ctx, evt); err != nil {
				return err
			}
		}
	}
	return nil
}

// runLive emits events at the current wall-clock time until the configured
// duration elapses (a normal completion) or the caller cancels.
func (e *Engine) runLive(ctx context.Context, factory *event.Factory, dispatcher *dispatch.Dispatcher) error {
	l := e.cfg.Live
	runCtx := ctx
	if l.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.Duration)
		defer cancel()
	}

	ticker := pacer.NewLivePacer(l.VolumePerMinute, e.liveTick)
	for {
		n, err := ticker.Next(runCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		for i := 0; i < n; i++ {
			evt := factory.Create(time.Now().UTC())
			if err := dispatcher.Submit(runCtx, evt); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
		}
	}
}

func (e *Engine) reportQueueDepth(ctx context.Context, dispatcher *dispatch.Dispatcher) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth := dispatcher.QueueDepth()
			e.metrics.RecordQueueDepth(depth)
			observability.Telemetry().SetGauge("playsim_queue_depth", float64(depth), nil)
		}
	}
}
