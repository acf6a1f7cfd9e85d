// Package pacer computes dispatch pacing for historical and live runs.
package pacer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/topsongs/playsim/errs"
)

// Schedule describes the batch layout for a bounded historical run: how many
// batches to dispatch and the delay between them so that aggregate throughput
// approximates the target posting rate.
type Schedule struct {
	Batches   int
	BatchSize int
	Interval  time.Duration

	volume int
}

// PlanHistorical derives a batch schedule for the given total volume and
// target aggregate posting rate in events per second.
func PlanHistorical(volume int, ratePerSec float64) (Schedule, error) {
	if volume <= 0 {
		return Schedule{}, errs.New("pacer", errs.CodeInvalidConfig, errs.WithMessage("volume must be >0"))
	}
	if ratePerSec <= 0 {
		return Schedule{}, errs.New("pacer", errs.CodeInvalidConfig, errs.WithMessage("posting rate must be >0"))
	}

	batchSize := 1
	if ratePerSec >= 1 {
		batchSize = int(math.Round(ratePerSec))
	}
	if batchSize > volume {
		batchSize = volume
	}
	interval := time.Duration(float64(batchSize) / ratePerSec * float64(time.Second))
	batches := (volume + batchSize - 1) / batchSize

	return Schedule{
		Batches:   batches,
		BatchSize: batchSize,
		Interval:  interval,
		volume:    volume,
	}, nil
}

// SizeOf returns the number of events in the given batch index; the final
// batch absorbs the remainder so the schedule totals exactly the volume.
func (s Schedule) SizeOf(batch int) int {
	if batch < 0 || batch >= s.Batches {
		return 0
	}
	if batch == s.Batches-1 {
		return s.volume - (s.Batches-1)*s.BatchSize
	}
	return s.BatchSize
}

// Volume reports the total event count the schedule covers.
func (s Schedule) Volume() int {
	return s.volume
}

// HistoricalPacer throttles batch submission to the target aggregate rate.
type HistoricalPacer struct {
	limiter *rate.Limiter
}

// NewHistoricalPacer builds a token-bucket pacer for the posting rate, with
// burst sized to one batch so whole batches clear the limiter together.
func NewHistoricalPacer(ratePerSec float64, burst int) *HistoricalPacer {
	if burst < 1 {
		burst = 1
	}
	return &HistoricalPacer{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// WaitN blocks until n events may be dispatched or the context is cancelled.
func (p *HistoricalPacer) WaitN(ctx context.Context, n int) error {
	if err := p.limiter.WaitN(ctx, n); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}

// UniformTimestamp draws a uniform timestamp in [start, end). Timestamp
// assignment is independent of dispatch pacing: dispatch speed controls load
// on the downstream system, not the distribution of simulated history.
func UniformTimestamp(rng *rand.Rand, start, end time.Time) time.Time {
	span := end.Sub(start)
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(rng.Int63n(int64(span))))
}

// LivePacer computes per-tick emission counts for live mode. Each tick it
// measures actual elapsed time and emits however many events are needed to
// track the target rate, so scheduling drift corrects itself instead of
// accumulating.
type LivePacer struct {
	perSecond float64
	tick      time.Duration
	now       func() time.Time
	start     time.Time
	emitted   int64
}

// NewLivePacer builds a pacer targeting volumePerMinute, waking at the given
// tick interval.
func NewLivePacer(volumePerMinute int, tick time.Duration) *LivePacer {
	if tick <= 0 {
		tick = time.Second
	}
	return &LivePacer{
		perSecond: float64(volumePerMinute) / 60.0,
		tick:      tick,
		now:       time.Now,
	}
}

// Next blocks until the next tick and returns the number of events to emit
// for it. It returns the context error when cancelled.
func (p *LivePacer) Next(ctx context.Context) (int, error) {
	if p.start.IsZero() {
		p.start = p.now()
	}

	timer := time.NewTimer(p.tick)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	elapsed := p.now().Sub(p.start)
	expected := int64(elapsed.Seconds() * p.perSecond)
	n := expected - p.emitted
	if n < 0 {
		n = 0
	}
	p.emitted += n
	return int(n), nil
}
