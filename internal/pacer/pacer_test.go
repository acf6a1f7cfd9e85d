package pacer

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestPlanHistoricalTotalsExactVolume(t *testing.T) {
	cases := []struct {
		name   string
		volume int
		rate   float64
	}{
		{"even split", 600, 10},
		{"remainder batch", 605, 10},
		{"sub unit rate", 5, 0.5},
		{"volume below rate", 5, 100},
		{"single event", 1, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := PlanHistorical(tc.volume, tc.rate)
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			total := 0
			for i := 0; i < s.Batches; i++ {
				size := s.SizeOf(i)
				if size <= 0 {
					t.Fatalf("batch %d has size %d", i, size)
				}
				total += size
			}
			if total != tc.volume {
				t.Fatalf("schedule totals %d, want %d", total, tc.volume)
			}
		})
	}
}

func TestPlanHistoricalApproximatesRate(t *testing.T) {
	s, err := PlanHistorical(600, 10)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if s.BatchSize != 10 {
		t.Fatalf("expected batch size 10, got %d", s.BatchSize)
	}
	if s.Batches != 60 {
		t.Fatalf("expected 60 batches, got %d", s.Batches)
	}
	implied := float64(s.BatchSize) / s.Interval.Seconds()
	if math.Abs(implied-10) > 1 {
		t.Fatalf("implied rate %.2f outside ±10%% of target 10", implied)
	}
}

func TestPlanHistoricalSubUnitRateStretchesInterval(t *testing.T) {
	s, err := PlanHistorical(5, 0.5)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if s.BatchSize != 1 {
		t.Fatalf("expected batch size 1, got %d", s.BatchSize)
	}
	if s.Interval != 2*time.Second {
		t.Fatalf("expected 2s interval, got %v", s.Interval)
	}
}

func TestPlanHistoricalRejectsBadInput(t *testing.T) {
	if _, err := PlanHistorical(0, 10); err == nil {
		t.Fatalf("expected error for zero volume")
	}
	if _, err := PlanHistorical(10, 0); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestHistoricalPacerThrottlesAggregateRate(t *testing.T) {
	// 100 events/sec, batches of 10: 30 events should take roughly 200ms
	// after the initial burst clears.
	p := NewHistoricalPacer(100, 10)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.WaitN(ctx, 10); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 150*time.Millisecond {
		t.Fatalf("pacer admitted 30 events in %v, faster than target rate allows", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("pacer took %v, far slower than target rate", elapsed)
	}
}

func TestHistoricalPacerHonorsCancellation(t *testing.T) {
	p := NewHistoricalPacer(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.WaitN(ctx, 1); err != nil {
		t.Fatalf("first wait should pass on burst: %v", err)
	}
	if err := p.WaitN(ctx, 1); err == nil {
		t.Fatalf("expected cancellation error while throttled")
	}
}

func TestUniformTimestampStaysWithinWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	for i := 0; i < 1000; i++ {
		ts := UniformTimestamp(rng, start, end)
		if ts.Before(start) || !ts.Before(end) {
			t.Fatalf("timestamp %v outside [%v, %v)", ts, start, end)
		}
	}
}

func TestUniformTimestampDegenerateWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	at := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := UniformTimestamp(rng, at, at); !got.Equal(at) {
		t.Fatalf("expected start for empty window, got %v", got)
	}
}

func TestLivePacerTracksTargetRate(t *testing.T) {
	p := NewLivePacer(120, time.Millisecond) // 2 events/sec
	clock := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }
	p.start = clock

	ctx := context.Background()
	total := 0
	for i := 0; i < 4; i++ {
		clock = clock.Add(500 * time.Millisecond)
		n, err := p.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		total += n
	}
	// 2 seconds at 2 events/sec.
	if total != 4 {
		t.Fatalf("expected 4 events over 2s, got %d", total)
	}
}

func TestLivePacerCorrectsForDrift(t *testing.T) {
	p := NewLivePacer(600, time.Millisecond) // 10 events/sec
	clock := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }
	p.start = clock

	ctx := context.Background()
	// First tick runs late by 900ms: the pacer must catch up rather than
	// assume exact tick spacing.
	clock = clock.Add(1900 * time.Millisecond)
	n, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 19 {
		t.Fatalf("expected 19 catch-up events, got %d", n)
	}

	clock = clock.Add(100 * time.Millisecond)
	n, err = p.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event after catch-up, got %d", n)
	}
}

func TestLivePacerHonorsCancellation(t *testing.T) {
	p := NewLivePacer(60, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Next(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
