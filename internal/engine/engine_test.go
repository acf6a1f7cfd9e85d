package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	json "github.com/goccy/go-json"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/errs"
	"github.com/topsongs/playsim/internal/event"
	"github.com/topsongs/playsim/internal/refdata"
)

type capturingEndpoint struct {
	mu     sync.Mutex
	events []event.PlayEvent
	delay  time.Duration
	server *httptest.Server
}

func newCapturingEndpoint(t *testing.T, delay time.Duration) *capturingEndpoint {
	t.Helper()
	c := &capturingEndpoint{delay: delay}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.delay > 0 {
			time.Sleep(c.delay)
		}
		var evt event.PlayEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.events = append(c.events, evt)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *capturingEndpoint) received() []event.PlayEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.PlayEvent, len(c.events))
	copy(out, c.events)
	return out
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	faker := gofakeit.New(21)
	err := refdata.WriteAll(dir, config.FormatCSV,
		refdata.GenerateSongs(50, faker),
		refdata.GenerateUsers(200, faker),
		refdata.GenerateLocations(10, faker))
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return dir
}

func baseSettings(t *testing.T, endpoint string) config.Settings {
	cfg := config.Default()
	cfg.ReferenceData.Dir = fixtureDir(t)
	cfg.Dispatch.Endpoint = endpoint
	cfg.Dispatch.Workers = 4
	cfg.Dispatch.QueueCapacity = 64
	cfg.Dispatch.RequestTimeout = 2 * time.Second
	return cfg
}

func TestHistoricalRunDeliversExactVolumeWithinWindow(t *testing.T) {
	endpoint := newCapturingEndpoint(t, 0)
	cfg := baseSettings(t, endpoint.server.URL)
	cfg.Mode = config.ModeHistorical
	cfg.Historical.StartTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Historical.EndTime = time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)
	cfg.Historical.Volume = 120
	cfg.Historical.PostingRate = 5000 // effectively unthrottled

	e := New(cfg, nil, nil)
	e.seed = 17
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Final != StateCompleted {
		t.Fatalf("expected completed state, got %s", summary.Final)
	}
	if e.State() != StateCompleted {
		t.Fatalf("engine state %s after run", e.State())
	}
	if summary.Attempted != 120 || summary.Succeeded != 120 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	events := endpoint.received()
	if len(events) != 120 {
		t.Fatalf("endpoint received %d events, want 120", len(events))
	}
	for _, evt := range events {
		if evt.PlayedAt.Before(cfg.Historical.StartTime) || !evt.PlayedAt.Before(cfg.Historical.EndTime) {
			t.Fatalf("played_at %v outside configured window", evt.PlayedAt)
		}
		if evt.EventID == "" || evt.SongID == "" || evt.UserID == "" || evt.LocationID == "" {
			t.Fatalf("event has empty identifiers: %+v", evt)
		}
	}
}

func TestHistoricalRunApproximatesPostingRate(t *testing.T) {
	endpoint := newCapturingEndpoint(t, 0)
	cfg := baseSettings(t, endpoint.server.URL)
	cfg.Mode = config.ModeHistorical
	cfg.Historical.StartTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Historical.EndTime = time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)
	cfg.Historical.Volume = 30
	cfg.Historical.PostingRate = 10

	e := New(cfg, nil, nil)
	e.seed = 3
	start := time.Now()
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	elapsed := time.Since(start)
	if summary.Succeeded != 30 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// 3 batches of 10 at 10 events/sec: the first clears on the burst, the
	// remaining two wait ~1s each.
	if elapsed < 1800*time.Millisecond {
		t.Fatalf("run finished in %v, faster than the posting rate allows", elapsed)
	}
	if elapsed > 4*time.Second {
		t.Fatalf("run took %v, far slower than the posting rate", elapsed)
	}
}

func TestMissingReferenceDataFailsFast(t *testing.T) {
	endpoint := newCapturingEndpoint(t, 0)
	cfg := baseSettings(t, endpoint.server.URL)
	cfg.ReferenceData.Dir = t.TempDir() // no collections
	cfg.Mode = config.ModeHistorical
	cfg.Historical.StartTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Historical.EndTime = time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)

	e := New(cfg, nil, nil)
	_, err := e.Run(context.Background())
	if err == nil {
		t.Fatalf("expected missing data error")
	}
	if !errs.HasCode(err, errs.CodeMissingData) {
		t.Fatalf("expected missing_data code, got %v", err)
	}
	if e.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", e.State())
	}
	if got := len(endpoint.received()); got != 0 {
		t.Fatalf("expected zero events, endpoint saw %d", got)
	}
}

func TestInvalidConfigFailsBeforeLoading(t *testing.T) {
	cfg := baseSettings(t, "http://localhost:0")
	cfg.Mode = config.ModeHistorical
	cfg.Historical.Volume = -1

	e := New(cfg, nil, nil)
	_, err := e.Run(context.Background())
	if err == nil {
		t.Fatalf("expected config error")
	}
	if !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config code, got %v", err)
	}
	if e.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", e.State())
	}
}

func TestCancellationProducesConsistentPartialSummary(t *testing.T) {
	endpoint := newCapturingEndpoint(t, 5*time.Millisecond)
	cfg := baseSettings(t, endpoint.server.URL)
	cfg.Mode = config.ModeHistorical
	cfg.Historical.StartTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Historical.EndTime = time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)
	cfg.Historical.Volume = 5000
	cfg.Historical.PostingRate = 5000
	cfg.Dispatch.Workers = 2
	cfg.Dispatch.QueueCapacity = 8

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	e := New(cfg, nil, nil)
	e.seed = 5
	summary, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("cancelled run must still return a summary: %v", err)
	}
	if summary.Final != StateCancelled || !summary.Partial {
		t.Fatalf("expected partial cancelled summary: %+v", summary)
	}
	if summary.Attempted >= 5000 {
		t.Fatalf("expected cancellation before full volume, attempted=%d", summary.Attempted)
	}
	if summary.Succeeded+summary.Failed != summary.Attempted {
		t.Fatalf("accounting invariant violated: %+v", summary)
	}
	// Draining flushed everything that was accepted.
	if got := uint64(len(endpoint.received())); got != summary.Succeeded {
		t.Fatalf("endpoint saw %d events, summary says %d succeeded", got, summary.Succeeded)
	}
}

func TestDrainTimeoutKeepsSummaryConsistent(t *testing.T) {
	stall := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-stall:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(stall)

	cfg := config.Default()
	cfg.ReferenceData.Dir = fixtureDir(t)
	cfg.Mode = config.ModeHistorical
	cfg.Historical.StartTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Historical.EndTime = time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)
	cfg.Historical.Volume = 40
	cfg.Historical.PostingRate = 5000
	cfg.Dispatch.Endpoint = server.URL
	cfg.Dispatch.Workers = 2
	cfg.Dispatch.QueueCapacity = 8
	cfg.Dispatch.MaxRetries = 0
	cfg.Dispatch.RequestTimeout = 10 * time.Second

	e := New(cfg, nil, nil)
	e.seed = 11
	e.drainTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	summary, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("cancelled run must still return a summary: %v", err)
	}
	if summary.Final != StateCancelled || !summary.Partial {
		t.Fatalf("expected partial cancelled summary: %+v", summary)
	}
	if summary.Attempted == 0 {
		t.Fatalf("expected events to be accepted before cancellation")
	}
	// Even when draining gives up on a stalled endpoint, every accepted
	// event must end in exactly one terminal counter.
	if summary.Succeeded+summary.Failed != summary.Attempted {
		t.Fatalf("accounting invariant violated: %+v", summary)
	}
}

func TestLiveRunCompletesWithinDuration(t *testing.T) {
	endpoint := newCapturingEndpoint(t, 0)
	cfg := baseSettings(t, endpoint.server.URL)
	cfg.Mode = config.ModeLive
	cfg.Live.VolumePerMinute = 6000 // 100/sec
	cfg.Live.Duration = 300 * time.Millisecond

	e := New(cfg, nil, nil)
	e.seed = 9
	e.liveTick = 10 * time.Millisecond

	start := time.Now()
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("live run took %v, expected to end shortly after the 300ms duration", elapsed)
	}
	if summary.Final != StateCompleted {
		t.Fatalf("duration expiry is a normal completion, got %s", summary.Final)
	}
	if summary.Attempted == 0 {
		t.Fatalf("expected events to be generated")
	}
	if summary.Succeeded+summary.Failed != summary.Attempted {
		t.Fatalf("accounting invariant violated: %+v", summary)
	}

	// Live events carry wall-clock timestamps, never backdated.
	for _, evt := range endpoint.received() {
		if evt.PlayedAt.Before(start.Add(-time.Second)) {
			t.Fatalf("live event backdated: %v", evt.PlayedAt)
		}
	}
}

func TestLiveRunHonorsExternalCancellation(t *testing.T) {
	endpoint := newCapturingEndpoint(t, 0)
	cfg := baseSettings(t, endpoint.server.URL)
	cfg.Mode = config.ModeLive
	cfg.Live.VolumePerMinute = 6000
	cfg.Live.Duration = 0 // unbounded

	e := New(cfg, nil, nil)
	e.liveTick = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	summary, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("cancelled run must still return a summary: %v", err)
	}
	if summary.Final != StateCancelled || !summary.Partial {
		t.Fatalf("expected partial cancelled summary: %+v", summary)
	}
	if summary.Succeeded+summary.Failed != summary.Attempted {
		t.Fatalf("accounting invariant violated: %+v", summary)
	}
}
