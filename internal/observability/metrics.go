package observability

import "sync"

// Metrics records the simulator's counters, gauges, and histograms for
// export; lib/telemetry provides the OTLP-backed implementation.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics installs the process-global metrics collector; nil restores the noop.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the process-global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string)       {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}

// DispatchMetricsSnapshot captures dispatcher-focused runtime counters.
type DispatchMetricsSnapshot struct {
	QueueDepth     int   `json:"queue_depth"`
	Retries        int64 `json:"retries"`
	TransientFails int64 `json:"transient_failures"`
	PermanentFails int64 `json:"permanent_failures"`
}

// RuntimeMetrics accumulates dispatcher metrics in-memory for periodic export.
type RuntimeMetrics struct {
	mu       sync.Mutex
	dispatch DispatchMetricsSnapshot
}

// NewRuntimeMetrics constructs an empty metrics accumulator.
func NewRuntimeMetrics() *RuntimeMetrics {
	return new(RuntimeMetrics)
}

// RecordQueueDepth tracks the latest dispatch queue depth.
func (m *RuntimeMetrics) RecordQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch.QueueDepth = depth
}

// IncrementRetries counts one delivery retry attempt.
func (m *RuntimeMetrics) IncrementRetries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch.Retries++
}

// IncrementTransientFailures counts one transient delivery failure.
func (m *RuntimeMetrics) IncrementTransientFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch.TransientFails++
}

// IncrementPermanentFailures counts one permanent delivery failure.
func (m *RuntimeMetrics) IncrementPermanentFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch.PermanentFails++
}

// Snapshot copies the current dispatcher metrics state for reporting.
func (m *RuntimeMetrics) Snapshot() DispatchMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatch
}
