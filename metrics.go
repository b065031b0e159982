package authsdk

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter in the in-process metrics system. The
// request-latency histogram has no ID; [Metrics.Observe] feeds it directly.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshCollapsed counts Refresh callers that attached to an
	// in-flight exchange instead of starting one.
	MetricRefreshCollapsed
	MetricRequestRetried
	MetricOTPSent
	MetricOTPResent
	MetricOTPVerified
	MetricOTPInvalid
	MetricOTPExpired
	MetricOTPAttemptsExceeded
	MetricPasswordChanged
	MetricStorageDegraded
	MetricLogout
	MetricSessionInvalidated
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line so concurrent
// increments of different metrics do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and an optional request-latency histogram.
// A nil or disabled Metrics is valid; every method degrades to a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
	latency  metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
	Latency  []uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one request round-trip duration.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	atomic.AddUint64(&m.latency.buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
		Latency:  make([]uint64, histBucketCount),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	for i := 0; i < histBucketCount; i++ {
		s.Latency[i] = atomic.LoadUint64(&m.latency.buckets[i])
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
