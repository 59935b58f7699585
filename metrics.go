package avesclient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed token exchanges.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected or failed token exchanges.
	MetricLoginFailure
	// MetricTokenCacheHit counts GetAccessToken calls served from cache.
	MetricTokenCacheHit
	// MetricRefreshSuccess counts completed token renewals.
	MetricRefreshSuccess
	// MetricRefreshFailure counts renewals that ended in forced logout.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts callers that waited on an in-flight
	// renewal instead of issuing their own.
	MetricRefreshCoalesced
	// MetricUnauthenticate counts explicit session invalidations.
	MetricUnauthenticate
	// MetricSessionRestored counts sessions revived from durable storage.
	MetricSessionRestored
	// MetricRegistrationSuccess counts created accounts.
	MetricRegistrationSuccess
	// MetricRegistrationConflict counts username-taken rejections.
	MetricRegistrationConflict
	// MetricRegistrationTokenInvalid counts invitation tokens that failed
	// to resolve.
	MetricRegistrationTokenInvalid
	// MetricPasswordResetRequest counts reset emails requested.
	MetricPasswordResetRequest
	// MetricPasswordResetConsumeSuccess counts consumed reset tokens.
	MetricPasswordResetConsumeSuccess
	// MetricPasswordResetConsumeFailure counts rejected reset tokens.
	MetricPasswordResetConsumeFailure
	// MetricPasswordChangeSuccess counts in-session password updates.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld counts updates rejected for a wrong
	// current password.
	MetricPasswordChangeInvalidOld
	// MetricTokenLatency is the GetAccessToken latency histogram.
	MetricTokenLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds enabled-gated atomic counters and an optional latency
// histogram. All operations are no-ops on a nil or disabled instance.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled
// is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricTokenLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricTokenLatency].buckets[i])
		}
		s.Histograms[MetricTokenLatency] = buckets
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
