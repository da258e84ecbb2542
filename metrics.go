package goFleet

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter or histogram in [Metrics].
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricRegisterSuccess counts created users.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected for a taken handle.
	MetricRegisterDuplicate
	// MetricRegisterFailure counts registrations that failed validation or storage.
	MetricRegisterFailure
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected logins of every cause.
	MetricLoginFailure
	// MetricPasswordRehashed counts hashes upgraded during login.
	MetricPasswordRehashed
	// MetricRefreshSuccess counts completed rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rotations that ended in ErrReAuthRequired.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts rotations that lost the compare-and-revoke.
	MetricRefreshReuseDetected
	// MetricLogout counts successful logouts.
	MetricLogout
	// MetricAuthenticateSuccess counts accepted bearer tokens.
	MetricAuthenticateSuccess
	// MetricAuthenticateFailure counts rejected bearer tokens.
	MetricAuthenticateFailure
	// MetricRateLimitHit counts requests turned away with 429.
	MetricRateLimitHit
	// MetricCacheHit counts response cache hits.
	MetricCacheHit
	// MetricCacheMiss counts response cache misses.
	MetricCacheMiss
	// MetricCacheError counts degraded cache reads and writes.
	MetricCacheError
	// MetricCacheInvalidation counts Invalidate calls.
	MetricCacheInvalidation
	// MetricCacheKeysInvalidated counts entries removed by invalidation.
	MetricCacheKeysInvalidated
	// MetricBroadcastPublished counts published events.
	MetricBroadcastPublished
	// MetricBroadcastDelivered counts successful per-connection deliveries.
	MetricBroadcastDelivered
	// MetricBroadcastDropped counts deliveries skipped for closed or full channels.
	MetricBroadcastDropped
	// MetricRealtimeConnected counts accepted websocket handshakes.
	MetricRealtimeConnected
	// MetricRealtimeRejected counts handshakes closed with 1008.
	MetricRealtimeRejected
	// MetricAuthenticateLatency is the Authenticate latency histogram.
	MetricAuthenticateLatency
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

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil *Metrics is valid and records nothing, so components may hold one
// unconditionally.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a recorder for cfg. Latency is only recorded when
// counters are enabled too.
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

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only
// MetricAuthenticateLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthenticateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
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
