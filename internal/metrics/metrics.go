package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricTokenIssued
	MetricValidateSuccess
	MetricTokenMalformed
	MetricTokenInvalidSignature
	MetricTokenExpired
	MetricPrincipalNotFound
	MetricStoreUnavailable
	MetricGateRejected
	MetricGateForbidden
	MetricAuditDropped
	MetricValidateLatency
	MetricIDCount
)

const (
	// HistBucketCount is the number of latency buckets, the last being +Inf.
	HistBucketCount = 8
	cacheLineSize   = 64
)

// bucketUpper holds the inclusive upper bound of every finite bucket.
var bucketUpper = [HistBucketCount - 1]time.Duration{
	100 * time.Microsecond,
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
	100 * time.Millisecond,
}

// Config toggles collection.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// slot keeps each counter on its own cache line so hot counters do not
// contend.
type slot struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and an optional authenticate-latency
// histogram. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]slot
	latency       [HistBucketCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all metrics. Both maps are empty when
// collection is disabled.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricIDCount || id == MetricValidateLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d. MetricValidateLatency is the only histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.latency[BucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := range MetricIDCount {
		if id != MetricValidateLatency {
			s.Counters[id] = m.counters[id].Load()
		}
	}
	if m.enableLatency {
		buckets := make([]uint64, HistBucketCount)
		for i := range m.latency {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

// BucketIndex maps a latency to its histogram bucket.
func BucketIndex(d time.Duration) int {
	for i, upper := range bucketUpper {
		if d <= upper {
			return i
		}
	}
	return HistBucketCount - 1
}
