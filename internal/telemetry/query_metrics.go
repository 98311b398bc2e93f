// Package telemetry records retrieval query metrics in memory. Nothing
// leaves the process; the CLI stats command reads the summary.
package telemetry

import (
	"sync"
	"time"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketUnder10ms  LatencyBucket = "lt_10ms"
	BucketUnder50ms  LatencyBucket = "lt_50ms"
	BucketUnder100ms LatencyBucket = "lt_100ms"
	BucketUnder500ms LatencyBucket = "lt_500ms"
	BucketSlow       LatencyBucket = "gte_500ms"
)

// latencyToBucket converts a duration to its histogram bucket.
func latencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 100:
		return BucketUnder100ms
	case ms < 500:
		return BucketUnder500ms
	default:
		return BucketSlow
	}
}

// QueryEvent is one retrieval call's worth of telemetry.
type QueryEvent struct {
	TermCount   int
	ResultCount int
	Latency     time.Duration
	Degraded    bool
	Expanded    bool
	Timestamp   time.Time
}

// DefaultCapacity bounds the retained event window.
const DefaultCapacity = 512

// QueryMetrics aggregates recent retrieval queries in a fixed-capacity
// ring. Recording is cheap enough to sit on the request path.
type QueryMetrics struct {
	mu       sync.RWMutex
	events   []QueryEvent
	head     int
	size     int
	capacity int

	total      uint64
	zeroResult uint64
	degraded   uint64
	expanded   uint64
	latency    map[LatencyBucket]uint64
}

// NewQueryMetrics creates a metrics recorder. capacity <= 0 selects
// DefaultCapacity.
func NewQueryMetrics(capacity int) *QueryMetrics {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &QueryMetrics{
		events:   make([]QueryEvent, capacity),
		capacity: capacity,
		latency:  make(map[LatencyBucket]uint64),
	}
}

// Record adds one query event. Counters are cumulative; the event ring
// keeps only the most recent window.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.head] = event
	m.head = (m.head + 1) % m.capacity
	if m.size < m.capacity {
		m.size++
	}

	m.total++
	if event.ResultCount == 0 {
		m.zeroResult++
	}
	if event.Degraded {
		m.degraded++
	}
	if event.Expanded {
		m.expanded++
	}
	m.latency[latencyToBucket(event.Latency)]++
}

// Recent returns retained events, oldest first.
func (m *QueryMetrics) Recent() []QueryEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]QueryEvent, 0, m.size)
	if m.size < m.capacity {
		out = append(out, m.events[:m.size]...)
		return out
	}
	out = append(out, m.events[m.head:]...)
	out = append(out, m.events[:m.head]...)
	return out
}

// Summary is the aggregate view of recorded queries.
type Summary struct {
	Total          uint64                   `json:"total"`
	ZeroResult     uint64                   `json:"zero_result"`
	Degraded       uint64                   `json:"degraded"`
	Expanded       uint64                   `json:"expanded"`
	ZeroResultRate float64                  `json:"zero_result_rate"`
	DegradedRate   float64                  `json:"degraded_rate"`
	AvgLatency     time.Duration            `json:"avg_latency"`
	Latency        map[LatencyBucket]uint64 `json:"latency"`
}

// Summarize returns cumulative counters plus the average latency over
// the retained window.
func (m *QueryMetrics) Summarize() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		Total:      m.total,
		ZeroResult: m.zeroResult,
		Degraded:   m.degraded,
		Expanded:   m.expanded,
		Latency:    make(map[LatencyBucket]uint64, len(m.latency)),
	}
	for bucket, n := range m.latency {
		s.Latency[bucket] = n
	}
	if m.total > 0 {
		s.ZeroResultRate = float64(m.zeroResult) / float64(m.total)
		s.DegradedRate = float64(m.degraded) / float64(m.total)
	}

	if m.size > 0 {
		var sum time.Duration
		for i := 0; i < m.size; i++ {
			sum += m.events[i].Latency
		}
		s.AvgLatency = sum / time.Duration(m.size)
	}
	return s
}

// Reset clears all counters and retained events.
func (m *QueryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.head = 0
	m.size = 0
	m.total = 0
	m.zeroResult = 0
	m.degraded = 0
	m.expanded = 0
	m.latency = make(map[LatencyBucket]uint64)
}
