// Package telemetry collects local query metrics for search evaluation.
// All data stays in memory - nothing is reported externally.
package telemetry

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one recorded search.
type QueryEvent struct {
	Query          string
	QueryType      string
	ResultCount    int
	Latency        time.Duration
	BackendElapsed map[string]time.Duration
	BackendFailed  map[string]bool
	Degraded       bool
	Timestamp      time.Time
}

// IsZeroResult reports whether the query returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// BackendStats aggregates one backend's behavior across queries.
type BackendStats struct {
	Attempts     int64         `json:"attempts"`
	Failures     int64         `json:"failures"`
	TotalElapsed time.Duration `json:"total_elapsed"`
}

// AverageElapsed returns the mean per-query elapsed time.
func (s BackendStats) AverageElapsed() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.TotalElapsed / time.Duration(s.Attempts)
}

// Snapshot is an immutable view of collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	QueryTypeCounts     map[string]int64        `json:"query_type_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	BackendStats        map[string]BackendStats `json:"backend_stats"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	DegradedCount       int64                   `json:"degraded_count"`
	RepeatCount         int64                   `json:"repeat_count"`
	RecentEvents        []QueryEvent            `json:"-"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// DefaultBufferSize bounds the recent-event buffer.
const DefaultBufferSize = 100

// seenQueriesSize bounds the repeat-detection cache.
const seenQueriesSize = 1000

// Collector accumulates query events. Safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	totalQueries    int64
	typeCounts      map[string]int64
	latencyBuckets  map[LatencyBucket]int64
	backendStats    map[string]BackendStats
	zeroResultCount int64
	degradedCount   int64
	repeatCount     int64

	recent *circularBuffer[QueryEvent]
	seen   *lru.Cache[string, struct{}]
	since  time.Time
}

// NewCollector creates a collector with a bounded event buffer.
func NewCollector(bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	seen, _ := lru.New[string, struct{}](seenQueriesSize)
	return &Collector{
		typeCounts:     make(map[string]int64),
		latencyBuckets: make(map[LatencyBucket]int64),
		backendStats:   make(map[string]BackendStats),
		recent:         newCircularBuffer[QueryEvent](bufferSize),
		seen:           seen,
		since:          time.Now(),
	}
}

// Record adds a query event to the metrics.
func (c *Collector) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalQueries++
	c.typeCounts[event.QueryType]++
	c.latencyBuckets[LatencyToBucket(event.Latency)]++

	if event.IsZeroResult() {
		c.zeroResultCount++
	}
	if event.Degraded {
		c.degradedCount++
	}

	for backend, elapsed := range event.BackendElapsed {
		stats := c.backendStats[backend]
		stats.Attempts++
		stats.TotalElapsed += elapsed
		if event.BackendFailed[backend] {
			stats.Failures++
		}
		c.backendStats[backend] = stats
	}

	key := strings.ToLower(strings.TrimSpace(event.Query))
	if key != "" {
		if _, repeated := c.seen.Get(key); repeated {
			c.repeatCount++
		}
		c.seen.Add(key, struct{}{})
	}

	c.recent.add(event)
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &Snapshot{
		TotalQueries:        c.totalQueries,
		QueryTypeCounts:     make(map[string]int64, len(c.typeCounts)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(c.latencyBuckets)),
		BackendStats:        make(map[string]BackendStats, len(c.backendStats)),
		ZeroResultCount:     c.zeroResultCount,
		DegradedCount:       c.degradedCount,
		RepeatCount:         c.repeatCount,
		RecentEvents:        c.recent.items(),
		Since:               c.since,
	}
	for k, v := range c.typeCounts {
		snap.QueryTypeCounts[k] = v
	}
	for k, v := range c.latencyBuckets {
		snap.LatencyDistribution[k] = v
	}
	for k, v := range c.backendStats {
		snap.BackendStats[k] = v
	}
	return snap
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalQueries = 0
	c.typeCounts = make(map[string]int64)
	c.latencyBuckets = make(map[LatencyBucket]int64)
	c.backendStats = make(map[string]BackendStats)
	c.zeroResultCount = 0
	c.degradedCount = 0
	c.repeatCount = 0
	c.recent.clear()
	c.seen.Purge()
	c.since = time.Now()
}

// circularBuffer is a fixed-capacity FIFO. Callers hold the collector
// lock, so no internal locking.
type circularBuffer[T any] struct {
	buf      []T
	head     int
	size     int
	capacity int
}

func newCircularBuffer[T any](capacity int) *circularBuffer[T] {
	return &circularBuffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

func (b *circularBuffer[T]) add(item T) {
	b.buf[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// items returns the buffer contents oldest-first.
func (b *circularBuffer[T]) items() []T {
	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.buf[:b.size])
	} else {
		copy(result, b.buf[b.head:])
		copy(result[b.capacity-b.head:], b.buf[:b.head])
	}
	return result
}

func (b *circularBuffer[T]) clear() {
	b.head = 0
	b.size = 0
}
