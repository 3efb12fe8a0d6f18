package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{49 * time.Millisecond, BucketP50},
		{50 * time.Millisecond, BucketP100},
		{99 * time.Millisecond, BucketP100},
		{100 * time.Millisecond, BucketP500},
		{499 * time.Millisecond, BucketP500},
		{500 * time.Millisecond, BucketP1000},
		{3 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
		})
	}
}

func TestCollector_Record(t *testing.T) {
	c := NewCollector(10)

	c.Record(QueryEvent{
		Query:       "who is alice",
		QueryType:   "factual",
		ResultCount: 3,
		Latency:     25 * time.Millisecond,
		BackendElapsed: map[string]time.Duration{
			"graph":  5 * time.Millisecond,
			"vector": 20 * time.Millisecond,
		},
		BackendFailed: map[string]bool{"graph": true},
		Degraded:      true,
	})
	c.Record(QueryEvent{
		Query:       "find the report",
		QueryType:   "lookup",
		ResultCount: 0,
		Latency:     5 * time.Millisecond,
	})

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.QueryTypeCounts["factual"])
	assert.Equal(t, int64(1), snap.QueryTypeCounts["lookup"])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.DegradedCount)

	graph := snap.BackendStats["graph"]
	assert.Equal(t, int64(1), graph.Attempts)
	assert.Equal(t, int64(1), graph.Failures)
	vector := snap.BackendStats["vector"]
	assert.Equal(t, int64(1), vector.Attempts)
	assert.Equal(t, int64(0), vector.Failures)
}

func TestCollector_RepeatDetection(t *testing.T) {
	c := NewCollector(10)

	c.Record(QueryEvent{Query: "who is alice"})
	c.Record(QueryEvent{Query: "Who is Alice"})
	c.Record(QueryEvent{Query: "  who is alice  "})
	c.Record(QueryEvent{Query: "something else"})

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.RepeatCount)
}

func TestCollector_RecentEventsBounded(t *testing.T) {
	c := NewCollector(3)

	for i := 0; i < 5; i++ {
		c.Record(QueryEvent{Query: fmt.Sprintf("query %d", i)})
	}

	snap := c.Snapshot()
	require.Len(t, snap.RecentEvents, 3)
	assert.Equal(t, "query 2", snap.RecentEvents[0].Query)
	assert.Equal(t, "query 4", snap.RecentEvents[2].Query)
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(10)
	c.Record(QueryEvent{Query: "who is alice", QueryType: "factual"})

	c.Reset()
	snap := c.Snapshot()
	assert.Zero(t, snap.TotalQueries)
	assert.Empty(t, snap.QueryTypeCounts)
	assert.Empty(t, snap.RecentEvents)

	// Repeat detection starts over after a reset.
	c.Record(QueryEvent{Query: "who is alice"})
	assert.Zero(t, c.Snapshot().RepeatCount)
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector(10)
	c.Record(QueryEvent{Query: "who is alice", QueryType: "factual"})

	snap := c.Snapshot()
	snap.QueryTypeCounts["factual"] = 99
	snap.BackendStats["graph"] = BackendStats{Attempts: 99}

	fresh := c.Snapshot()
	assert.Equal(t, int64(1), fresh.QueryTypeCounts["factual"])
	assert.NotContains(t, fresh.BackendStats, "graph")
}

func TestZeroResultPercentage(t *testing.T) {
	c := NewCollector(10)
	assert.Zero(t, c.Snapshot().ZeroResultPercentage())

	c.Record(QueryEvent{Query: "hit", ResultCount: 2})
	c.Record(QueryEvent{Query: "miss", ResultCount: 0})

	assert.InDelta(t, 50.0, c.Snapshot().ZeroResultPercentage(), 0.001)
}

func TestBackendStats_AverageElapsed(t *testing.T) {
	stats := BackendStats{Attempts: 4, TotalElapsed: 200 * time.Millisecond}
	assert.Equal(t, 50*time.Millisecond, stats.AverageElapsed())

	assert.Zero(t, BackendStats{}.AverageElapsed())
}
