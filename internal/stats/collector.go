package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Performance bucket thresholds in milliseconds. The boundary values belong
// to the higher bucket.
const (
	fastThresholdMs = 100
	slowThresholdMs = 200
)

// Record is one completed provider call. Append-only; cleared in bulk only by
// Reset.
type Record struct {
	ResponseTimeMs float64   `json:"responseTimeMs"`
	IsSuccess      bool      `json:"isSuccess"`
	Timestamp      time.Time `json:"timestamp"`
}

// PerformanceBuckets partitions a provider's requests by latency.
type PerformanceBuckets struct {
	Fast    int `json:"fast"`
	Average int `json:"average"`
	Slow    int `json:"slow"`
}

// ProviderStatistics is the aggregate view over one provider's records,
// recomputed on every read.
type ProviderStatistics struct {
	Provider              string             `json:"provider"`
	TotalRequests         int                `json:"totalRequests"`
	SuccessfulRequests    int                `json:"successfulRequests"`
	FailedRequests        int                `json:"failedRequests"`
	AverageResponseTimeMs float64            `json:"averageResponseTimeMs"`
	PerformanceBuckets    PerformanceBuckets `json:"performanceBuckets"`
}

// PerformanceSnapshot pairs all-time averages with averages over a trailing
// window. RecentAverageMs is nil when the window holds no records.
type PerformanceSnapshot struct {
	Provider            string   `json:"provider"`
	OverallAverageMs    float64  `json:"overallAverageMs"`
	OverallRequestCount int      `json:"overallRequestCount"`
	RecentAverageMs     *float64 `json:"recentAverageMs"`
	RecentRequestCount  int      `json:"recentRequestCount"`
}

type shard struct {
	mu      sync.Mutex
	records []Record
}

func (s *shard) append(r Record) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

// copyOut takes a point-in-time copy so derived stats never iterate the live
// slice while writers append.
func (s *shard) copyOut() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Collector accumulates per-provider records and answers aggregate and
// windowed queries under concurrent writers and readers. Each provider's log
// is guarded by its own lock so traffic on one provider never serialises
// another's.
type Collector struct {
	mu     sync.RWMutex
	shards map[string]*shard
	now    func() time.Time
}

// NewCollector constructs an empty collector.
func NewCollector() *Collector {
	return &Collector{
		shards: make(map[string]*shard),
		now:    time.Now,
	}
}

// RecordRequest appends one observation for the named provider.
func (c *Collector) RecordRequest(provider string, elapsed time.Duration, success bool) {
	c.shard(provider).append(Record{
		ResponseTimeMs: float64(elapsed) / float64(time.Millisecond),
		IsSuccess:      success,
		Timestamp:      c.now(),
	})
}

func (c *Collector) shard(provider string) *shard {
	c.mu.RLock()
	s, ok := c.shards[provider]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.shards[provider]; !ok {
		s = &shard{}
		c.shards[provider] = s
	}
	return s
}

// lookup is the non-creating counterpart of shard, for read paths.
func (c *Collector) lookup(provider string) (*shard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shards[provider]
	return s, ok
}

// GetStatistics computes aggregate statistics for every provider with at
// least one record, ordered by provider name.
func (c *Collector) GetStatistics() []ProviderStatistics {
	names := c.GetProviderNames()
	sort.Strings(names)
	return c.statisticsFor(names)
}

// statisticsFor tolerates names whose shard disappeared between the name
// snapshot and the read; a concurrent Reset must not grow the map back.
func (c *Collector) statisticsFor(names []string) []ProviderStatistics {
	out := make([]ProviderStatistics, 0, len(names))
	for _, name := range names {
		s, ok := c.lookup(name)
		if !ok {
			continue
		}
		records := s.copyOut()
		if len(records) == 0 {
			continue
		}
		out = append(out, computeStatistics(name, records))
	}
	return out
}

func computeStatistics(provider string, records []Record) ProviderStatistics {
	stats := ProviderStatistics{Provider: provider, TotalRequests: len(records)}

	var sum float64
	for _, r := range records {
		sum += r.ResponseTimeMs
		if r.IsSuccess {
			stats.SuccessfulRequests++
		} else {
			stats.FailedRequests++
		}
		switch {
		case r.ResponseTimeMs < fastThresholdMs:
			stats.PerformanceBuckets.Fast++
		case r.ResponseTimeMs < slowThresholdMs:
			stats.PerformanceBuckets.Average++
		default:
			stats.PerformanceBuckets.Slow++
		}
	}

	stats.AverageResponseTimeMs = roundMs(sum / float64(len(records)))
	return stats
}

// GetProviderSnapshot returns all-time plus trailing-window averages for one
// provider. An unknown provider yields zero counts and a nil recent average.
func (c *Collector) GetProviderSnapshot(provider string, recentWindow time.Duration) PerformanceSnapshot {
	snapshot := PerformanceSnapshot{Provider: provider}

	c.mu.RLock()
	s, ok := c.shards[provider]
	c.mu.RUnlock()
	if !ok {
		return snapshot
	}

	records := s.copyOut()
	if len(records) == 0 {
		return snapshot
	}

	cutoff := c.now().Add(-recentWindow)

	var overallSum, recentSum float64
	for _, r := range records {
		overallSum += r.ResponseTimeMs
		if !r.Timestamp.Before(cutoff) {
			recentSum += r.ResponseTimeMs
			snapshot.RecentRequestCount++
		}
	}

	snapshot.OverallRequestCount = len(records)
	snapshot.OverallAverageMs = roundMs(overallSum / float64(len(records)))
	if snapshot.RecentRequestCount > 0 {
		recent := roundMs(recentSum / float64(snapshot.RecentRequestCount))
		snapshot.RecentAverageMs = &recent
	}
	return snapshot
}

// GetProviderNames lists every provider with at least one record.
func (c *Collector) GetProviderNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.shards))
	for name, s := range c.shards {
		s.mu.Lock()
		n := len(s.records)
		s.mu.Unlock()
		if n > 0 {
			names = append(names, name)
		}
	}
	return names
}

// Reset atomically discards every provider log.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.shards = make(map[string]*shard)
	c.mu.Unlock()
}

func roundMs(ms float64) float64 {
	return decimal.NewFromFloat(ms).Round(2).InexactFloat64()
}
