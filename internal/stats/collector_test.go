package stats

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBucketsPartitionExactly(t *testing.T) {
	c := NewCollector()
	durations := []time.Duration{
		10 * time.Millisecond,
		99 * time.Millisecond,
		100 * time.Millisecond, // boundary: average
		150 * time.Millisecond,
		199 * time.Millisecond,
		200 * time.Millisecond, // boundary: slow
		500 * time.Millisecond,
	}
	for _, d := range durations {
		c.RecordRequest("weather", d, true)
	}

	all := c.GetStatistics()
	if len(all) != 1 {
		t.Fatalf("expected one provider, got %d", len(all))
	}
	got := all[0]

	if got.PerformanceBuckets.Fast != 2 {
		t.Fatalf("expected 2 fast, got %d", got.PerformanceBuckets.Fast)
	}
	if got.PerformanceBuckets.Average != 3 {
		t.Fatalf("expected 3 average, got %d", got.PerformanceBuckets.Average)
	}
	if got.PerformanceBuckets.Slow != 2 {
		t.Fatalf("expected 2 slow, got %d", got.PerformanceBuckets.Slow)
	}

	sum := got.PerformanceBuckets.Fast + got.PerformanceBuckets.Average + got.PerformanceBuckets.Slow
	if sum != got.TotalRequests {
		t.Fatalf("buckets %d do not partition total %d", sum, got.TotalRequests)
	}
}

func TestAverageRoundedToTwoDecimals(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("news", 100*time.Millisecond, true)
	c.RecordRequest("news", 100*time.Millisecond, true)
	c.RecordRequest("news", 101*time.Millisecond, false)

	got := c.GetStatistics()[0]
	if got.AverageResponseTimeMs != 100.33 {
		t.Fatalf("expected average 100.33, got %v", got.AverageResponseTimeMs)
	}
	if got.SuccessfulRequests != 2 || got.FailedRequests != 1 {
		t.Fatalf("unexpected success/failure split: %+v", got)
	}
}

func TestSnapshotUnknownProvider(t *testing.T) {
	c := NewCollector()
	snap := c.GetProviderSnapshot("absent", time.Minute)

	if snap.OverallRequestCount != 0 || snap.RecentRequestCount != 0 {
		t.Fatalf("expected zero counts, got %+v", snap)
	}
	if snap.RecentAverageMs != nil {
		t.Fatalf("expected nil recent average, got %v", *snap.RecentAverageMs)
	}
}

func TestSnapshotRecentWindow(t *testing.T) {
	c := NewCollector()

	base := time.Now()
	c.now = func() time.Time { return base.Add(-10 * time.Minute) }
	c.RecordRequest("books", 100*time.Millisecond, true)
	c.RecordRequest("books", 100*time.Millisecond, true)

	c.now = func() time.Time { return base }
	c.RecordRequest("books", 300*time.Millisecond, true)

	snap := c.GetProviderSnapshot("books", 5*time.Minute)
	if snap.OverallRequestCount != 3 {
		t.Fatalf("expected 3 overall, got %d", snap.OverallRequestCount)
	}
	if snap.RecentRequestCount != 1 {
		t.Fatalf("expected 1 recent, got %d", snap.RecentRequestCount)
	}
	if snap.RecentAverageMs == nil || *snap.RecentAverageMs != 300 {
		t.Fatalf("expected recent average 300, got %v", snap.RecentAverageMs)
	}
}

func TestResetClearsEverything(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("weather", 50*time.Millisecond, true)
	c.RecordRequest("news", 50*time.Millisecond, false)

	c.Reset()

	if got := c.GetStatistics(); len(got) != 0 {
		t.Fatalf("expected no statistics after reset, got %d", len(got))
	}
	if got := c.GetProviderNames(); len(got) != 0 {
		t.Fatalf("expected no provider names after reset, got %v", got)
	}

	c.RecordRequest("weather", 50*time.Millisecond, true)
	if got := c.GetProviderNames(); len(got) != 1 {
		t.Fatalf("expected a fresh log after reset, got %v", got)
	}
}

func TestStatisticsReadDoesNotRecreateResetShards(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("weather", 50*time.Millisecond, true)
	c.RecordRequest("news", 50*time.Millisecond, true)

	// a name snapshot taken before a Reset can outlive it; the stale names
	// must neither produce output nor allocate shards
	names := c.GetProviderNames()
	c.Reset()

	if got := c.statisticsFor(names); len(got) != 0 {
		t.Fatalf("stale names must yield no statistics, got %d", len(got))
	}

	c.mu.RLock()
	remaining := len(c.shards)
	c.mu.RUnlock()
	if remaining != 0 {
		t.Fatalf("read path allocated %d shards after reset", remaining)
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			provider := fmt.Sprintf("provider-%d", i%2)
			for j := 0; j < perWriter; j++ {
				c.RecordRequest(provider, 50*time.Millisecond, j%2 == 0)
				if j%50 == 0 {
					c.GetProviderSnapshot(provider, time.Minute)
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, s := range c.GetStatistics() {
		total += s.TotalRequests
	}
	if total != writers*perWriter {
		t.Fatalf("lost records: expected %d, got %d", writers*perWriter, total)
	}
}
