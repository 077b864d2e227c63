package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordRequests(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 2*time.Millisecond)

	snap := c.Snapshot()
	if snap["requestsTotal"].(uint64) != 3 {
		t.Fatalf("expected 3 requests, got %v", snap["requestsTotal"])
	}
	if snap["errorsTotal"].(uint64) != 1 || snap["rateLimitedTotal"].(uint64) != 1 {
		t.Fatalf("unexpected error counters: %v", snap)
	}
	if snap["totalDurationMs"].(uint64) != 42 {
		t.Fatalf("expected 42ms total, got %v", snap["totalDurationMs"])
	}
}

func TestRecordCalculationsConcurrently(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				c.RecordCalculation("invalid_rule", 0)
				return
			}
			c.RecordCalculation("", time.Millisecond)
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap["calculationsTotal"].(uint64) != 45 {
		t.Fatalf("expected 45 successful calculations, got %v", snap["calculationsTotal"])
	}
	if snap["calculationsFailed"].(uint64) != 5 {
		t.Fatalf("expected 5 failures, got %v", snap["calculationsFailed"])
	}
	failures := snap["calculationFailures"].(map[string]uint64)
	if failures["invalid_rule"] != 5 {
		t.Fatalf("expected invalid_rule failures, got %v", failures)
	}
}

func TestRecordDocument(t *testing.T) {
	c := New()
	c.RecordDocument(true)
	c.RecordDocument(false)
	snap := c.Snapshot()
	if snap["documentsQueuedTotal"].(uint64) != 1 || snap["documentsRejectedTotal"].(uint64) != 1 {
		t.Fatalf("unexpected document counters: %v", snap)
	}
}
