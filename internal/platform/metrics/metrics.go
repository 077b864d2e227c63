package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	calculations    uint64
	calcDurationUs  uint64
	documentsQueued uint64
	documentsFailed uint64

	mu           sync.Mutex
	calcFailures map[string]uint64
}

func New() *Collector {
	return &Collector{calcFailures: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordCalculation counts one payslip calculation. A non-empty failure kind marks it failed.
func (c *Collector) RecordCalculation(failureKind string, duration time.Duration) {
	if failureKind == "" {
		atomic.AddUint64(&c.calculations, 1)
		atomic.AddUint64(&c.calcDurationUs, uint64(duration.Microseconds()))
		return
	}
	c.mu.Lock()
	c.calcFailures[failureKind]++
	c.mu.Unlock()
}

func (c *Collector) RecordDocument(queued bool) {
	if queued {
		atomic.AddUint64(&c.documentsQueued, 1)
		return
	}
	atomic.AddUint64(&c.documentsFailed, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	calcs := atomic.LoadUint64(&c.calculations)
	calcUs := atomic.LoadUint64(&c.calcDurationUs)
	calcAvg := float64(0)
	if calcs > 0 {
		calcAvg = float64(calcUs) / float64(calcs)
	}

	c.mu.Lock()
	failures := make(map[string]uint64, len(c.calcFailures))
	var failedTotal uint64
	for kind, count := range c.calcFailures {
		failures[kind] = count
		failedTotal += count
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":          total,
		"errorsTotal":            errs,
		"rateLimitedTotal":       limited,
		"avgDurationMs":          avg,
		"totalDurationMs":        totalMs,
		"calculationsTotal":      calcs,
		"calculationsFailed":     failedTotal,
		"calculationFailures":    failures,
		"avgCalculationMicros":   calcAvg,
		"documentsQueuedTotal":   atomic.LoadUint64(&c.documentsQueued),
		"documentsRejectedTotal": atomic.LoadUint64(&c.documentsFailed),
	}
}
