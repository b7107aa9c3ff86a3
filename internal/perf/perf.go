// Package perf implements PerformanceTracker: lock-free running
// metrics keyed by mode and by position, updated on every request
// without ever blocking inference.
package perf

import (
	"sync"
	"sync/atomic"
	"time"
)

// categoryData holds one key's running statistics behind atomic
// counters rather than a mutex, so Record never contends with itself
// across goroutines and Snapshot never blocks a concurrent Record.
type categoryData struct {
	count      atomic.Int64
	totalNanos atomic.Int64
	// confidence is accumulated as fixed-point (×1e6) since there is no
	// lock-free float64 add in the standard library.
	totalConfFixed atomic.Int64
}

func (c *categoryData) record(d time.Duration, confidence float32) {
	c.count.Add(1)
	c.totalNanos.Add(int64(d))
	c.totalConfFixed.Add(int64(confidence * 1e6))
}

// Stat is a read-only snapshot of one key's running statistics.
type Stat struct {
	Count             int64
	AverageTime       time.Duration
	AverageConfidence float32
}

func (c *categoryData) snapshot() Stat {
	n := c.count.Load()
	if n == 0 {
		return Stat{}
	}
	return Stat{
		Count:             n,
		AverageTime:       time.Duration(c.totalNanos.Load() / n),
		AverageConfidence: float32(c.totalConfFixed.Load()/n) / 1e6,
	}
}

// Tracker holds two independent concurrent maps: per-mode and
// per-position running statistics, plus a consensus-trigger counter.
type Tracker struct {
	byMode     sync.Map // string -> *categoryData
	byPosition sync.Map // int -> *categoryData
	triggers   atomic.Int64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// RecordMode records one observation against a pipeline mode ("Fast",
// "Balanced", "Thorough").
func (t *Tracker) RecordMode(mode string, d time.Duration, confidence float32) {
	entry(&t.byMode, mode).record(d, confidence)
}

// RecordPosition records one observation against a flux position.
func (t *Tracker) RecordPosition(position int, d time.Duration, confidence float32) {
	entry(&t.byPosition, position).record(d, confidence)
}

// RecordConsensusTrigger increments the count of requests that
// triggered a consensus query.
func (t *Tracker) RecordConsensusTrigger() {
	t.triggers.Add(1)
}

// ModeSnapshot returns the current statistics for mode; the zero value
// if mode has never been recorded.
func (t *Tracker) ModeSnapshot(mode string) Stat {
	return entry(&t.byMode, mode).snapshot()
}

// PositionSnapshot returns the current statistics for position.
func (t *Tracker) PositionSnapshot(position int) Stat {
	return entry(&t.byPosition, position).snapshot()
}

// ConsensusTriggerCount returns the total number of consensus-trigger
// events recorded so far.
func (t *Tracker) ConsensusTriggerCount() int64 {
	return t.triggers.Load()
}

func entry(m *sync.Map, key any) *categoryData {
	if v, ok := m.Load(key); ok {
		return v.(*categoryData)
	}
	actual, _ := m.LoadOrStore(key, &categoryData{})
	return actual.(*categoryData)
}
