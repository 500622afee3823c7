package testutil

import (
	"sync"
	"time"

	"github.com/roach88/crawlplan/internal/ir"
)

// Epoch is the first instant a Clock reports.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock hands out deterministic, strictly increasing timestamps for fixture
// records.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock starting at Epoch and advancing by step.
func NewClock(step time.Duration) *Clock {
	return &Clock{now: Epoch.Add(-step), step: step}
}

// Next advances the clock and returns the new instant. The first call
// returns Epoch.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Timestamp is Next in record timestamp form.
func (c *Clock) Timestamp() ir.IRString {
	return ir.Timestamp(c.Next())
}

// Reset rewinds the clock so the next call returns Epoch again.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch.Add(-c.step)
}
