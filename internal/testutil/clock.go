package testutil

import "sync"

// DeterministicClock hands out signature timestamps for tests.
//
// Pass clock.Now as ledger.Config.Now so that two runs of the same scenario
// sign with identical timestamps and produce identical signatures.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base uint64
	step uint64
	ts   uint64
}

// NewDeterministicClock creates a clock whose first Now returns base+step.
// A zero step is treated as 1.
func NewDeterministicClock(base, step uint64) *DeterministicClock {
	if step == 0 {
		step = 1
	}
	return &DeterministicClock{base: base, step: step, ts: base}
}

// Now advances the clock and returns the new timestamp.
func (c *DeterministicClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += c.step
	return c.ts
}

// Current returns the last timestamp handed out without advancing.
func (c *DeterministicClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Reset rewinds the clock to its base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts = c.base
}
