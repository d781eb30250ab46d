package ledger

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic logical clock stamping notifications.
//
// Only the loop goroutine calls Next, but reads from other goroutines
// (Current) are safe.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// WallClock returns milliseconds since the Unix epoch. It is the default
// signature timestamp source.
func WallClock() uint64 {
	return uint64(time.Now().UnixMilli())
}
