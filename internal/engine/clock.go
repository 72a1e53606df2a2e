package engine

import "sync/atomic"

// Clock is a monotonic logical clock stamping committed runs.
//
// Every successful mutation (SubmitFacts, RetractFacts, ApplyDelta,
// Evaluate) advances the clock once; a rolled-back run does not. Readers use
// the value to tell whether the store changed between two observations.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
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
