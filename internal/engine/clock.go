package engine

import "sync/atomic"

// Clock hands out the seq numbers that order a run's pass events. Numbers
// start after the clock's origin and never repeat, so two lowerings of the
// same model and config journal identical timelines.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first event is seq 1.
func NewClock() *Clock { return NewClockAt(0) }

// NewClockAt returns a clock whose first event is origin+1. Runs that
// share one journal pass the previous run's last seq.
func NewClockAt(origin int64) *Clock {
	c := new(Clock)
	c.last.Store(origin)
	return c
}

// Next stamps one pass event.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current is the seq of the most recent event, or the origin if none.
func (c *Clock) Current() int64 { return c.last.Load() }
