package session

import "time"

// Playback defaults for time-driven lessons.
const (
	DefaultRate     = 0.8 // lesson time units per second
	DefaultMaxDelta = 100 * time.Millisecond
)

// Clock converts wall-clock frame deltas into lesson time.
type Clock struct {
	Rate     float64
	MaxDelta time.Duration
}

func (c Clock) withDefaults() Clock {
	if c.Rate <= 0 {
		c.Rate = DefaultRate
	}
	if c.MaxDelta <= 0 {
		c.MaxDelta = DefaultMaxDelta
	}
	return c
}

// Advance moves t forward by the clamped elapsed time. It never passes end
// and reports done when end is reached.
func (c Clock) Advance(t, end float64, elapsed time.Duration) (float64, bool) {
	c = c.withDefaults()
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > c.MaxDelta {
		elapsed = c.MaxDelta
	}
	next := t + c.Rate*elapsed.Seconds()
	if next >= end {
		return end, true
	}
	return next, false
}
