package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is where a DeterministicClock starts when given the zero time.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock that advances one second per
// reading, so run timestamps in golden files and store tests are stable.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	ticks int64
}

// NewDeterministicClock creates a clock whose first reading is start plus
// one second. A zero start uses DefaultEpoch.
func NewDeterministicClock(start time.Time) *DeterministicClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &DeterministicClock{start: start.UTC()}
}

// Now advances the clock and returns the new time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.start.Add(time.Duration(c.ticks) * time.Second)
}

// Current returns the last reading without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.ticks) * time.Second)
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
