package testutil

import (
	"sync"
	"time"
)

// Epoch is the time a new Clock starts at.
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Clock is a settable wall clock for tests.
//
// It only moves when told to, so expiry and "today" are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock set to Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// NewClockAt creates a clock set to t.
func NewClockAt(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

// Now returns the current test time.
//
// Implements clock.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Reset moves the clock back to Epoch.
//
// Used for test reuse.
func (c *Clock) Reset() {
	c.Set(Epoch)
}
