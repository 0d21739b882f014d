// Package clock supplies wall-clock time to the puzzle store.
//
// Expiry, "today" and identity timestamps all read time through a Clock so
// tests can pin it. The system clock is always reported in UTC.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns the current time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
