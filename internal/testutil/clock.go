// Package testutil holds the shared test doubles for the bundle subsystem:
// a deterministic wall clock and a temp-dir bundle fixture builder.
package testutil

import (
	"sync"
	"time"
)

// Base is the fixed instant every test clock starts from. Timestamped output
// (metadata stamps, backup names) stays stable against it.
var Base = time.Date(2024, 6, 2, 17, 45, 10, 0, time.UTC)

// Clock is a deterministic bundle.Clock for tests. It returns a fixed
// instant until advanced; Advance moves it forward so tests can assert on
// timestamp ordering without sleeping.
//
// All methods are safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock fixed at Base.
func NewClock() *Clock {
	return &Clock{now: Base}
}

// NewClockAt returns a Clock fixed at t.
func NewClockAt(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now implements bundle.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
