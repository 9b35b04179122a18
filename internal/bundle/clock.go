package bundle

import "time"

// Clock supplies wall time to everything that stamps bundles: metadata
// writers, the backup service, the repairer. Injecting it keeps timestamped
// output deterministic under test; internal/testutil provides the fixed
// test implementation.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
