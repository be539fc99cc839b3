package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Window is the time window a run fetches. The lower bound is inclusive; the
// upper bound is carried to the end of its day when rendered into an upstream
// date predicate, matching the feeds' inclusive-upper convention.
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow is the trailing 7 days from the current time, used when the
// caller does not supply an explicit start/end pair.
func DefaultWindow() Window {
	now := clock.Now().UTC()
	return Window{Start: now.AddDate(0, 0, -7), End: now}
}
