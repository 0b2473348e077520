package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps notifications, archived responses and run durations.
// Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// Since reports the time elapsed on the package clock since t.
func Since(t time.Time) time.Duration {
	return clock.Since(t)
}
