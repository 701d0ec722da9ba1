// Package clock provides an injectable time source so tests can freeze
// time deterministically instead of depending on the wall clock.
package clock

import "github.com/jonboulle/clockwork"

var current clockwork.Clock = clockwork.NewRealClock()

// Set swaps the process-wide time source. Pass nil to reset to real time.
func Set(c clockwork.Clock) {
	if c == nil {
		current = clockwork.NewRealClock()
		return
	}
	current = c
}

// Get returns the active clock.
func Get() clockwork.Clock {
	return current
}
