// Package system provides the wall clock that stamps beacon records and
// drives idle-session eviction in the daemon.
package system

import "time"

// Clock implements delivery.Clock using time.Now in UTC. Tests substitute a
// fixed or manually advanced clock.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
