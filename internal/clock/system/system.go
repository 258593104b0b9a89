// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock reports UTC time truncated to microseconds, the precision Postgres
// keeps for timestamptz, so values read back compare equal to those written.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
