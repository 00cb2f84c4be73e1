// Package system provides the wall clock used to stamp stored records.
package system

import "time"

// Clock implements users.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to milliseconds, the precision
// both document stores persist.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
