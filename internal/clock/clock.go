// Package clock abstracts wall-clock time so timers owned by the scheduler
// and the checkout submitter can be driven by tests.
package clock

import "time"

// Timer is a scheduled one-shot callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran
	// or was stopped before.
	Stop() bool
}

// Clock provides the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Clock backed by package time.
type Real struct{}

// New returns the wall clock.
func New() Clock { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
