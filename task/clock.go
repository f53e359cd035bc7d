package task

import "time"

// A Clock tells time and sleeps until absolute timestamps.
type Clock interface {
	Now() time.Time

	// SleepUntil blocks until t has passed or done is closed.
	SleepUntil(t time.Time, done <-chan struct{})
}

// RealClock is the wall clock of the host.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// SleepUntil blocks until t. The wait is derived from t on every call, so a
// late wakeup never pushes back the following ones.
func (RealClock) SleepUntil(t time.Time, done <-chan struct{}) {
	d := time.Until(t)
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-done:
	}
}
