package l1fec

import "time"

// Timer is a simple enable/expiry timer, the Go-idiomatic rendering of
// the three GSM lifecycle timers (T3101, T3109, T3111): each is "armed"
// with a deadline and later asked whether it has expired, rather than
// firing a callback.
type Timer struct {
	duration time.Duration
	deadline time.Time
	armed    bool
}

// NewTimer returns a disarmed timer with the given duration.
func NewTimer(d time.Duration) *Timer {
	return &Timer{duration: d}
}

// Arm starts (or restarts) the timer from now.
func (t *Timer) Arm() {
	t.deadline = time.Now().Add(t.duration)
	t.armed = true
}

// Disarm stops the timer; Expired returns false until it is armed again.
func (t *Timer) Disarm() {
	t.armed = false
}

// Armed reports whether the timer is currently running.
func (t *Timer) Armed() bool {
	return t.armed
}

// Expired reports whether the timer is armed and its deadline has
// passed.
func (t *Timer) Expired() bool {
	return t.armed && !time.Now().Before(t.deadline)
}
