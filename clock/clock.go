// Package clock abstracts the shared TDMA clock that every encoder and
// decoder service thread schedules against, so tests can drive time
// deterministically instead of sleeping on a wall clock.
package clock

import (
	"time"

	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

// Source is the shared radio clock: the current TDMA time, and a wait
// primitive a service thread can block on until that time arrives.
type Source interface {
	Now() tdma.Time
	Wait(t tdma.Time)
}

// frameDuration is the duration of one GSM TDMA frame (120ms/26 per
// GSM 05.10), used by System to translate TDMA time into wall time.
const frameDuration = 120 * time.Millisecond / 26

// System is a Source backed by the real wall clock: frame 0 begins at
// the time System is constructed, and Now()/Wait() extrapolate linearly
// from there. It is the production implementation; tests use a fake.
type System struct {
	epoch time.Time
}

// NewSystem returns a System clock whose FN 0 is "now".
func NewSystem() *System {
	return &System{epoch: time.Now()}
}

// Now returns the current TDMA time, computed from elapsed wall time.
func (s *System) Now() tdma.Time {
	elapsed := time.Since(s.epoch)
	frames := int(elapsed / frameDuration)
	return tdma.Time{FN: frames % tdma.HyperframeLength}
}

// Wait blocks until t has arrived.
func (s *System) Wait(t tdma.Time) {
	target := s.epoch.Add(time.Duration(t.FN) * frameDuration)
	if d := time.Until(target); d > 0 {
		time.Sleep(d)
	}
}

// Fake is a manually-advanced clock for tests.
type Fake struct {
	current tdma.Time
}

// NewFake returns a Fake clock starting at FN 0.
func NewFake() *Fake {
	return &Fake{}
}

// Now returns the fake clock's current time.
func (f *Fake) Now() tdma.Time { return f.current }

// Wait advances the fake clock directly to t; there is nothing to block
// on in a test.
func (f *Fake) Wait(t tdma.Time) { f.current = t }

// Advance moves the fake clock forward by n frames.
func (f *Fake) Advance(n int) { f.current = f.current.Add(n) }
