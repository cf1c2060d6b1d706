// Package tdma implements GSM TDMA frame/timeslot arithmetic and the
// per-channel slot schedule (TDMAMapping) that tells an encoder or
// decoder which frame numbers within a repeating period belong to it.
package tdma

import "fmt"

// HyperframeLength is the GSM hyperframe period in frames: 26*51*2048.
const HyperframeLength = 26 * 51 * 2048

// Time is a (frame number, timeslot) pair. FN is always taken modulo
// HyperframeLength; TN is in [0,7].
type Time struct {
	FN int
	TN int
}

// Normalize wraps FN into [0, HyperframeLength).
func (t Time) Normalize() Time {
	fn := t.FN % HyperframeLength
	if fn < 0 {
		fn += HyperframeLength
	}
	return Time{FN: fn, TN: t.TN}
}

// Add returns t advanced by n frames, with hyperframe wraparound.
func (t Time) Add(n int) Time {
	return Time{FN: t.FN + n, TN: t.TN}.Normalize()
}

// Sub returns the modular difference (a-b) in frames, in
// [-HyperframeLength/2, HyperframeLength/2], the signed distance used
// to compare TDMA times that may have wrapped.
func (a Time) Sub(b Time) int {
	d := (a.FN - b.FN) % HyperframeLength
	if d > HyperframeLength/2 {
		d -= HyperframeLength
	} else if d < -HyperframeLength/2 {
		d += HyperframeLength
	}
	return d
}

// Less reports whether a strictly precedes b in TDMA order (mod
// hyperframe, using the shortest-path signed distance).
func (a Time) Less(b Time) bool {
	return a.Sub(b) < 0
}

func (t Time) String() string {
	return fmt.Sprintf("(%d:%d)", t.FN, t.TN)
}

// Mapping is an immutable per-logical-channel slot schedule: which
// timeslot(s) the channel uses, whether it is a downlink mapping, how
// many bursts make up one interleaved block (numFrames), the period
// over which the schedule repeats (repeatLength), and the forward table
// giving the in-period frame offset of burst i.
type Mapping struct {
	AllowedSlots map[int]bool
	Downlink     bool
	NumFrames    int
	RepeatLength int
	Forward      []int
	TypeAndOffset string
}

// NewMapping builds a Mapping, panicking if forward does not have
// exactly numFrames entries, matching the original's assertion-based
// configuration checking: a malformed mapping is a programming error,
// not a runtime condition to recover from.
func NewMapping(typeAndOffset string, slots []int, downlink bool, numFrames, repeatLength int, forward []int) *Mapping {
	if len(forward) != numFrames {
		panic(fmt.Sprintf("tdma: mapping %s: forward table has %d entries, want %d", typeAndOffset, len(forward), numFrames))
	}
	allowed := make(map[int]bool, len(slots))
	for _, s := range slots {
		allowed[s] = true
	}
	return &Mapping{
		AllowedSlots:  allowed,
		Downlink:      downlink,
		NumFrames:     numFrames,
		RepeatLength:  repeatLength,
		Forward:       forward,
		TypeAndOffset: typeAndOffset,
	}
}

// AllowsSlot reports whether TN is a valid timeslot for this mapping.
func (m *Mapping) AllowsSlot(tn int) bool {
	return m.AllowedSlots[tn]
}

// Slot returns the mapping's single assigned timeslot, panicking if it
// spans more than one: every channel type in this package is pinned to
// exactly one TN, so a mapping with zero or several is a configuration
// error.
func (m *Mapping) Slot() int {
	if len(m.AllowedSlots) != 1 {
		panic(fmt.Sprintf("tdma: mapping %s: Slot requires exactly one allowed slot, has %d", m.TypeAndOffset, len(m.AllowedSlots)))
	}
	for tn := range m.AllowedSlots {
		return tn
	}
	panic("unreachable")
}

// RollForward advances t to the frame number of burst (step mod
// NumFrames) within the period containing t, wrapping into the next
// period if that offset has already passed within the current one.
func (m *Mapping) RollForward(t Time, step int) Time {
	offset := m.Forward[step%m.NumFrames]
	periodBase := (t.FN / m.RepeatLength) * m.RepeatLength
	next := Time{FN: periodBase + offset, TN: t.TN}.Normalize()
	if !next.Less(t.Add(1)) {
		return next
	}
	return Time{FN: periodBase + m.RepeatLength + offset, TN: t.TN}.Normalize()
}

// ReverseMapping returns the burst index i such that Forward[i] is the
// in-period offset of FN, or -1 if FN does not land on any burst in
// this mapping (a misconfigured or inapplicable schedule).
func (m *Mapping) ReverseMapping(fn int) int {
	offset := fn % m.RepeatLength
	for i, f := range m.Forward {
		if f == offset {
			return i
		}
	}
	return -1
}
