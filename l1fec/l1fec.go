// Package l1fec implements the encoder/decoder base types shared by
// every logical channel's FEC pipeline: open/close/active lifecycle,
// the T3101/T3109/T3111 recyclability timers, the FER estimator, and
// the scheduling primitives (resync/waitToSend/rollForward) an encoder
// uses to stay aligned with its TDMA mapping.
package l1fec

import (
	"sync"
	"time"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/clock"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

// Standard GSM 04.08 11.1.2 lifecycle timer durations.
const (
	T3101Duration = 1 * time.Second
	T3109Duration = 19 * time.Second
	T3111Duration = 2 * time.Second
)

// Radio is the downlink collaborator an encoder writes completed
// bursts to; it is the minimal slice of the ARFCN manager an encoder
// needs, declared here rather than in package radio to avoid an import
// cycle (radio, in turn, only needs a WriteLowSide-shaped decoder).
type Radio interface {
	WriteHighSide(*burst.TxBurst)
	ARFCN() int
}

// Scheduler is the upstream SAPMUX collaborator notified of each new
// write time, so it can pace upper-layer frame submission.
type Scheduler interface {
	SignalNextWtime(tdma.Time)
}

// Decoder is the shared base for every channel-type decoder: burst
// ingress bookkeeping, FER estimation and the three recyclability
// timers. Channel-type decoders embed this and add their own
// WriteLowSide.
type Decoder struct {
	mu       sync.Mutex
	active   bool
	arfcn    int
	typeAndOffset string
	mapping  *tdma.Mapping
	sibling  *Encoder

	t3101 *Timer
	t3109 *Timer
	t3111 *Timer
	fer   FERFilter

	t3101Consumed bool
}

// NewDecoder builds a Decoder for one logical channel.
func NewDecoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping) *Decoder {
	return NewDecoderWithTimers(arfcn, typeAndOffset, mapping, T3101Duration, T3109Duration, T3111Duration)
}

// NewDecoderWithTimers builds a Decoder with explicit timer durations,
// used by tests that need T3101/T3109/T3111 to expire in milliseconds
// instead of the standard multi-second durations.
func NewDecoderWithTimers(arfcn int, typeAndOffset string, mapping *tdma.Mapping, t3101, t3109, t3111 time.Duration) *Decoder {
	return &Decoder{
		arfcn:         arfcn,
		typeAndOffset: typeAndOffset,
		mapping:       mapping,
		t3101:         NewTimer(t3101),
		t3109:         NewTimer(t3109),
		t3111:         NewTimer(t3111),
	}
}

// Open arms T3101 and T3109 and marks the decoder accepting.
func (d *Decoder) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
	d.t3101Consumed = false
	d.t3101.Arm()
	d.t3109.Arm()
	d.t3111.Disarm()
}

// Close stops accepting new frames and arms the release-delay timer.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
	d.t3111.Arm()
}

// Recyclable reports whether any of the three lifecycle timers has
// expired.
func (d *Decoder) Recyclable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t3101.Expired() || d.t3109.Expired() || d.t3111.Expired()
}

// Active reports whether the decoder is accepting frames and has not
// become recyclable.
func (d *Decoder) Active() bool {
	d.mu.Lock()
	active := d.active
	d.mu.Unlock()
	return active && !d.Recyclable()
}

// CountGoodFrame updates the FER filter for a successfully decoded
// frame and resets the link-loss timer. T3101 is reset only the first
// time a good frame arrives while it is still armed; subsequent good
// frames leave it alone, since its only job is to confirm that the
// channel was ever usable after assignment.
func (d *Decoder) CountGoodFrame() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fer.CountGood()
	d.t3109.Arm()
	if d.t3101.Armed() && !d.t3101Consumed {
		d.t3101.Disarm()
		d.t3101Consumed = true
	}
}

// CountBadFrame updates the FER filter for a dropped/failed frame.
// Timers are left untouched: a single loss does not affect
// recyclability, only a sustained absence of good frames does.
func (d *Decoder) CountBadFrame() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fer.CountBad()
}

// FER returns the current smoothed frame erasure rate.
func (d *Decoder) FER() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fer.Value()
}

// PhyRing accumulates the last four bursts' RSSI and timing-error
// measurements in a circular buffer and averages them, the way
// GSML1FEC.cpp's mRSSI[4]/mTimingError[4] ring feeds the SACCH closed
// loop a 4-burst mean rather than a single burst's reading.
type PhyRing struct {
	rssi        [4]float64
	timingError [4]float64
	next        int
	filled      bool
}

// Add records one burst's measurement into the ring, overwriting the
// oldest slot.
func (r *PhyRing) Add(rssi, timingError float64) {
	r.rssi[r.next] = rssi
	r.timingError[r.next] = timingError
	r.next = (r.next + 1) % 4
	r.filled = true
}

// Seed resets the ring to a single measurement repeated across all four
// slots, the fast path used when a channel is handed off without
// waiting for four fresh bursts to accumulate.
func (r *PhyRing) Seed(rssi, timingError float64) {
	for i := range r.rssi {
		r.rssi[i] = rssi
		r.timingError[i] = timingError
	}
	r.next = 0
	r.filled = true
}

// Mean returns the ring's average RSSI and timing error, or zero values
// before the first measurement.
func (r *PhyRing) Mean() (rssi, timingError float64) {
	if !r.filled {
		return 0, 0
	}
	for i := 0; i < 4; i++ {
		rssi += r.rssi[i]
		timingError += r.timingError[i]
	}
	return rssi / 4, timingError / 4
}

// ARFCN returns the decoder's assigned ARFCN.
func (d *Decoder) ARFCN() int { return d.arfcn }

// TypeAndOffset returns the channel's type/subchannel identifier.
func (d *Decoder) TypeAndOffset() string { return d.typeAndOffset }

// Mapping returns the decoder's TDMA slot schedule.
func (d *Decoder) Mapping() *tdma.Mapping { return d.mapping }

// Sibling returns the paired encoder for this channel.
func (d *Decoder) Sibling() *Encoder { return d.sibling }

// Encoder is the shared base for every channel-type encoder: open/close
// lifecycle, TDMA scheduling (resync/waitToSend/rollForward) and idle
// fill. Channel-type encoders embed this and drive it from their own
// writeHighSide/service loop.
type Encoder struct {
	mu      sync.Mutex
	active  bool
	arfcn   int
	typeAndOffset string
	mapping *tdma.Mapping
	sibling *Decoder
	radio   Radio
	sched   Scheduler

	nextWriteTime tdma.Time
	prevWriteTime tdma.Time
	totalBursts   int
}

// NewEncoder builds an Encoder for one logical channel.
func NewEncoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, radio Radio, sched Scheduler) *Encoder {
	return &Encoder{arfcn: arfcn, typeAndOffset: typeAndOffset, mapping: mapping, radio: radio, sched: sched}
}

// Open marks the encoder active.
func (e *Encoder) Open() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
}

// Close marks the encoder inactive; the sibling decoder's T3111 governs
// when the channel becomes recyclable.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
}

// Active reports whether the encoder is active and its sibling decoder
// has not become recyclable: an encoder whose own flag says active but
// whose sibling has timed out must stop transmitting too.
func (e *Encoder) Active() bool {
	e.mu.Lock()
	active := e.active
	sib := e.sibling
	e.mu.Unlock()
	if sib != nil && sib.Recyclable() {
		return false
	}
	return active
}

// ARFCN returns the encoder's assigned ARFCN.
func (e *Encoder) ARFCN() int { return e.arfcn }

// TypeAndOffset returns the channel's type/subchannel identifier.
func (e *Encoder) TypeAndOffset() string { return e.typeAndOffset }

// Mapping returns the encoder's TDMA slot schedule.
func (e *Encoder) Mapping() *tdma.Mapping { return e.mapping }

// Sibling returns the paired decoder for this channel.
func (e *Encoder) Sibling() *Decoder { return e.sibling }

// Resync snaps the encoder's next write time to the clock's current
// TDMA time, pinned to the encoder's own timeslot and rolled forward to
// the mapping offset due at the current burst count, used once at
// startup before the first rollForward.
func (e *Encoder) Resync(c clock.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := c.Now()
	now.TN = e.mapping.Slot()
	e.nextWriteTime = e.mapping.RollForward(now, e.totalBursts)
}

// WaitToSend blocks until the clock reaches the encoder's next write
// time.
func (e *Encoder) WaitToSend(c clock.Source) {
	e.mu.Lock()
	t := e.nextWriteTime
	e.mu.Unlock()
	c.Wait(t)
}

// NextWriteTime returns the time the encoder's next burst must be
// submitted at.
func (e *Encoder) NextWriteTime() tdma.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextWriteTime
}

// RollForward advances the encoder's schedule to the next burst in its
// mapping and notifies the scheduler, matching the invariant that a
// burst is only ever written at mNextWriteTime recorded immediately
// before rollForward runs.
func (e *Encoder) RollForward() {
	e.mu.Lock()
	e.prevWriteTime = e.nextWriteTime
	e.totalBursts++
	e.nextWriteTime = e.mapping.RollForward(e.nextWriteTime, e.totalBursts)
	next := e.nextWriteTime
	e.mu.Unlock()
	e.signalNextWtime(next)
}

func (e *Encoder) signalNextWtime(t tdma.Time) {
	if e.sched != nil {
		e.sched.SignalNextWtime(t)
	}
}

// WriteBurst hands a completed burst to the encoder's radio
// collaborator without advancing the schedule; callers follow it with
// RollForward once the burst has been submitted. A nil radio is a no-op,
// the same way a nil sched or sibling is tolerated elsewhere.
func (e *Encoder) WriteBurst(tb *burst.TxBurst) {
	if e.radio == nil {
		return
	}
	e.radio.WriteHighSide(tb)
}

// SendIdleFill transmits filler on every burst of one mapping period,
// used when an encoder has nothing real to send. filler is copied into
// a fresh TxBurst for each iteration.
func (e *Encoder) SendIdleFill(filler bitvec.BitVector) {
	for i := 0; i < e.mapping.NumFrames; i++ {
		tb := burst.NewTxBurst(e.NextWriteTime())
		filler.CopyToSegment(tb.Bits, 0)
		e.WriteBurst(tb)
		e.RollForward()
	}
}

// Pair owns one logical channel's encoder and decoder and wires their
// sibling back-references. The pair is the sole owner; encoder and
// decoder only ever hold a non-owning pointer back to each other.
type Pair struct {
	Encoder *Encoder
	Decoder *Decoder
}

// NewPair builds a Pair and links enc and dec as siblings.
func NewPair(enc *Encoder, dec *Decoder) *Pair {
	enc.sibling = dec
	dec.sibling = enc
	return &Pair{Encoder: enc, Decoder: dec}
}
