// Package sacch implements the slow associated control channel: XCCH's
// FEC pipeline extended with a 2-octet physical header and the
// closed-loop power/timing-advance control law that drives it.
// Grounded on GSML1FEC.cpp's SACCHL1Encoder/SACCHL1Decoder.
package sacch

import (
	"sync"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/config"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/powertable"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
	"github.com/bloodandwolf/Osmo-USRP/xcch"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("sacch")

// uplink header bit positions within the 16-bit physical header, per
// GSML1FEC.cpp's SACCHL1Decoder::decode: the handset's report fields sit
// at different offsets than the downlink's ordered-value fields.
const (
	uplinkPowerOffset   = 3
	uplinkPowerLen      = 5
	uplinkTimingOffset  = 9
	uplinkTimingLen     = 7
	uplinkTimingInvalid = 64 // a reported TA at or beyond this is out of range and ignored
)

// Encoder implements the downlink SACCH pipeline: XCCH's block and
// convolutional code over a 21-octet L2 payload, prefixed with a 2-octet
// physical header carrying the ordered MS power and timing advance.
type Encoder struct {
	*xcch.Encoder

	mu       sync.Mutex
	cfg      config.Config
	powerTbl *powertable.Table

	orderedPower int
	orderedTA    int
	haveHistory  bool

	decoder *Decoder // sibling, for pulling fresh uplink measurements
}

// NewEncoder builds a SACCH encoder.
func NewEncoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, radio l1fec.Radio, cfg config.Config, powerTbl *powertable.Table, trainingSeq bitvec.BitVector, tap xcch.Tap) *Encoder {
	return &Encoder{
		Encoder:  xcch.NewEncoder(arfcn, typeAndOffset, mapping, radio, nil, true, trainingSeq, tap),
		cfg:      cfg,
		powerTbl: powerTbl,
	}
}

// Open seeds the ordered power/TA state from the RACH assumption: a
// handset's first access burst is known to have been sent at max power
// with zero timing advance, before any real measurement exists.
func (e *Encoder) Open() {
	e.Encoder.Open()
	e.mu.Lock()
	e.orderedPower = e.cfg.MSPower.Max
	e.orderedTA = 0
	e.haveHistory = false
	e.mu.Unlock()
}

// attach links this encoder to its sibling decoder so the closed loop
// can pull fresh uplink measurements before each downlink block.
func (e *Encoder) attach(d *Decoder) { e.decoder = d }

// updateControl runs the closed-loop power/TA law against the sibling
// decoder's most recent uplink measurements.
func (e *Encoder) updateControl() {
	if e.decoder == nil {
		return
	}
	rssi, te, actualPower, actualTiming, ok := e.decoder.measurements()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	deltaP := rssi - float64(e.cfg.RSSITarget)
	targetPower := float64(actualPower) - deltaP
	if e.haveHistory {
		alpha := float64(e.cfg.MSPower.Damping) / 100
		e.orderedPower = int(alpha*float64(e.orderedPower) + (1-alpha)*targetPower)
	} else {
		e.orderedPower = int(targetPower)
		e.haveHistory = true
	}
	e.orderedPower = clamp(e.orderedPower, e.cfg.MSPower.Min, e.cfg.MSPower.Max)

	targetTiming := float64(actualTiming) + te
	beta := float64(e.cfg.MSTA.Damping) / 100
	e.orderedTA = int(beta*float64(e.orderedTA) + (1-beta)*targetTiming)
	e.orderedTA = clamp(e.orderedTA, 0, e.cfg.MSTA.Max)
}

// SetPhy is the fast path used when a channel is handed off from
// another SACCH without waiting for four fresh uplink bursts: it
// computes an ordered power/TA once, undamped, directly from the given
// measurement.
func (e *Encoder) SetPhy(rssi, timingError float64, actualPower, actualTiming int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	deltaP := rssi - float64(e.cfg.RSSITarget)
	e.orderedPower = clamp(int(float64(actualPower)-deltaP), e.cfg.MSPower.Min, e.cfg.MSPower.Max)
	e.orderedTA = clamp(int(float64(actualTiming)+timingError), 0, e.cfg.MSTA.Max)
	e.haveHistory = true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// physicalHeader builds the 2-octet ordered power/TA header for the next
// downlink block.
func (e *Encoder) physicalHeader() []byte {
	e.mu.Lock()
	power := e.powerTbl.EncodePower(e.orderedPower)
	ta := e.orderedTA
	e.mu.Unlock()

	hdr := bitvec.New(16)
	hdr.FillField(0, 8, uint64(power))
	hdr.FillField(8, 8, uint64(ta))
	packed := make([]byte, 2)
	hdr.Pack(packed)
	return packed
}

// WriteHighSide dispatches an L2 primitive exactly as xcch.Encoder does,
// except DATA runs the closed-loop control law and builds this block's
// physical header before encoding.
func (e *Encoder) WriteHighSide(frame l2.Frame) error {
	switch frame.Primitive {
	case l2.Data:
		e.updateControl()
		payload := make([]byte, xcch.PayloadLen(true)/8)
		copy(payload, frame.Payload[:len(payload)])
		e.SendBlock(payload, e.physicalHeader())
		return nil
	default:
		return e.Encoder.WriteHighSide(frame)
	}
}

// Decoder implements the uplink SACCH pipeline: XCCH's decode, plus
// parsing the handset's self-reported power/TA from the physical header
// and averaging the radio's RSSI/timing-error measurements across the
// 4-burst block for the encoder's closed loop.
type Decoder struct {
	*xcch.Decoder
	real     sapmux.Upstream
	powerTbl *powertable.Table

	mu                            sync.Mutex
	haveMeasurement               bool
	rssiMean, teMean              float64
	actualMSPower, actualMSTiming int
}

// NewDecoder builds a SACCH decoder.
func NewDecoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, upstream sapmux.Upstream, powerTbl *powertable.Table, tap xcch.Tap) *Decoder {
	d := &Decoder{real: upstream, powerTbl: powerTbl}
	d.Decoder = xcch.NewDecoder(arfcn, typeAndOffset, mapping, true, d, tap)
	return d
}

// SetPhy is the uplink fast path used when a channel is handed off from
// another SACCH without waiting for four fresh uplink bursts: it seeds
// the RSSI/timing-error ring and the handset's self-reported power/TA
// directly from the given measurement, undamped.
func (d *Decoder) SetPhy(rssi, timingError float64, actualPower, actualTiming int) {
	d.Decoder.SeedPhy(rssi, timingError)
	d.mu.Lock()
	d.rssiMean, d.teMean = rssi, timingError
	d.actualMSPower = actualPower
	d.actualMSTiming = actualTiming
	d.haveMeasurement = true
	d.mu.Unlock()
}

// WriteLowSideBurst feeds one received burst into the decoder. It exists
// because Decoder implements sapmux.Upstream's own WriteLowSide (a
// different signature) at the same embedding depth, which shadows the
// embedded xcch.Decoder's burst-receiving WriteLowSide; callers driving
// bursts in from the radio side use this name instead of reaching
// through the embedded field.
func (d *Decoder) WriteLowSideBurst(rb *burst.RxBurst) {
	d.Decoder.WriteLowSide(rb)
}

// Pair links a SACCH encoder and decoder so the encoder can pull the
// decoder's measurements for its closed loop, and wires their l1fec
// sibling back-references as every other channel pair does.
func Pair(enc *Encoder, dec *Decoder) *l1fec.Pair {
	enc.attach(dec)
	return l1fec.NewPair(enc.Encoder.Encoder, dec.Decoder.Decoder)
}

// measurements returns the most recent uplink RSSI/timing-error means
// and the handset's self-reported power/TA, or ok=false if nothing has
// been decoded yet.
func (d *Decoder) measurements() (rssi, te float64, actualPower, actualTiming int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rssiMean, d.teMean, d.actualMSPower, d.actualMSTiming, d.haveMeasurement
}

// WriteLowSideSACCH intercepts the embedded xcch.Decoder's delivery to
// parse the uplink physical header (a different bit layout than the
// downlink's ordered-value header occupying the same 16 bits) before
// forwarding the frame to the real upstream.
func (d *Decoder) WriteLowSideSACCH(frame l2.Frame, at tdma.Time, rssi, ta, fer float64, _, _ int) {
	header := d.Decoder.Header()
	code := uint(header.PeekField(uplinkPowerOffset, uplinkPowerLen))
	actualPower := d.powerTbl.DecodePower(code)
	reportedTiming := int(header.PeekField(uplinkTimingOffset, uplinkTimingLen))

	d.mu.Lock()
	d.rssiMean, d.teMean = rssi, ta
	d.actualMSPower = actualPower
	if reportedTiming < uplinkTimingInvalid {
		d.actualMSTiming = reportedTiming
	}
	d.haveMeasurement = true
	d.mu.Unlock()

	if d.real != nil {
		d.real.WriteLowSideSACCH(frame, at, rssi, ta, fer, actualPower, d.actualMSTiming)
	}
}

// The remaining Upstream methods exist only so Decoder can stand in as
// the embedded xcch.Decoder's collaborator; SACCH never receives plain
// or TCH traffic, and has no encoder of its own to notify via this path.
func (d *Decoder) WriteLowSide(l2.Frame, tdma.Time, float64, float64, float64)  {}
func (d *Decoder) WriteLowSideTCH([33]byte, tdma.Time, float64, float64, float64) {}
func (d *Decoder) SignalNextWtime(tdma.Time)                                    {}
func (d *Decoder) WriteHighSide(l2.Frame)                                      {}

var _ sapmux.Upstream = (*Decoder)(nil)
