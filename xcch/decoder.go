package xcch

import (
	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/gsmtap"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

// Tap is the optional side-effect-only sink every decoded block is
// written to, mirroring package rach's GSMTAP tap.
type Tap interface {
	Write(h gsmtap.Header, payload []byte) error
}

// Decoder implements the XCCH decode pipeline: 4-burst deinterleave
// (with missing bursts treated as erasures), Viterbi decode, parity
// inversion and syndrome check, grounded on
// GSML1FEC.cpp's XCCHL1Decoder::writeLowSide / decode.
type Decoder struct {
	*l1fec.Decoder
	hasPhysicalHeader bool
	upstream          sapmux.Upstream
	tap               Tap

	rows       [blockSize]bitvec.SoftVector
	received   [blockSize]bool
	blockAt    tdma.Time
	phy        l1fec.PhyRing
	lastHeader bitvec.BitVector
}

// NewDecoder builds an XCCH decoder for one logical channel.
func NewDecoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, hasPhysicalHeader bool, upstream sapmux.Upstream, tap Tap) *Decoder {
	d := &Decoder{
		Decoder:           l1fec.NewDecoder(arfcn, typeAndOffset, mapping),
		hasPhysicalHeader: hasPhysicalHeader,
		upstream:          upstream,
		tap:               tap,
	}
	d.resetBlock()
	return d
}

// SeedPhy resets the RSSI/timing-error ring to a single measurement,
// used by package sacch's Decoder.SetPhy handoff fast path.
func (d *Decoder) SeedPhy(rssi, timingError float64) {
	d.phy.Seed(rssi, timingError)
}

func (d *Decoder) resetBlock() {
	for i := range d.rows {
		d.rows[i] = bitvec.NewSoft(rowLen)
		d.received[i] = false
	}
}

// WriteLowSide ingests one received burst. It is dispatched by the
// radio layer for this channel's timeslot; the decoder accumulates
// bursts until B==3 arrives, at which point it attempts to decode the
// whole block. A burst whose index is out of the expected [0,4)
// sequence (because an earlier one in the block was lost) still
// overwrites whatever slot its own reverse mapping says it belongs to,
// so a dropped B==3 can mix with the start of the next block -- this is
// the decoder's known, documented edge-case behavior, not a bug to be
// engineered around.
func (d *Decoder) WriteLowSide(rb *burst.RxBurst) {
	if !d.Active() {
		return
	}
	b := d.Mapping().ReverseMapping(rb.Time.FN) % blockSize
	if b < 0 {
		b += blockSize
	}

	row := bitvec.NewSoft(rowLen)
	rb.Data1().CopyToSegment(row, 0)
	rb.Data2().CopyToSegment(row, 57)
	d.rows[b] = row
	d.received[b] = true
	d.phy.Add(rb.RSSI, rb.TimingError)
	if b == 0 {
		d.blockAt = rb.Time
	}

	if b == blockSize-1 {
		d.decodeBlock()
		d.resetBlock()
	}
}

func (d *Decoder) decodeBlock() {
	c := bitvec.NewSoft(codedLen)
	for k := 0; k < codedLen; k++ {
		row, col := interleaveCell(k)
		if d.received[row] {
			c[k] = d.rows[row][col]
		} else {
			c[k] = 0.5 // erasure
		}
	}

	u := bitvec.New(uncodedLen)
	viterbi.Decode(c, u)

	d2 := u.Head(dataLen)
	p := u.Segment(dataLen, parityLen)
	p.Invert()
	dp := u.Head(dataLen + parityLen)
	if blockCoder.Syndrome(dp) != 0 {
		d.CountBadFrame()
		log.Debugf("%s: block-code syndrome mismatch, frame dropped", d.TypeAndOffset())
		return
	}

	off := headerOffset(d.hasPhysicalHeader)
	payloadLen := dataLen - off
	if d.hasPhysicalHeader {
		header := bitvec.New(off)
		copy(header, d2.Head(off))
		d.lastHeader = header
	}
	payloadBits := d2.Segment(off, payloadLen)
	payloadBits.LSB8MSB()
	d.CountGoodFrame()

	var frame l2.Frame
	frame.Primitive = l2.Data
	packed := make([]byte, payloadLen/8)
	payloadBits.Pack(packed)
	copy(frame.Payload[:], packed)

	rssi, timingError := d.phy.Mean()
	if d.upstream != nil {
		if d.hasPhysicalHeader {
			d.upstream.WriteLowSideSACCH(frame, d.blockAt, rssi, timingError, d.FER(), 0, 0)
		} else {
			d.upstream.WriteLowSide(frame, d.blockAt, rssi, timingError, d.FER())
		}
	}

	if d.tap != nil {
		h := gsmtap.Header{
			Timeslot:    uint8(d.blockAt.TN),
			ARFCN:       uint16(d.ARFCN()),
			Uplink:      true,
			SignalDBm:   int8(rssi),
			FrameNumber: uint32(d.blockAt.FN),
			SubType:     gsmtap.BurstNormal,
		}
		if err := d.tap.Write(h, packed); err != nil {
			log.Warningf("%s: GSMTAP write failed: %v", d.TypeAndOffset(), err)
		}
	}
}

// Header returns the raw, still-MSB-first physical header bits (U[0..16))
// of the most recently decoded block, valid only when hasPhysicalHeader
// is true. Channel types with their own header semantics (package sacch)
// use this instead of the generic WriteLowSideSACCH measurement fields,
// since the uplink and downlink physical headers use different bit
// layouts within the same 16 bits.
func (d *Decoder) Header() bitvec.BitVector {
	return d.lastHeader
}
