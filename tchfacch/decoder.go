package tchfacch

import (
	"math/rand"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/fec"
	"github.com/bloodandwolf/Osmo-USRP/gsmtap"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

// Tap is the optional side-effect-only sink every decoded half-block is
// written to, mirroring package rach's GSMTAP tap.
type Tap interface {
	Write(h gsmtap.Header, payload []byte) error
}

// Decoder implements the uplink TCH/FACCH pipeline: 8-burst diagonal
// deinterleave, FACCH-vs-speech discrimination from the Hu stealing
// flag, and GSM 06.11 bad-frame masking of lost speech. Grounded on
// GSML1FEC.cpp's TCHFACCHL1Decoder::writeLowSide/decode.
type Decoder struct {
	*l1fec.Decoder
	upstream sapmux.Upstream
	rng      *rand.Rand
	tap      Tap

	rows     [diagSpan]bitvec.SoftVector
	received [diagSpan]bool
	stealing [diagSpan]byte // Hu of each accumulated burst
	blockAt  tdma.Time
	phy      l1fec.PhyRing

	// lastGoodSpeech is the most recently decoded good speech frame,
	// repeated with GSM 06.11 masking whenever a speech frame fails its
	// parity check.
	lastGoodSpeech [33]byte
	haveGoodSpeech bool
}

// NewDecoder builds a TCH/FACCH decoder for one traffic channel. seed
// gives the per-channel masking RNG its own stream, so two channels on
// the same ARFCN never replay identical masking noise.
func NewDecoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, upstream sapmux.Upstream, seed int64, tap Tap) *Decoder {
	d := &Decoder{
		Decoder:  l1fec.NewDecoder(arfcn, typeAndOffset, mapping),
		upstream: upstream,
		rng:      rand.New(rand.NewSource(seed)),
		tap:      tap,
	}
	d.resetBlock()
	return d
}

func (d *Decoder) resetBlock() {
	for i := range d.rows {
		d.rows[i] = bitvec.NewSoft(rowLen)
		d.received[i] = false
	}
}

// WriteLowSide ingests one received burst. Bursts accumulate across a
// full 8-burst diagonal pair; both halves of the interleave only become
// fully determined once all 8 have arrived, so decoding happens on
// B==7, not B==3 as it would for a 4-burst XCCH block.
func (d *Decoder) WriteLowSide(rb *burst.RxBurst) {
	if !d.Active() {
		return
	}
	b := d.Mapping().ReverseMapping(rb.Time.FN) % diagSpan
	if b < 0 {
		b += diagSpan
	}

	row := bitvec.NewSoft(rowLen)
	rb.Data1().CopyToSegment(row, 0)
	rb.Data2().CopyToSegment(row, 57)
	d.rows[b] = row
	d.received[b] = true
	_, hu := rb.StealingBits()
	d.stealing[b] = hu
	d.phy.Add(rb.RSSI, rb.TimingError)
	if b == 0 {
		d.blockAt = rb.Time
	}

	if b == diagSpan-1 {
		d.decodePair()
		d.resetBlock()
	}
}

// decodePair recovers the two 456-bit blocks diagonally interleaved
// across the 8 accumulated bursts and delivers each as FACCH or speech
// depending on its half's stealing flag.
func (d *Decoder) decodePair() {
	for half := 0; half < 2; half++ {
		offset := half * 4
		c := bitvec.NewSoft(totalCoded)
		for k := 0; k < totalCoded; k++ {
			row, col := interleaveCell(k, offset)
			if d.received[row] {
				c[k] = d.rows[row][col]
			} else {
				c[k] = 0.5 // erasure
			}
		}
		d.decodeHalf(c, d.stealing[offset] == 1)
	}
}

func (d *Decoder) decodeHalf(c bitvec.SoftVector, stolen bool) {
	rssi, timingError := d.phy.Mean()
	if stolen {
		payload, good := decodeFACCH(c)
		if !good {
			d.CountBadFrame()
			log.Debugf("%s: FACCH block failed parity, dropped", d.TypeAndOffset())
			return
		}
		d.CountGoodFrame()
		var frame l2.Frame
		frame.Primitive = l2.Data
		copy(frame.Payload[:], payload[:])
		if d.upstream != nil {
			d.upstream.WriteLowSide(frame, d.blockAt, rssi, timingError, d.FER())
		}
		d.tapWrite(rssi, payload[:])
		return
	}

	payload, good := decodeTCH(c)
	if !good {
		d.CountBadFrame()
		if d.haveGoodSpeech {
			fec.MaskBadFrame(d.lastGoodSpeech[:], d.rng)
			if d.upstream != nil {
				d.upstream.WriteLowSideTCH(d.lastGoodSpeech, d.blockAt, rssi, timingError, d.FER())
			}
		}
		return
	}
	d.CountGoodFrame()
	d.lastGoodSpeech = payload
	d.haveGoodSpeech = true
	if d.upstream != nil {
		d.upstream.WriteLowSideTCH(payload, d.blockAt, rssi, timingError, d.FER())
	}
	d.tapWrite(rssi, payload[:])
}

// tapWrite writes one successfully decoded half-block to the GSMTAP
// tap, if one is attached.
func (d *Decoder) tapWrite(rssi float64, payload []byte) {
	if d.tap == nil {
		return
	}
	h := gsmtap.Header{
		Timeslot:    uint8(d.blockAt.TN),
		ARFCN:       uint16(d.ARFCN()),
		Uplink:      true,
		SignalDBm:   int8(rssi),
		FrameNumber: uint32(d.blockAt.FN),
		SubType:     gsmtap.BurstNormal,
	}
	if err := d.tap.Write(h, payload); err != nil {
		log.Warningf("%s: GSMTAP write failed: %v", d.TypeAndOffset(), err)
	}
}
