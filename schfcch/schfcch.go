// Package schfcch implements the two periodic, upper-layer-independent
// broadcast encoders: FCCH (a zero-filled frequency-correction burst)
// and SCH (a synchronization burst carrying BSIC and TDMA frame
// parameters). Grounded on GSML1FEC.cpp's GeneratorL1Encoder,
// FCCHL1Encoder and SCHL1Encoder; kept as two distinct types per the
// Design Note that FCCH is not worth generalizing into XCCH's pipeline.
package schfcch

import (
	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/fec"
	"github.com/bloodandwolf/Osmo-USRP/gsmtap"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/tdma"

	logging "github.com/op/go-logging"
)

// Tap is the optional side-effect-only sink every transmitted burst is
// written to, mirroring package rach's GSMTAP tap.
type Tap interface {
	Write(h gsmtap.Header, payload []byte) error
}

var log = logging.MustGetLogger("schfcch")

const (
	schDataLen   = 25
	schParityLen = 10
	schTailLen   = 4
	schUncoded   = schDataLen + schParityLen + schTailLen // 39
	schCoded     = 2 * schUncoded                         // 78
	schHalfLen   = 39
	schOffset1   = 3
	schOffset2   = 106
)

var (
	schBlockCoder = fec.NewParityBlockCoder(0x10004820009, schDataLen, schParityLen)
	schViterbi    = fec.NewViterbiCoder()
)

// FCCHEncoder is the frequency-correction channel: a zero-filled burst
// carrying no payload, emitted on every frame its mapping schedules.
type FCCHEncoder struct {
	*l1fec.Encoder
	tap Tap
}

// NewFCCHEncoder builds an FCCH encoder.
func NewFCCHEncoder(arfcn int, mapping *tdma.Mapping, radio l1fec.Radio, tap Tap) *FCCHEncoder {
	return &FCCHEncoder{Encoder: l1fec.NewEncoder(arfcn, "FCCH", mapping, radio, nil), tap: tap}
}

// Send emits one zero-filled FCCH burst and rolls the schedule forward.
func (e *FCCHEncoder) Send() {
	tb := burst.NewTxBurst(e.NextWriteTime())
	// the zero value is the correct payload: FCCH carries no data.
	log.Debugf("FCCH: tx burst at %s", tb.Time)
	if e.tap != nil {
		h := gsmtap.Header{
			Timeslot:    uint8(tb.Time.TN),
			ARFCN:       uint16(e.ARFCN()),
			FrameNumber: uint32(tb.Time.FN),
			SubType:     gsmtap.BurstFCCH,
		}
		if err := e.tap.Write(h, nil); err != nil {
			log.Warningf("FCCH: GSMTAP write failed: %v", err)
		}
	}
	e.WriteBurst(tb)
	e.RollForward()
}

// SCHEncoder is the synchronization channel: a periodic burst carrying
// the BSIC and the reduced TDMA frame number.
type SCHEncoder struct {
	*l1fec.Encoder
	trainingSeq bitvec.BitVector
	tap         Tap
}

// NewSCHEncoder builds an SCH encoder.
func NewSCHEncoder(arfcn int, mapping *tdma.Mapping, radio l1fec.Radio, trainingSeq bitvec.BitVector, tap Tap) *SCHEncoder {
	return &SCHEncoder{Encoder: l1fec.NewEncoder(arfcn, "SCH", mapping, radio, nil), trainingSeq: trainingSeq, tap: tap}
}

// Encode block- and convolutional-encodes 4 bytes of BSIC/TDMA
// parameters into the 78 coded bits, split as two 39-bit halves.
func (e *SCHEncoder) Encode(bsic uint8, fn int) (half1, half2 bitvec.BitVector) {
	u := bitvec.New(schUncoded)
	d := u.Head(schDataLen)
	// 6 bits BSIC, 19 bits reduced frame number (T1'/T2/T3 per GSM
	// 05.02 3.3.2.2.1), packed MSB-first to match every other field.
	d.FillField(0, 6, uint64(bsic&0x3f))
	d.FillField(6, 19, uint64(fn&0x7ffff))

	p := u.Segment(schDataLen, schParityLen)
	schBlockCoder.WriteParityWord(d, p)

	c := bitvec.New(schCoded)
	schViterbi.Encode(u, c)
	return c.Head(schHalfLen), c.Tail(schHalfLen)
}

// Send encodes and transmits one SCH burst for the given BSIC/frame
// number and rolls the schedule forward.
func (e *SCHEncoder) Send(bsic uint8, fn int) {
	half1, half2 := e.Encode(bsic, fn)
	tb := burst.NewTxBurst(e.NextWriteTime())
	half1.CopyToSegment(tb.Bits, schOffset1)
	half2.CopyToSegment(tb.Bits, schOffset2)
	if e.trainingSeq != nil {
		tb.SetTrainingSequence(e.trainingSeq)
	}
	log.Debugf("SCH: tx burst bsic=%d fn=%d at %s", bsic, fn, tb.Time)
	if e.tap != nil {
		payload := []byte{bsic & 0x3f, byte(fn >> 16), byte(fn >> 8), byte(fn)}
		h := gsmtap.Header{
			Timeslot:    uint8(tb.Time.TN),
			ARFCN:       uint16(e.ARFCN()),
			FrameNumber: uint32(tb.Time.FN),
			SubType:     gsmtap.BurstSCH,
		}
		if err := e.tap.Write(h, payload); err != nil {
			log.Warningf("SCH: GSMTAP write failed: %v", err)
		}
	}
	e.WriteBurst(tb)
	e.RollForward()
}
