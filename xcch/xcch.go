// Package xcch implements the control-channel FEC pipeline shared by
// every non-traffic logical channel (SDCCH, BCCH, CCCH, AGCH, PCH):
// 184-bit block code, rate-1/2 convolutional code and 4-burst block
// interleaving, grounded on GSML1FEC.cpp's XCCHL1Encoder/XCCHL1Decoder
// and following this tree's encoder/decoder base from package l1fec.
package xcch

import (
	"fmt"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/fec"
	"github.com/bloodandwolf/Osmo-USRP/gsmtap"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("xcch")

const (
	dataLen    = 184
	parityLen  = 40
	tailLen    = 4
	uncodedLen = dataLen + parityLen + tailLen // 228
	codedLen   = 2 * uncodedLen                // 456
	blockSize  = 4                             // bursts per interleaved block
	rowLen     = 114                           // codedLen / blockSize
)

var (
	blockCoder = fec.NewParityBlockCoder(0x10004820009, dataLen, parityLen)
	viterbi    = fec.NewViterbiCoder()
)

// interleaveCell returns the (row, col) an XCCH coded bit k maps to,
// per GSM 05.03 4.1.4: I[k%4][2*((49k) mod 57) + (k mod 8)/4] = C[k].
func interleaveCell(k int) (row, col int) {
	row = k % blockSize
	col = 2*((49*k)%57) + (k%8)/4
	return
}

// headerOffset returns the width of the physical header prefix within
// D: 0 for plain control channels, 16 for SACCH (whose first two octets
// are the physical header, handled by package sacch's Encoder/Decoder,
// which embed this type). The header is carried out of D's existing
// 184-bit budget, not in addition to it -- SACCH's L2 payload is 21
// octets where every other XCCH-family channel carries 23.
func headerOffset(hasPhysicalHeader bool) int {
	if hasPhysicalHeader {
		return 16
	}
	return 0
}

// PayloadLen returns the L2 payload width in bits this encoder/decoder
// carries: 184 normally, or 184-16=168 when a 2-octet physical header
// is prefixed onto D.
func PayloadLen(hasPhysicalHeader bool) int {
	return dataLen - headerOffset(hasPhysicalHeader)
}

// Encoder implements the XCCH encode pipeline: block code, convolutional
// code, 4-burst interleave, burst mapping. SACCH embeds this with
// hasPhysicalHeader=true and its own 2-octet physical header prepended.
type Encoder struct {
	*l1fec.Encoder
	hasPhysicalHeader bool
	trainingSeq       bitvec.BitVector
	tap               Tap
}

// NewEncoder builds an XCCH encoder for one logical channel.
func NewEncoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, radio l1fec.Radio, sched sapmux.Upstream, hasPhysicalHeader bool, trainingSeq bitvec.BitVector, tap Tap) *Encoder {
	return &Encoder{
		Encoder:           l1fec.NewEncoder(arfcn, typeAndOffset, mapping, radio, sched),
		hasPhysicalHeader: hasPhysicalHeader,
		trainingSeq:       trainingSeq,
		tap:               tap,
	}
}

// Encode runs the full XCCH encode pipeline over an L2 payload and
// returns the four interleaved rows ready for burst mapping. physHdr is
// used only when hasPhysicalHeader is true (SACCH); it must be 2 octets,
// and payload must be PayloadLen(e.hasPhysicalHeader)/8 octets.
func (e *Encoder) Encode(payload []byte, physHdr []byte) [blockSize]bitvec.BitVector {
	u := bitvec.New(uncodedLen)
	d := u.Head(dataLen)
	off := headerOffset(e.hasPhysicalHeader)
	payloadLen := dataLen - off

	if e.hasPhysicalHeader {
		bitvec.Unpack(physHdr, off).CopyToSegment(d, 0)
	}
	payloadBits := d.Segment(off, payloadLen)
	bitvec.Unpack(payload, payloadLen).CopyToSegment(payloadBits, 0)
	payloadBits.LSB8MSB()

	p := u.Segment(dataLen, parityLen)
	blockCoder.WriteParityWord(d, p)
	p.Invert() // XCCH parity is transmitted inverted

	c := bitvec.New(codedLen)
	viterbi.Encode(u, c)

	var rows [blockSize]bitvec.BitVector
	for i := range rows {
		rows[i] = bitvec.New(rowLen)
	}
	for k := 0; k < codedLen; k++ {
		row, col := interleaveCell(k)
		rows[row][col] = c[k]
	}
	return rows
}

// SendBlock encodes payload and transmits it as four interleaved
// bursts, rolling the schedule forward after each.
func (e *Encoder) SendBlock(payload []byte, physHdr []byte) {
	rows := e.Encode(payload, physHdr)
	first := e.NextWriteTime()
	for b := 0; b < blockSize; b++ {
		tb := burst.NewTxBurst(e.NextWriteTime())
		rows[b].Head(57).CopyToSegment(tb.Bits, burst.Data1Offset)
		rows[b].Tail(57).CopyToSegment(tb.Bits, burst.Data2Offset)
		tb.SetStealingBits(1, 1)
		if e.trainingSeq != nil {
			tb.SetTrainingSequence(e.trainingSeq)
		}
		log.Debugf("%s: tx burst %d at %s", e.TypeAndOffset(), b, tb.Time)
		e.WriteBurst(tb)
		e.RollForward()
	}

	if e.tap != nil {
		h := gsmtap.Header{
			Timeslot:    uint8(first.TN),
			ARFCN:       uint16(e.ARFCN()),
			FrameNumber: uint32(first.FN),
			SubType:     gsmtap.BurstNormal,
		}
		if err := e.tap.Write(h, payload); err != nil {
			log.Warningf("%s: GSMTAP write failed: %v", e.TypeAndOffset(), err)
		}
	}
}

// WriteHighSide dispatches an L2 primitive the way GSML1FEC.cpp's
// XCCHL1Encoder::writeHighSide does: DATA encodes and sends, ESTABLISH
// opens both sibling sides, RELEASE closes both, ERROR closes only the
// transmitter.
func (e *Encoder) WriteHighSide(frame l2.Frame) error {
	switch frame.Primitive {
	case l2.Data:
		e.SendBlock(frame.Payload[:], nil)
		return nil
	case l2.Establish:
		e.Open()
		if sib := e.Sibling(); sib != nil {
			sib.Open()
		}
		return nil
	case l2.Release:
		e.Close()
		if sib := e.Sibling(); sib != nil {
			sib.Close()
		}
		return nil
	case l2.Error:
		e.Close()
		return nil
	default:
		return fmt.Errorf("xcch: unknown primitive %v", frame.Primitive)
	}
}
