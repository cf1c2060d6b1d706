// Package tchfacch implements the traffic channel's FEC pipeline: GSM
// 05.03 3.1.2 speech-frame coding, 8-burst diagonal interleaving, and
// the FACCH-steals-TCH multiplexing discipline that lets in-band
// signalling preempt a speech block. Grounded on GSML1FEC.cpp's
// TCHFACCHL1Encoder/TCHFACCHL1Decoder.
package tchfacch

import (
	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/fec"
	"github.com/bloodandwolf/Osmo-USRP/gsmtap"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/tdma"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("tchfacch")

const (
	halfSize = 4 // bursts one priority decision covers
	diagSpan = 8 // bursts one diagonal-interleaved pair spans
	rowLen   = 114
)

// fillerCoded is the 456-bit filler block transmitted whenever both the
// FACCH and speech queues are empty, captured bit-exact from a real
// handset transmission (GSML1FEC.cpp:1389's fillerC literal).
var fillerCoded = mustParseBits("110100001000111100000000111001111101011100111101001111000000000000110111101111111110100110101010101010101010101010101010101010101010010000110000000000000000000000000000000000000000001101001111000000000000000000000000000000000000000000000000111010011010101010101010101010101010101010101010101001000011000000000000000000110100111100000000111001111101101000001100001101001111000000000000000000011001100000000000000000000000000000000000000000000000000000000001")

func mustParseBits(s string) bitvec.BitVector {
	b := bitvec.New(len(s))
	for i, c := range s {
		if c == '1' {
			b[i] = 1
		}
	}
	return b
}

// interleaveCell is the 8-burst diagonal interleave of GSM 05.03
// 4.1.4: I[(k+offset) mod 8][2*((49k) mod 57) + (k mod 8)/4] = C[k].
// offset is 0 for the first block of a diagonal pair and 4 for the
// second, alternating on every subsequent pair.
func interleaveCell(k, offset int) (row, col int) {
	row = (k + offset) % diagSpan
	col = 2*((49*k)%57) + (k%8)/4
	return
}

// Encoder implements the downlink TCH/FACCH multiplexer: priority
// dispatch between a pending FACCH frame, a queued speech frame, or
// filler, diagonal interleaving, and the Hu/Hl stealing-flag handshake.
//
// A diagonal interleave block spans 8 physical bursts, but GSM makes an
// independent FACCH/speech/filler decision every 4 bursts. SendSlot
// resolves both halves of one diagonal pair before transmitting any of
// its 8 bursts, so each row is fully determined the moment it is sent;
// this keeps the real 4-burst dispatch granularity without needing
// interleaver state to survive across calls.
type Encoder struct {
	*l1fec.Encoder

	maxSpeechLatency int
	facchQueue       [][184 / 8]byte
	speechQueue      [][33]byte

	previousFACCH bool
	trainingSeq   bitvec.BitVector
	tap           Tap
}

// NewEncoder builds a TCH/FACCH encoder.
func NewEncoder(arfcn int, typeAndOffset string, mapping *tdma.Mapping, radio l1fec.Radio, maxSpeechLatency int, trainingSeq bitvec.BitVector, tap Tap) *Encoder {
	return &Encoder{
		Encoder:          l1fec.NewEncoder(arfcn, typeAndOffset, mapping, radio, nil),
		maxSpeechLatency: maxSpeechLatency,
		trainingSeq:      trainingSeq,
		tap:              tap,
	}
}

// QueueFACCH enqueues a 23-octet FACCH frame for the next downlink
// slot, preempting any pending speech.
func (e *Encoder) QueueFACCH(payload [184 / 8]byte) {
	e.facchQueue = append(e.facchQueue, payload)
}

// QueueSpeech enqueues a 33-octet vocoder frame. If the queue grows
// past maxSpeechLatency it is trimmed from the front, the oldest frames
// dropped first, to bound end-to-end speech latency.
func (e *Encoder) QueueSpeech(frame [33]byte) {
	e.speechQueue = append(e.speechQueue, frame)
	for len(e.speechQueue) > e.maxSpeechLatency {
		e.speechQueue = e.speechQueue[1:]
		log.Debug("speech queue over latency cap, dropping oldest frame")
	}
}

// dispatchOne runs one 4-burst priority decision: FACCH first, then
// speech, then filler. payload is the raw frame that was encoded, for
// the GSMTAP tap; it is nil for filler.
func (e *Encoder) dispatchOne() (coded bitvec.BitVector, isFACCH bool, payload []byte) {
	switch {
	case len(e.facchQueue) > 0:
		frame := e.facchQueue[0]
		e.facchQueue = e.facchQueue[1:]
		e.speechQueue = nil // flush to bound latency once FACCH steals the channel
		return encodeFACCH(frame[:]), true, append([]byte(nil), frame[:]...)
	case len(e.speechQueue) > 0:
		frame := e.speechQueue[0]
		e.speechQueue = e.speechQueue[1:]
		return encodeTCH(frame[:]), false, append([]byte(nil), frame[:]...)
	default:
		return fillerCoded, false, nil
	}
}

// SendSlot resolves one diagonal-interleaved pair (two priority
// decisions, 8 physical bursts) and transmits it, exactly as
// GSML1FEC.cpp's TCHFACCHL1Encoder service thread does every 4-burst
// period, but grouped so both halves of the interleaver are settled
// before any burst goes out.
func (e *Encoder) SendSlot() {
	var rows [diagSpan]bitvec.BitVector
	for i := range rows {
		rows[i] = bitvec.New(rowLen)
	}
	var hu, hl [diagSpan]bool
	var payloads [2][]byte

	prevFACCH := e.previousFACCH
	for half := 0; half < 2; half++ {
		offset := half * 4
		c, isFACCH, payload := e.dispatchOne()
		payloads[half] = payload
		for k := 0; k < totalCoded; k++ {
			row, col := interleaveCell(k, offset)
			rows[row][col] = c[k]
		}
		for b := offset; b < offset+halfSize; b++ {
			hu[b] = isFACCH
			hl[b] = prevFACCH
		}
		prevFACCH = isFACCH
	}
	e.previousFACCH = prevFACCH

	for b := 0; b < diagSpan; b++ {
		tb := burst.NewTxBurst(e.NextWriteTime())
		row := rows[b]
		row.Head(57).CopyToSegment(tb.Bits, burst.Data1Offset)
		row.Tail(57).CopyToSegment(tb.Bits, burst.Data2Offset)
		tb.SetStealingBits(boolBit(hl[b]), boolBit(hu[b]))
		if e.trainingSeq != nil {
			tb.SetTrainingSequence(e.trainingSeq)
		}
		if e.tap != nil && b%halfSize == 0 {
			if payload := payloads[b/halfSize]; payload != nil {
				h := gsmtap.Header{
					Timeslot:    uint8(tb.Time.TN),
					ARFCN:       uint16(e.ARFCN()),
					FrameNumber: uint32(tb.Time.FN),
					SubType:     gsmtap.BurstNormal,
				}
				if err := e.tap.Write(h, payload); err != nil {
					log.Warningf("%s: GSMTAP write failed: %v", e.TypeAndOffset(), err)
				}
			}
		}
		e.WriteBurst(tb)
		e.RollForward()
	}
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// encodeFACCH block/convolutional-encodes a 184-bit FACCH frame exactly
// as XCCH does, without LSB8MSB (FACCH reuses XCCH's code, not its
// octet-order convention, since it is transported inside a TCH block
// whose own reorder already happened at the L2 boundary).
func encodeFACCH(payload []byte) bitvec.BitVector {
	const dataLen, parityLen, tailLen = 184, 40, 4
	const uncodedLen = dataLen + parityLen + tailLen
	u := bitvec.New(uncodedLen)
	d := u.Head(dataLen)
	bitvec.Unpack(payload, dataLen).CopyToSegment(u, 0)
	coder := fec.NewParityBlockCoder(0x10004820009, dataLen, parityLen)
	p := u.Segment(dataLen, parityLen)
	coder.WriteParityWord(d, p)
	p.Invert()
	c := bitvec.New(totalCoded)
	fec.NewViterbiCoder().Encode(u, c)
	return c
}

// decodeFACCH is encodeFACCH's inverse, mirroring xcch's decode path
// (minus the LSB8MSB octet reorder, which encodeFACCH never applied).
func decodeFACCH(soft bitvec.SoftVector) (payload [184 / 8]byte, good bool) {
	const dataLen, parityLen, tailLen = 184, 40, 4
	const uncodedLen = dataLen + parityLen + tailLen
	u := bitvec.New(uncodedLen)
	fec.NewViterbiCoder().Decode(soft, u)
	d := u.Head(dataLen)
	p := u.Segment(dataLen, parityLen)
	p.Invert()
	coder := fec.NewParityBlockCoder(0x10004820009, dataLen, parityLen)
	good = coder.Syndrome(u.Head(dataLen+parityLen)) == 0
	d.Pack(payload[:])
	return payload, good
}
