package tchfacch

import (
	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/fec"
)

const (
	speechFrameBits = 260
	class1Len       = 182 // class 1A + 1B
	class1ALen      = 50
	class2Len       = 78 // speechFrameBits - class1Len
	tchUncoded      = 189
	foldHalf        = 91 // (class1Len/2)
	parityOffset    = 91
	parityLen       = 3
	tailOffset      = 185
	tailLen         = 4
	class1Coded     = 378 // 2 * tchUncoded
	totalCoded      = 456
)

var tchViterbi = fec.NewViterbiCoder()

// encodeTCH runs the full speech-frame encode pipeline: importance
// reorder, class-1A parity, fold mapping, convolutional code, and
// verbatim class-2 passthrough. payload is the 260-bit (33-byte
// rounded up, low 4 bits of the last byte unused) speech frame in
// vocoder bit order.
func encodeTCH(payload []byte) bitvec.BitVector {
	raw := bitvec.Unpack(payload, speechFrameBits)
	tchd := make([]byte, speechFrameBits)
	reorder(raw, tchd)

	tchu := bitvec.New(tchUncoded)
	class1A := bitvec.BitVector(tchd[:class1ALen])
	fec.WriteClass1AParity(class1A, tchu.Segment(parityOffset, parityLen))

	for k := 0; k <= foldHalf-1; k++ {
		tchu[k] = tchd[2*k]
		tchu[184-k] = tchd[2*k+1]
	}

	c := bitvec.New(totalCoded)
	tchViterbi.Encode(tchu, c.Head(class1Coded))
	copy(c[class1Coded:], tchd[class1Len:speechFrameBits])
	return c
}

// decodeTCH is encodeTCH's inverse. soft is the 456 soft coded bits
// recovered from deinterleaving. It returns the recovered 33-byte
// payload and whether the frame passed its class-1A parity and tail
// checks.
func decodeTCH(soft bitvec.SoftVector) (payload [33]byte, good bool) {
	tchu := bitvec.New(tchUncoded)
	tchViterbi.Decode(soft.Head(class1Coded), tchu)

	tchd := make([]byte, speechFrameBits)
	for k := 0; k <= foldHalf-1; k++ {
		tchd[2*k] = tchu[k]
		tchd[2*k+1] = tchu[184-k]
	}
	for i := class1Len; i < speechFrameBits; i++ {
		if soft[class1Coded+(i-class1Len)] >= 0.5 {
			tchd[i] = 1
		} else {
			tchd[i] = 0
		}
	}

	dp := bitvec.New(class1ALen + parityLen)
	copy(dp, tchd[:class1ALen])
	copy(dp[class1ALen:], tchu[parityOffset:parityOffset+parityLen])
	parityOK := fec.CheckClass1AParity(dp)
	tailOK := tchu.Segment(tailOffset, tailLen).PeekField(0, tailLen) == 0

	rawOrder := make([]byte, speechFrameBits)
	unreorder(tchd, rawOrder)
	bitvec.BitVector(rawOrder).Pack(payload[:])

	return payload, parityOK && tailOK
}
