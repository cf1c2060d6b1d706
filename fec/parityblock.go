// Package fec implements the bit-exact forward error correction
// primitives the air-interface encoders and decoders are built from: the
// FIRE-like block coder, the rate-1/2 K=5 convolutional coder and its
// Viterbi decoder, and the GSM 06.11 bad-frame masking helpers. None of
// it reaches for an external coding library: these generator polynomials
// are specified exactly, and hand-rolling them is the only way to get a
// bit-exact match.
package fec

import "github.com/bloodandwolf/Osmo-USRP/bitvec"

// ParityBlockCoder implements the shortened, systematic FIRE-like cyclic
// block code GSM 05.03 uses to protect XCCH and SCH payloads. It is
// parameterized by generator polynomial, payload length (the data field
// size the parity is computed over) and parity length (the codeword's
// check-bit count), so the same type serves both the 184-bit XCCH block
// code and the 25-bit SCH block code.
type ParityBlockCoder struct {
	generator    uint64
	payloadLen   int
	parityLen    int
}

// NewParityBlockCoder builds a coder for the given generator polynomial
// and field widths. generator's degree must equal parityLen.
func NewParityBlockCoder(generator uint64, payloadLen, parityLen int) *ParityBlockCoder {
	return &ParityBlockCoder{generator: generator, payloadLen: payloadLen, parityLen: parityLen}
}

// PayloadLen returns the coder's configured data-field width.
func (c *ParityBlockCoder) PayloadLen() int { return c.payloadLen }

// ParityLen returns the coder's configured parity-field width.
func (c *ParityBlockCoder) ParityLen() int { return c.parityLen }

// remainder performs polynomial division of the payload (MSB-first,
// implicitly shifted left by parityLen bits) by the generator, returning
// the parityLen-bit remainder.
func (c *ParityBlockCoder) remainder(d bitvec.BitVector) uint64 {
	reg := uint64(0)
	topBit := uint64(1) << uint(c.parityLen)
	for i := 0; i < c.payloadLen; i++ {
		reg = (reg << 1) | uint64(d[i]&1)
		if reg&topBit != 0 {
			reg ^= c.generator
		}
	}
	for i := 0; i < c.parityLen; i++ {
		reg <<= 1
		if reg&topBit != 0 {
			reg ^= c.generator
		}
	}
	return reg & (topBit - 1)
}

// WriteParityWord computes the block-code parity of d and writes it into
// p (p must be c.parityLen bits long); it does not touch d.
func (c *ParityBlockCoder) WriteParityWord(d bitvec.BitVector, p bitvec.BitVector) {
	rem := c.remainder(d)
	p.FillField(0, c.parityLen, rem)
}

// Syndrome recomputes the parity of dp's payload segment and XORs it
// against dp's parity segment; a non-zero result indicates a detected
// error. dp must be payloadLen+parityLen bits, data first.
func (c *ParityBlockCoder) Syndrome(dp bitvec.BitVector) uint64 {
	d := dp.Head(c.payloadLen)
	p := dp.Segment(c.payloadLen, c.parityLen)
	want := c.remainder(d)
	got := p.PeekField(0, c.parityLen)
	return want ^ got
}
