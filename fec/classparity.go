package fec

import "github.com/bloodandwolf/Osmo-USRP/bitvec"

// class1AGen is the 3-bit CRC used to protect TCH class-1A bits,
// generator x^3+x+1 (GSM 05.03 3.1.2).
var class1AGen = NewParityBlockCoder(0xb, 50, 3)

// WriteClass1AParity computes the 3-bit parity over the 50 class-1A
// bits d and writes it into p.
func WriteClass1AParity(d bitvec.BitVector, p bitvec.BitVector) {
	class1AGen.WriteParityWord(d, p)
}

// CheckClass1AParity recomputes the parity over dp's first 50 bits and
// compares it against the 3 bits that follow; returns true if they
// match.
func CheckClass1AParity(dp bitvec.BitVector) bool {
	return class1AGen.Syndrome(dp) == 0
}
