package fec

import "github.com/bloodandwolf/Osmo-USRP/bitvec"

// ViterbiCoder implements the GSM 05.03 rate-1/2, constraint-length-5
// convolutional code: two generator polynomials over a 4-bit shift
// register, G0 = 1+D^3+D^4 and G1 = 1+D+D^3+D^4 (octal 23 and 33), the
// same code used for both TCH class-1 bits and XCCH/SCH blocks.
type ViterbiCoder struct {
	k    int
	poly [2]uint8
}

// NewViterbiCoder returns the standard GSM rate-1/2 K=5 coder.
func NewViterbiCoder() *ViterbiCoder {
	// Tap masks over the register, bit j holding the input of j steps ago:
	// 0x19 is 1+D^3+D^4, 0x1b is 1+D+D^3+D^4.
	return &ViterbiCoder{k: 5, poly: [2]uint8{0x19, 0x1b}}
}

func parityOf(v uint8) uint8 {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v & 1
}

// Encode convolutionally encodes u (length n) into c (length 2n), four
// zero tail bits are assumed to already be appended to u by the caller
// (as GSM 05.03 requires for every block type this code protects).
func (vc *ViterbiCoder) Encode(u bitvec.BitVector, c bitvec.BitVector) {
	var reg uint8
	for i, bit := range u {
		reg = ((reg << 1) | (bit & 1)) & 0x1f
		c[2*i] = parityOf(reg & vc.poly[0])
		c[2*i+1] = parityOf(reg & vc.poly[1])
	}
}

// viterbiState is one surviving path in the trellis.
type viterbiState struct {
	metric float64
	path   []byte
}

// Decode Viterbi-decodes the soft codeword c (length 2n, soft bits in
// [0,1]) into the hard bit-vector u (length n). The last (k-1) output
// bits of u are expected to be the zero tail; decoding does not enforce
// that, callers check it themselves per the relevant channel's validity
// rule.
func (vc *ViterbiCoder) Decode(c bitvec.SoftVector, u bitvec.BitVector) {
	n := len(u)
	nstates := 1 << uint(vc.k-1)
	states := make([]viterbiState, nstates)
	for s := range states {
		if s == 0 {
			states[s] = viterbiState{metric: 0, path: make([]byte, 0, n)}
		} else {
			states[s] = viterbiState{metric: 1e18, path: nil}
		}
	}

	branchCost := func(hard0, hard1 byte, soft0, soft1 float64) float64 {
		d := func(h byte, s float64) float64 {
			if h == 1 {
				return 1 - s
			}
			return s
		}
		return d(hard0, soft0) + d(hard1, soft1)
	}

	for i := 0; i < n; i++ {
		soft0, soft1 := c[2*i], c[2*i+1]
		next := make([]viterbiState, nstates)
		for s := range next {
			next[s] = viterbiState{metric: 1e18}
		}
		for s := 0; s < nstates; s++ {
			if states[s].metric >= 1e18 {
				continue
			}
			for _, bit := range []byte{0, 1} {
				reg := ((uint8(s) << 1) | bit) & 0x1f
				h0 := parityOf(reg & vc.poly[0])
				h1 := parityOf(reg & vc.poly[1])
				ns := int(reg) & (nstates - 1)
				cost := states[s].metric + branchCost(h0, h1, soft0, soft1)
				if cost < next[ns].metric {
					np := make([]byte, 0, n)
					np = append(np, states[s].path...)
					np = append(np, bit)
					next[ns] = viterbiState{metric: cost, path: np}
				}
			}
		}
		states = next
	}

	// Return the survivor with the best final metric, so the decoded tail
	// bits reflect the received codeword and callers can check them.
	best := 0
	for s := 1; s < nstates; s++ {
		if states[s].metric < states[best].metric {
			best = s
		}
	}
	copy(u, states[best].path)
}
