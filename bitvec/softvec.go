package bitvec

import "math"

// SoftVector is a fixed-length buffer of soft bits: each element is the
// probability (in [0,1]) that the corresponding bit is a 1. It is what
// the radio layer hands to a decoder before any hard decision is made.
type SoftVector []float64

// NewSoft allocates a SoftVector of length n with every value at 0.5
// (maximum uncertainty).
func NewSoft(n int) SoftVector {
	v := make(SoftVector, n)
	for i := range v {
		v[i] = 0.5
	}
	return v
}

// Head returns a view of the first n soft bits.
func (s SoftVector) Head(n int) SoftVector {
	return s[:n]
}

// Tail returns a view of the last n soft bits.
func (s SoftVector) Tail(n int) SoftVector {
	return s[len(s)-n:]
}

// Segment returns a view of the n soft bits starting at pos.
func (s SoftVector) Segment(pos, n int) SoftVector {
	return s[pos : pos+n]
}

// Slice makes hard decisions on every soft bit (>=0.5 rounds to 1) and
// returns the resulting BitVector. This does not modify s.
func (s SoftVector) Slice() BitVector {
	b := New(len(s))
	for i, v := range s {
		if v >= 0.5 {
			b[i] = 1
		}
	}
	return b
}

// Distance returns the bit-error energy of s against a known hard
// decision: the sum of |s[i] - b[i]| over the vector.
func (s SoftVector) Distance(b BitVector) float64 {
	var d float64
	for i, v := range s {
		want := float64(b[i])
		d += math.Abs(v - want)
	}
	return d
}

// CopyToSegment copies s into dst starting at dstPos.
func (s SoftVector) CopyToSegment(dst SoftVector, dstPos int) {
	copy(dst[dstPos:dstPos+len(s)], s)
}
