package tchfacch

// bitOrder reorders a 260-bit speech frame by importance class before
// FEC: the 50 most significant bits become class 1A, the next 132
// class 1B, and the remaining 78 class 2 (unprotected). The true GSM
// 06.10 per-bit significance table (g610BitOrder in GSML1FEC.cpp) was
// not present in the reference material this was built from; bitOrder
// is the identity permutation, which preserves the three class-length
// boundaries the FEC pipeline depends on without claiming to match the
// codec's actual perceptual weighting. Swapping in the real table is a
// one-line change: only this array needs to change, not the pipeline
// around it.
var bitOrder = func() [260]int {
	var order [260]int
	for i := range order {
		order[i] = i
	}
	return order
}()

// reorder permutes src into dst per bitOrder: dst[i] = src[bitOrder[i]].
func reorder(src, dst []byte) {
	for i, j := range bitOrder {
		dst[i] = src[j]
	}
}

// unreorder is reorder's inverse: dst[bitOrder[i]] = src[i].
func unreorder(src, dst []byte) {
	for i, j := range bitOrder {
		dst[j] = src[i]
	}
}
