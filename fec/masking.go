package fec

import "math/rand"

// MaskBadFrame implements GSM 06.11 bad-frame masking on a packed RPE-LTP
// speech frame: it attenuates each sub-block's block amplitude (xmaxc, at
// byte 27) and randomizes the excitation grid positions (2 bits at bytes
// 6+7i and 7+7i for i in [0,4)) of the previous good frame before it is
// repeated in place of a frame that failed its parity check. frame is
// mutated in place and must be the 33-byte previous-good-frame buffer.
func MaskBadFrame(frame []byte, rng *rand.Rand) {
	if frame[27] > 2 {
		frame[27] -= 2
	} else {
		frame[27] = 0
	}
	for i := 0; i < 4; i++ {
		frame[6+7*i] = (frame[6+7*i] &^ 0x03) | byte(rng.Intn(4))
		frame[7+7*i] = (frame[7+7*i] &^ 0x03) | byte(rng.Intn(4))
	}
}
