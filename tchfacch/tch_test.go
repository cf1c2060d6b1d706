package tchfacch

import (
	"math/rand"
	"testing"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
)

func TestEncodeDecodeTCHRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var payload [33]byte
	rng.Read(payload[:])
	payload[32] &^= 0x0f // a speech frame is 260 bits

	c := encodeTCH(payload[:])
	soft := bitvec.NewSoft(len(c))
	for i, bit := range c {
		if bit == 1 {
			soft[i] = 1.0
		} else {
			soft[i] = 0.0
		}
	}

	got, good := decodeTCH(soft)
	if !good {
		t.Fatal("noiseless round trip must pass parity and tail checks")
	}
	if got != payload {
		t.Fatalf("decoded payload mismatch:\n got %x\nwant %x", got, payload)
	}
}

func TestDecodeTCHRejectsHeavyCorruption(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var payload [33]byte
	rng.Read(payload[:])
	payload[32] &^= 0x0f // a speech frame is 260 bits

	c := encodeTCH(payload[:])
	soft := bitvec.NewSoft(len(c))
	for i, bit := range c {
		if bit == 1 {
			soft[i] = 1.0
		} else {
			soft[i] = 0.0
		}
	}

	flip := rand.New(rand.NewSource(99))
	seen := make(map[int]bool)
	for len(seen) < 80 {
		i := flip.Intn(class1Coded) // only class-1 bits go through Viterbi decoding
		if seen[i] {
			continue
		}
		seen[i] = true
		soft[i] = 1 - soft[i]
	}

	if _, good := decodeTCH(soft); good {
		t.Fatal("80 flipped bits out of 378 class-1 coded bits should exceed the code's correction capability")
	}
}
