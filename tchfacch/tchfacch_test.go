package tchfacch

import (
	"math/rand"
	"testing"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

func testMapping() *tdma.Mapping {
	return tdma.NewMapping("TCH/F:0", []int{0}, true, diagSpan, diagSpan, []int{0, 1, 2, 3, 4, 5, 6, 7})
}

type captureRadio struct {
	bursts []*burst.TxBurst
}

func (r *captureRadio) WriteHighSide(b *burst.TxBurst) { r.bursts = append(r.bursts, b) }
func (r *captureRadio) ARFCN() int                     { return 0 }

var _ l1fec.Radio = (*captureRadio)(nil)

func randomSpeechFrame(seed int64) [33]byte {
	rng := rand.New(rand.NewSource(seed))
	var f [33]byte
	rng.Read(f[:])
	f[32] &^= 0x0f // a speech frame is 260 bits
	return f
}

// deliver feeds every captured burst into dec as a noiseless received
// burst, mirroring how xcch's tests turn a TxBurst back into soft bits.
func deliver(t *testing.T, dec *Decoder, bursts []*burst.TxBurst, fnBase int) {
	t.Helper()
	for i, tb := range bursts {
		soft := bitvec.NewSoft(burst.Len)
		for j, bit := range tb.Bits {
			if bit == 1 {
				soft[j] = 1.0
			} else {
				soft[j] = 0.0
			}
		}
		rb, err := burst.NewRxBurst(soft, -70, 0, tdma.Time{FN: fnBase + i})
		if err != nil {
			t.Fatal(err)
		}
		dec.WriteLowSide(rb)
	}
}

func TestTCHRoundTrip(t *testing.T) {
	radio := &captureRadio{}
	up := &sapmux.RecordingUpstream{}
	enc := NewEncoder(0, "TCH/F:0", testMapping(), radio, 4, nil, nil)
	dec := NewDecoder(0, "TCH/F:0", testMapping(), up, 1, nil)
	enc.Open()
	dec.Open()

	frame := randomSpeechFrame(1)
	enc.QueueSpeech(frame)
	enc.QueueSpeech(frame)
	enc.SendSlot()

	if len(radio.bursts) != diagSpan {
		t.Fatalf("wrote %d bursts, want %d", len(radio.bursts), diagSpan)
	}
	deliver(t, dec, radio.bursts, 0)

	if len(up.TCHFrames) != 2 {
		t.Fatalf("delivered %d speech frames, want 2", len(up.TCHFrames))
	}
	if up.TCHFrames[0] != frame || up.TCHFrames[1] != frame {
		t.Fatalf("decoded speech mismatch")
	}
}

func TestFACCHStealsTCH(t *testing.T) {
	radio := &captureRadio{}
	up := &sapmux.RecordingUpstream{}
	enc := NewEncoder(0, "TCH/F:0", testMapping(), radio, 4, nil, nil)
	dec := NewDecoder(0, "TCH/F:0", testMapping(), up, 2, nil)
	enc.Open()
	dec.Open()

	enc.QueueSpeech(randomSpeechFrame(3))
	var facch [184 / 8]byte
	rng := rand.New(rand.NewSource(9))
	rng.Read(facch[:])
	enc.QueueFACCH(facch)
	enc.SendSlot()

	deliver(t, dec, radio.bursts, 0)

	if len(up.Frames) != 1 {
		t.Fatalf("delivered %d control frames, want 1", len(up.Frames))
	}
	var want [23]byte
	copy(want[:], facch[:])
	if up.Frames[0].Payload != want {
		t.Fatalf("decoded FACCH mismatch")
	}
	if len(enc.speechQueue) != 0 {
		t.Fatal("FACCH stealing the channel must flush the pending speech queue")
	}
}

func TestSpeechLatencyCapDropsOldest(t *testing.T) {
	enc := NewEncoder(0, "TCH/F:0", testMapping(), &captureRadio{}, 2, nil, nil)
	enc.QueueSpeech(randomSpeechFrame(1))
	enc.QueueSpeech(randomSpeechFrame(2))
	enc.QueueSpeech(randomSpeechFrame(3))

	if len(enc.speechQueue) != 2 {
		t.Fatalf("speech queue length = %d, want 2 (cap)", len(enc.speechQueue))
	}
	if enc.speechQueue[0] != randomSpeechFrame(2) {
		t.Fatal("the oldest frame should have been dropped, not the newest")
	}
}

func TestBadSpeechFrameIsMaskedFromPreviousGood(t *testing.T) {
	good := randomSpeechFrame(5)
	dec := &Decoder{
		Decoder:        l1fec.NewDecoder(0, "TCH/F:0", testMapping()),
		rng:            rand.New(rand.NewSource(11)),
		lastGoodSpeech: good,
		haveGoodSpeech: true,
	}
	dec.Open()
	up := &sapmux.RecordingUpstream{}
	dec.upstream = up

	payload := randomSpeechFrame(6)
	c := encodeTCH(payload[:])
	bad := bitvec.NewSoft(len(c))
	for i, bit := range c {
		if bit == 1 {
			bad[i] = 1.0
		}
	}
	flip := rand.New(rand.NewSource(13))
	seen := make(map[int]bool)
	for len(seen) < 80 {
		i := flip.Intn(class1Coded)
		if seen[i] {
			continue
		}
		seen[i] = true
		bad[i] = 1 - bad[i]
	}

	dec.decodeHalf(bad, false)

	if len(up.TCHFrames) != 1 {
		t.Fatalf("a bad speech frame with a prior good frame on hand must still deliver masked output, got %d frames", len(up.TCHFrames))
	}
	if up.TCHFrames[0] == good {
		t.Fatal("masked output must differ from the unmasked previous-good frame")
	}
}
