package xcch

import (
	"math/rand"
	"testing"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

func testMapping() *tdma.Mapping {
	return tdma.NewMapping("SDCCH/4:0", []int{0}, true, 4, 102, []int{0, 1, 2, 3})
}

type captureRadio struct {
	bursts []*burst.TxBurst
}

func (r *captureRadio) WriteHighSide(b *burst.TxBurst) { r.bursts = append(r.bursts, b) }
func (r *captureRadio) ARFCN() int                     { return 0 }

var _ l1fec.Radio = (*captureRadio)(nil)

func randomPayload(seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	p := make([]byte, dataLen/8)
	rng.Read(p)
	return p
}

func TestXCCHRoundTrip(t *testing.T) {
	radio := &captureRadio{}
	up := &sapmux.RecordingUpstream{}
	enc := NewEncoder(0, "SDCCH/4:0", testMapping(), radio, nil, false, nil, nil)
	dec := NewDecoder(0, "SDCCH/4:0", testMapping(), false, up, nil)
	enc.Open()
	dec.Open()

	payload := randomPayload(1)
	var frame l2.Frame
	frame.Primitive = l2.Data
	copy(frame.Payload[:], payload)
	if err := enc.WriteHighSide(frame); err != nil {
		t.Fatal(err)
	}
	if len(radio.bursts) != blockSize {
		t.Fatalf("wrote %d bursts, want %d", len(radio.bursts), blockSize)
	}

	for _, tb := range radio.bursts {
		soft := bitvec.NewSoft(burst.Len)
		for j, bit := range tb.Bits {
			if bit == 1 {
				soft[j] = 1.0
			} else {
				soft[j] = 0.0
			}
		}
		rb, err := burst.NewRxBurst(soft, -70, 0, tb.Time)
		if err != nil {
			t.Fatal(err)
		}
		dec.WriteLowSide(rb)
	}

	if len(up.Frames) != 1 {
		t.Fatalf("delivered %d frames, want 1", len(up.Frames))
	}
	if up.Frames[0].Payload != frame.Payload {
		t.Fatalf("decoded payload mismatch:\n got %x\nwant %x", up.Frames[0].Payload, frame.Payload)
	}
}

func TestXCCHDroppedBurstIsBadFrame(t *testing.T) {
	radio := &captureRadio{}
	up := &sapmux.RecordingUpstream{}
	enc := NewEncoder(0, "SDCCH/4:0", testMapping(), radio, nil, false, nil, nil)
	dec := NewDecoder(0, "SDCCH/4:0", testMapping(), false, up, nil)
	enc.Open()
	dec.Open()

	var frame l2.Frame
	frame.Primitive = l2.Data
	copy(frame.Payload[:], randomPayload(2))
	enc.WriteHighSide(frame)

	// Drop burst 1: only deliver 0, 2, 3.
	for _, i := range []int{0, 2, 3} {
		tb := radio.bursts[i]
		soft := bitvec.NewSoft(burst.Len)
		for j, bit := range tb.Bits {
			if bit == 1 {
				soft[j] = 1.0
			}
		}
		rb, _ := burst.NewRxBurst(soft, -70, 0, tb.Time)
		dec.WriteLowSide(rb)
	}

	if len(up.Frames) != 0 {
		t.Fatal("a block missing one of its four bursts must not be delivered")
	}
}

func TestWriteHighSideEstablishOpensSibling(t *testing.T) {
	radio := &captureRadio{}
	enc := NewEncoder(0, "SDCCH/4:0", testMapping(), radio, nil, false, nil, nil)
	dec := NewDecoder(0, "SDCCH/4:0", testMapping(), false, nil, nil)
	l1fec.NewPair(enc.Encoder, dec.Decoder)

	if err := enc.WriteHighSide(l2.Frame{Primitive: l2.Establish}); err != nil {
		t.Fatal(err)
	}
	if !dec.Active() {
		t.Fatal("ESTABLISH must open the sibling decoder")
	}
}
