package schfcch

import (
	"testing"

	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

type captureRadio struct {
	bursts []*burst.TxBurst
}

func (r *captureRadio) WriteHighSide(b *burst.TxBurst) { r.bursts = append(r.bursts, b) }
func (r *captureRadio) ARFCN() int                     { return 0 }

var _ l1fec.Radio = (*captureRadio)(nil)

func testMapping() *tdma.Mapping {
	return tdma.NewMapping("FCCH", []int{0}, true, 1, 51, []int{0})
}

func TestFCCHSendsZeroBurst(t *testing.T) {
	radio := &captureRadio{}
	enc := NewFCCHEncoder(0, testMapping(), radio, nil)
	enc.Open()
	enc.Send()
	if len(radio.bursts) != 1 {
		t.Fatalf("wrote %d bursts, want 1", len(radio.bursts))
	}
	for i, bit := range radio.bursts[0].Bits {
		if bit != 0 {
			t.Fatalf("FCCH burst bit %d = %d, want 0", i, bit)
		}
	}
}

func TestSCHEncodeHalvesLength(t *testing.T) {
	enc := NewSCHEncoder(0, testMapping(), &captureRadio{}, nil, nil)
	h1, h2 := enc.Encode(7, 12345)
	if len(h1) != schHalfLen || len(h2) != schHalfLen {
		t.Fatalf("half lengths = %d,%d, want %d each", len(h1), len(h2), schHalfLen)
	}
}

func TestSCHSendPlacesHalvesAtOffsets(t *testing.T) {
	radio := &captureRadio{}
	enc := NewSCHEncoder(0, testMapping(), radio, nil, nil)
	enc.Open()
	enc.Send(7, 100)
	tb := radio.bursts[0]
	h1, h2 := enc.Encode(7, 100)
	for i := range h1 {
		if tb.Bits[schOffset1+i] != h1[i] {
			t.Fatalf("half1 mismatch at %d", i)
		}
	}
	for i := range h2 {
		if tb.Bits[schOffset2+i] != h2[i] {
			t.Fatalf("half2 mismatch at %d", i)
		}
	}
}
