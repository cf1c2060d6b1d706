package burst

import (
	"testing"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

func TestNewRxBurstLengthCheck(t *testing.T) {
	if _, err := NewRxBurst(bitvec.NewSoft(10), 0, 0, tdma.Time{}); err == nil {
		t.Fatal("expected error for short burst")
	}
	b, err := NewRxBurst(bitvec.NewSoft(Len), -80, 0.5, tdma.Time{FN: 1, TN: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Data1()) != Data1Len || len(b.Data2()) != Data2Len {
		t.Fatal("data segment lengths wrong")
	}
}

func TestTxBurstStealingBitsAlias(t *testing.T) {
	tb := NewTxBurst(tdma.Time{})
	tb.SetStealingBits(1, 1)
	if tb.Bits[StealingLoBit] != 1 || tb.Bits[StealingHiBit] != 1 {
		t.Fatal("stealing bits not written to underlying buffer")
	}
}

func TestTxBurstTrainingSegmentAlias(t *testing.T) {
	tb := NewTxBurst(tdma.Time{})
	seq := bitvec.New(TrainingLen)
	seq.Fill(1)
	tb.SetTrainingSequence(seq)
	for i := 0; i < TrainingLen; i++ {
		if tb.Bits[TrainingOffset+i] != 1 {
			t.Fatalf("training bit %d not copied", i)
		}
	}
}
