// Package burst holds the 148-symbol TDMA burst containers that sit
// between the radio and the FEC pipelines, grounded on go-dmr's own
// fixed-length Burst wrapper around a raw bit buffer.
package burst

import (
	"fmt"
	"time"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

// Len is the number of symbols in a normal GSM burst.
const Len = 148

// Field offsets within a normal burst: 3 tail bits, 57 data bits, a
// stealing bit, 26 training bits, a stealing bit, 57 data bits, 3 tail
// bits, 8.25 guard bits (rounded down to the addressable 148).
const (
	Data1Offset    = 3
	Data1Len       = 57
	StealingLoBit  = 60
	TrainingOffset = 61
	TrainingLen    = 26
	StealingHiBit  = 87
	Data2Offset    = 88
	Data2Len       = 57
)

// RxBurst is a received burst: 148 soft symbols plus the radio's
// estimate of signal strength and timing error, stamped with the TDMA
// time it arrived at.
type RxBurst struct {
	Bits        bitvec.SoftVector
	RSSI        float64
	TimingError float64
	Time        tdma.Time
	Timestamp   time.Time
}

// NewRxBurst validates and wraps a raw soft-bit slice into an RxBurst.
func NewRxBurst(bits bitvec.SoftVector, rssi, timingError float64, at tdma.Time) (*RxBurst, error) {
	if len(bits) != Len {
		return nil, fmt.Errorf("burst: expected %d soft bits, got %d", Len, len(bits))
	}
	return &RxBurst{Bits: bits, RSSI: rssi, TimingError: timingError, Time: at, Timestamp: time.Now()}, nil
}

// Data1 returns the first data-bit segment of the burst, aliasing Bits.
func (b *RxBurst) Data1() bitvec.SoftVector { return b.Bits.Segment(Data1Offset, Data1Len) }

// Data2 returns the second data-bit segment of the burst, aliasing Bits.
func (b *RxBurst) Data2() bitvec.SoftVector { return b.Bits.Segment(Data2Offset, Data2Len) }

// Training returns the training-sequence segment, aliasing Bits.
func (b *RxBurst) Training() bitvec.SoftVector { return b.Bits.Segment(TrainingOffset, TrainingLen) }

// TxBurst is a burst about to be handed to the radio for transmission:
// 148 hard bits, with the stealing flags and training sequence exposed
// as writable segments layered over the same backing buffer.
type TxBurst struct {
	Bits bitvec.BitVector
	Time tdma.Time
}

// NewTxBurst allocates a zeroed TxBurst stamped for time at.
func NewTxBurst(at tdma.Time) *TxBurst {
	return &TxBurst{Bits: bitvec.New(Len), Time: at}
}

// Data1 returns the first data-bit segment, aliasing Bits.
func (b *TxBurst) Data1() bitvec.BitVector { return b.Bits.Segment(Data1Offset, Data1Len) }

// Data2 returns the second data-bit segment, aliasing Bits.
func (b *TxBurst) Data2() bitvec.BitVector { return b.Bits.Segment(Data2Offset, Data2Len) }

// Training returns the training-sequence segment, aliasing Bits.
func (b *TxBurst) Training() bitvec.BitVector { return b.Bits.Segment(TrainingOffset, TrainingLen) }

// SetStealingBits sets the Hl and Hu stealing flags that sit
// immediately before/after the training sequence, used on traffic
// channels to signal FACCH has stolen this burst.
func (b *TxBurst) SetStealingBits(hl, hu byte) {
	b.Bits[StealingLoBit] = hl & 1
	b.Bits[StealingHiBit] = hu & 1
}

// StealingBits returns the (Hl, Hu) stealing flags of a received burst.
func (b *RxBurst) StealingBits() (hl, hu byte) {
	hlSoft, huSoft := b.Bits[StealingLoBit], b.Bits[StealingHiBit]
	if hlSoft >= 0.5 {
		hl = 1
	}
	if huSoft >= 0.5 {
		hu = 1
	}
	return hl, hu
}

// SetTrainingSequence copies a normal-burst training sequence into the
// burst's training segment.
func (b *TxBurst) SetTrainingSequence(seq bitvec.BitVector) {
	seq.CopyToSegment(b.Bits, TrainingOffset)
}
