// Package rach implements the random-access channel decoder: a
// receive-only logical channel fed by a bounded queue and serviced by
// a dedicated goroutine, so a burst of access attempts can never stall
// the radio's receive path. Grounded on GSML1FEC.cpp's RACHL1Decoder
// and on this tree's service-thread idiom of a goroutine consuming a
// channel (the same shape homebrew.Link.Run() uses for its own receive
// loop), replacing the original's lock-free queue + worker thread.
package rach

import (
	"context"
	"math"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/fec"
	"github.com/bloodandwolf/Osmo-USRP/gsmtap"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/tdma"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("rach")

const (
	symbolOffset = 49
	symbolCount  = 36
	uncodedLen   = 18
	payloadLen   = 8
	parityLen    = 6
	tailLen      = 4
)

var viterbi = fec.NewViterbiCoder()

// Access is one successfully decoded RACH burst, delivered upstream
// with everything the channel-assignment logic needs.
type Access struct {
	RA          uint8
	TA          int
	RSSI        float64
	TimingError float64
	Time        tdma.Time
}

// Tap is the optional side-effect-only sink every valid access burst is
// written to, forced to ARFCN 0 per GSML1FEC.cpp's
// "gWriteGSMTAP(0 /* no ARFCN()! */, ...)".
type Tap interface {
	Write(h gsmtap.Header, payload []byte) error
}

// Decoder is the RACH logical channel: a bounded queue of incoming
// bursts and a service goroutine that decodes them.
type Decoder struct {
	*l1fec.Decoder
	bsic   uint8
	out    chan<- Access
	queue  chan *burst.RxBurst
	tap    Tap
	cancel context.CancelFunc
}

// NewDecoder builds a RACH decoder. bsic is the BSIC this cell expects
// every access burst's parity to be XOR'd with. out receives every
// successfully validated access. queueDepth bounds the pending-burst
// queue; a full queue drops the oldest burst rather than block the
// radio thread.
func NewDecoder(arfcn int, bsic uint8, queueDepth int, out chan<- Access, tap Tap) *Decoder {
	return &Decoder{
		Decoder: l1fec.NewDecoder(arfcn, "RACH", nil),
		bsic:    bsic,
		out:     out,
		queue:   make(chan *burst.RxBurst, queueDepth),
		tap:     tap,
	}
}

// Run starts the service goroutine; it exits when ctx is canceled.
func (d *Decoder) Run(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rb := <-d.queue:
				d.decode(rb)
			}
		}
	}()
}

// Stop cancels the service goroutine started by Run.
func (d *Decoder) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// WriteLowSide enqueues a received burst for the service goroutine.
// If the queue is full, the oldest pending burst is dropped: a stalled
// consumer must never be allowed to block the radio's receive path.
func (d *Decoder) WriteLowSide(rb *burst.RxBurst) {
	select {
	case d.queue <- rb:
	default:
		select {
		case <-d.queue:
		default:
		}
		select {
		case d.queue <- rb:
		default:
		}
	}
}

func crc6(u bitvec.BitVector) uint64 {
	// GSM 05.03 4.6's 6-bit parity generator for the 8-bit RA field,
	// x^6+x^5+1.
	gen := fec.NewParityBlockCoder(0x61, 8, 6)
	p := bitvec.New(6)
	gen.WriteParityWord(u, p)
	return p.PeekField(0, 6)
}

func (d *Decoder) decode(rb *burst.RxBurst) {
	soft := rb.Bits.Segment(symbolOffset, symbolCount)
	u := bitvec.New(uncodedLen)
	viterbi.Decode(soft, u)

	tail := u.Segment(14, 4)
	if tail.PeekField(0, 4) != 0 {
		d.CountBadFrame()
		return
	}

	ra := u.Head(8)
	parityField := u.Segment(8, 6)
	parityField.Invert()
	sentParity := parityField.PeekField(0, 6)
	if (sentParity ^ crc6(ra)) != uint64(d.bsic&0x3f) {
		d.CountBadFrame()
		return
	}

	d.CountGoodFrame()
	raCopy := append(bitvec.BitVector{}, ra...)
	raCopy.LSB8MSB()

	ta := int(math.Round(rb.TimingError))
	if ta < 0 {
		ta = 0
	}
	if ta > 63 {
		ta = 63
	}

	access := Access{
		RA:          byte(raCopy.PeekField(0, 8)),
		TA:          ta,
		RSSI:        rb.RSSI,
		TimingError: rb.TimingError,
		Time:        rb.Time,
	}
	log.Debugf("RACH: RA=%#02x TA=%d RSSI=%.1f", access.RA, access.TA, access.RSSI)

	select {
	case d.out <- access:
	default:
		log.Warning("RACH: upstream access channel full, dropping access burst")
	}

	if d.tap != nil {
		payload := []byte{access.RA}
		h := gsmtap.Header{
			Timeslot:    uint8(rb.Time.TN),
			ARFCN:       0, // no ARFCN(): RACH is tapped on the logical BCCH ARFCN
			Uplink:      true,
			SignalDBm:   int8(rb.RSSI),
			FrameNumber: uint32(rb.Time.FN),
			SubType:     gsmtap.BurstAccess,
		}
		if err := d.tap.Write(h, payload); err != nil {
			log.Warningf("RACH: GSMTAP write failed: %v", err)
		}
	}
}
