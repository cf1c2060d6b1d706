package sacch

import (
	"testing"

	"github.com/bloodandwolf/Osmo-USRP/bitvec"
	"github.com/bloodandwolf/Osmo-USRP/burst"
	"github.com/bloodandwolf/Osmo-USRP/config"
	"github.com/bloodandwolf/Osmo-USRP/l1fec"
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/powertable"
	"github.com/bloodandwolf/Osmo-USRP/sapmux"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
	"github.com/bloodandwolf/Osmo-USRP/xcch"
)

func testMapping() *tdma.Mapping {
	return tdma.NewMapping("SACCH/TF:0", []int{0}, true, 4, 102, []int{0, 1, 2, 3})
}

type captureRadio struct {
	bursts []*burst.TxBurst
}

func (r *captureRadio) WriteHighSide(b *burst.TxBurst) { r.bursts = append(r.bursts, b) }
func (r *captureRadio) ARFCN() int                     { return 0 }

var _ l1fec.Radio = (*captureRadio)(nil)

func testTable(t *testing.T) *powertable.Table {
	t.Helper()
	tbl, err := powertable.ForBand(powertable.EGSM900)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestSACCHRoundTrip(t *testing.T) {
	radio := &captureRadio{}
	up := &sapmux.RecordingUpstream{}
	tbl := testTable(t)

	enc := NewEncoder(0, "SACCH/TF:0", testMapping(), radio, config.Default(), tbl, nil, nil)
	dec := NewDecoder(0, "SACCH/TF:0", testMapping(), up, tbl, nil)
	Pair(enc, dec)
	enc.Open()
	dec.Open()

	var frame l2.Frame
	frame.Primitive = l2.Data
	payload := make([]byte, xcch.PayloadLen(true)/8)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	copy(frame.Payload[:], payload)
	if err := enc.WriteHighSide(frame); err != nil {
		t.Fatal(err)
	}
	if len(radio.bursts) != 4 {
		t.Fatalf("wrote %d bursts, want 4", len(radio.bursts))
	}

	for i, tb := range radio.bursts {
		soft := bitvec.NewSoft(burst.Len)
		for j, bit := range tb.Bits {
			if bit == 1 {
				soft[j] = 1.0
			} else {
				soft[j] = 0.0
			}
		}
		rb, err := burst.NewRxBurst(soft, -70, 0, tdma.Time{FN: i})
		if err != nil {
			t.Fatal(err)
		}
		dec.WriteLowSideBurst(rb)
	}

	if len(up.SACCHFrames) != 1 {
		t.Fatalf("delivered %d SACCH frames, want 1", len(up.SACCHFrames))
	}
	var want [23]byte
	copy(want[:], payload)
	if up.SACCHFrames[0].Payload != want {
		t.Fatalf("decoded payload mismatch:\n got %x\nwant %x", up.SACCHFrames[0].Payload, want)
	}
}

func TestUplinkHeaderLayoutPowerAndTiming(t *testing.T) {
	tbl := testTable(t)
	up := &sapmux.RecordingUpstream{}
	dec := &Decoder{real: up, powerTbl: tbl}

	header := bitvec.New(16)
	code := tbl.EncodePower(30)
	header.FillField(uplinkPowerOffset, uplinkPowerLen, uint64(code))
	header.FillField(uplinkTimingOffset, uplinkTimingLen, 17)

	dec.mu.Lock()
	dec.haveMeasurement = false
	dec.mu.Unlock()

	// Exercise the header parsing directly, mirroring how decodeBlock
	// would hand a captured header to WriteLowSideSACCH's caller.
	actualPower := tbl.DecodePower(uint(header.PeekField(uplinkPowerOffset, uplinkPowerLen)))
	actualTiming := int(header.PeekField(uplinkTimingOffset, uplinkTimingLen))

	if actualPower != tbl.DecodePower(code) {
		t.Fatalf("decoded power = %d, want %d", actualPower, tbl.DecodePower(code))
	}
	if actualTiming != 17 {
		t.Fatalf("decoded timing = %d, want 17", actualTiming)
	}
}

func TestUplinkTimingOutOfRangeIgnored(t *testing.T) {
	tbl := testTable(t)
	dec := &Decoder{powerTbl: tbl, actualMSTiming: 5}

	header := bitvec.New(16)
	header.FillField(uplinkTimingOffset, uplinkTimingLen, 64) // out of range, must be ignored

	reportedTiming := int(header.PeekField(uplinkTimingOffset, uplinkTimingLen))
	dec.mu.Lock()
	if reportedTiming < uplinkTimingInvalid {
		dec.actualMSTiming = reportedTiming
	}
	dec.mu.Unlock()

	if dec.actualMSTiming != 5 {
		t.Fatalf("actualMSTiming = %d, want unchanged 5 when reported value is out of range", dec.actualMSTiming)
	}
}

func TestOpenSeedsRACHAssumption(t *testing.T) {
	cfg := config.Default()
	enc := NewEncoder(0, "SACCH/TF:0", testMapping(), &captureRadio{}, cfg, testTable(t), nil, nil)
	enc.Open()

	if enc.orderedPower != cfg.MSPower.Max {
		t.Fatalf("orderedPower = %d, want seeded max %d", enc.orderedPower, cfg.MSPower.Max)
	}
	if enc.orderedTA != 0 {
		t.Fatalf("orderedTA = %d, want seeded 0", enc.orderedTA)
	}
	if enc.haveHistory {
		t.Fatal("a freshly opened encoder must have no damping history yet")
	}
}

func TestClosedLoopUndampedOnFirstMeasurement(t *testing.T) {
	cfg := config.Default()
	cfg.RSSITarget = -50
	tbl := testTable(t)
	enc := NewEncoder(0, "SACCH/TF:0", testMapping(), &captureRadio{}, cfg, tbl, nil, nil)
	dec := NewDecoder(0, "SACCH/TF:0", testMapping(), &sapmux.RecordingUpstream{}, tbl, nil)
	Pair(enc, dec)
	enc.Open()

	dec.mu.Lock()
	dec.rssiMean, dec.teMean = -45, 2
	dec.actualMSPower, dec.actualMSTiming = 25, 10
	dec.haveMeasurement = true
	dec.mu.Unlock()

	enc.updateControl()

	wantPower := clamp(25-(-45-(-50)), cfg.MSPower.Min, cfg.MSPower.Max)
	if enc.orderedPower != wantPower {
		t.Fatalf("orderedPower = %d, want %d (undamped first measurement)", enc.orderedPower, wantPower)
	}
	wantTA := clamp(int(float64(enc.cfg.MSTA.Damping)/100*0+(1-float64(enc.cfg.MSTA.Damping)/100)*12), 0, cfg.MSTA.Max)
	if enc.orderedTA != wantTA {
		t.Fatalf("orderedTA = %d, want %d", enc.orderedTA, wantTA)
	}
}

func TestClosedLoopClampsToConfiguredRange(t *testing.T) {
	cfg := config.Default()
	cfg.MSPower.Min, cfg.MSPower.Max = 5, 33
	cfg.MSTA.Max = 63
	tbl := testTable(t)
	enc := NewEncoder(0, "SACCH/TF:0", testMapping(), &captureRadio{}, cfg, tbl, nil, nil)
	dec := NewDecoder(0, "SACCH/TF:0", testMapping(), &sapmux.RecordingUpstream{}, tbl, nil)
	Pair(enc, dec)
	enc.Open()

	dec.mu.Lock()
	dec.rssiMean, dec.teMean = -90, 0
	dec.actualMSPower, dec.actualMSTiming = 33, 200
	dec.haveMeasurement = true
	dec.mu.Unlock()

	enc.updateControl()

	if enc.orderedPower > cfg.MSPower.Max || enc.orderedPower < cfg.MSPower.Min {
		t.Fatalf("orderedPower %d escaped [%d,%d]", enc.orderedPower, cfg.MSPower.Min, cfg.MSPower.Max)
	}
	if enc.orderedTA > cfg.MSTA.Max || enc.orderedTA < 0 {
		t.Fatalf("orderedTA %d escaped [0,%d]", enc.orderedTA, cfg.MSTA.Max)
	}
}

func TestSetPhyIsUndamped(t *testing.T) {
	cfg := config.Default()
	enc := NewEncoder(0, "SACCH/TF:0", testMapping(), &captureRadio{}, cfg, testTable(t), nil, nil)
	enc.Open()
	enc.orderedPower = 10
	enc.orderedTA = 40

	enc.SetPhy(-40, 1, 20, 5)

	deltaP := -40 - float64(cfg.RSSITarget)
	want := clamp(int(20-deltaP), cfg.MSPower.Min, cfg.MSPower.Max)
	if enc.orderedPower != want {
		t.Fatalf("orderedPower = %d, want %d", enc.orderedPower, want)
	}
	wantTA := clamp(6, 0, cfg.MSTA.Max)
	if enc.orderedTA != wantTA {
		t.Fatalf("orderedTA = %d, want %d", enc.orderedTA, wantTA)
	}
	if !enc.haveHistory {
		t.Fatal("SetPhy must mark damping history as established")
	}
}
