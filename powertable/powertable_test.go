package powertable

import "testing"

func TestForBandUnknown(t *testing.T) {
	if _, err := ForBand(Band(99)); err == nil {
		t.Fatal("expected error for unknown band")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tab, err := ForBand(DCS1800)
	if err != nil {
		t.Fatal(err)
	}
	for code := uint(0); code < 32; code++ {
		dbm := tab.DecodePower(code)
		got := tab.EncodePower(dbm)
		if tab.DecodePower(got) != dbm {
			t.Fatalf("code %d -> %d dBm -> code %d -> %d dBm, not a fixed point", code, dbm, got, tab.DecodePower(got))
		}
	}
}

func TestEncodePowerNearest(t *testing.T) {
	tab, _ := ForBand(GSM850)
	if got := tab.EncodePower(40); got != 0 {
		t.Fatalf("EncodePower(40) = %d, want 0 (nearest to 39)", got)
	}
}
