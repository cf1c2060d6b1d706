// Package powertable implements the GSM 05.05 4.1.1 transmit-power
// control-code tables, reproduced verbatim per band.
package powertable

import "fmt"

// Band identifies a GSM frequency band.
type Band int

const (
	GSM400 Band = iota
	GSM850
	EGSM900
	DCS1800
	PCS1900
)

func (b Band) String() string {
	switch b {
	case GSM400:
		return "GSM400"
	case GSM850:
		return "GSM850"
	case EGSM900:
		return "EGSM900"
	case DCS1800:
		return "DCS1800"
	case PCS1900:
		return "PCS1900"
	default:
		return "unknown band"
	}
}

// lowBand covers GSM400, GSM850 and EGSM900, which share a table.
var lowBand = [32]int{
	39, 39, 39, 37,
	35, 33, 31, 29,
	27, 25, 23, 21,
	19, 17, 15, 13,
	11, 9, 7, 5,
	5, 5, 5, 5,
	5, 5, 5, 5,
	5, 5, 5, 5,
}

var dcs1800 = [32]int{
	30, 28, 26, 24,
	22, 20, 18, 16,
	14, 12, 10, 8,
	6, 4, 2, 0,
	0, 0, 0, 0,
	0, 0, 0, 0,
	0, 0, 0, 0,
	0, 36, 24, 23,
}

var pcs1900 = [32]int{
	30, 28, 26, 24,
	22, 20, 18, 16,
	14, 12, 10, 8,
	6, 4, 2, 0,
	0, 0, 0, 0,
	0, 0, 0, 0,
	0, 0, 0, 0,
	0, 0, 0, 0,
}

// Table holds one band's power-code-to-dBm mapping and the encode/decode
// operations over it.
type Table struct {
	band   Band
	values [32]int
}

// ForBand selects the power table for a band. An unrecognized band is a
// configuration error, fatal at construction time, matching the
// original's assert(table) rather than a recoverable runtime condition.
func ForBand(band Band) (*Table, error) {
	switch band {
	case GSM400, GSM850, EGSM900:
		return &Table{band: band, values: lowBand}, nil
	case DCS1800:
		return &Table{band: band, values: dcs1800}, nil
	case PCS1900:
		return &Table{band: band, values: pcs1900}, nil
	default:
		return nil, fmt.Errorf("powertable: unknown band %v", band)
	}
}

// Band returns the table's band.
func (t *Table) Band() Band { return t.band }

// DecodePower converts a 5-bit power control code into dBm.
func (t *Table) DecodePower(code uint) int {
	return t.values[code&0x1f]
}

// EncodePower finds the power control code whose dBm value is closest
// to power, preferring the lowest code on ties in error magnitude but an
// exact match always wins outright.
func (t *Table) EncodePower(power int) uint {
	abs := func(x int) int {
		if x < 0 {
			return -x
		}
		return x
	}
	minErr := abs(power - t.values[0])
	if minErr == 0 {
		return 0
	}
	code := uint(0)
	for i := 1; i < 32; i++ {
		err := abs(power - t.values[i])
		if err == 0 {
			return uint(i)
		}
		if err < minErr {
			minErr = err
			code = uint(i)
		}
	}
	return code
}
