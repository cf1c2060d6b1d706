// Package radio defines the Radio/ARFCNManager collaborator boundary:
// the external component that owns the physical transceiver and
// dispatches received bursts to the decoder installed for their
// timeslot, grounded on go-dmr's own small Repeater interface
// (Active/Close/ListenAndServe/Send).
package radio

import "github.com/bloodandwolf/Osmo-USRP/burst"

// Decoder is the minimal slice of a channel decoder the radio layer
// needs in order to dispatch a received burst to it, declared here
// (rather than imported from l1fec) to avoid a dependency cycle between
// this package and the channel-type packages that implement it.
type Decoder interface {
	WriteLowSide(*burst.RxBurst)
}

// Manager is the ARFCN-wide collaborator: it owns the physical
// transceiver for one ARFCN, accepts completed TxBursts from encoders,
// and routes incoming RxBursts to whichever decoder is installed for
// their timeslot.
type Manager interface {
	// ARFCN returns the absolute radio frequency channel number this
	// manager owns.
	ARFCN() int

	// WriteHighSide hands a completed burst to the transceiver for
	// transmission at its stamped TDMA time.
	WriteHighSide(*burst.TxBurst)

	// InstallDecoder registers the decoder that should receive bursts
	// arriving on timeslot tn.
	InstallDecoder(tn int, d Decoder)

	// Active reports whether the manager's transceiver link is up.
	Active() bool

	// Close releases the transceiver.
	Close() error
}

// StaticManager is a Manager fed by a test or replay tool instead of a
// live transceiver: InstallDecoder registers callbacks, Dispatch drives
// them directly.
type StaticManager struct {
	arfcn     int
	decoders  map[int]Decoder
	written   []*burst.TxBurst
	active    bool
}

// NewStaticManager returns a StaticManager for the given ARFCN.
func NewStaticManager(arfcn int) *StaticManager {
	return &StaticManager{arfcn: arfcn, decoders: make(map[int]Decoder), active: true}
}

func (m *StaticManager) ARFCN() int { return m.arfcn }

func (m *StaticManager) WriteHighSide(b *burst.TxBurst) {
	m.written = append(m.written, b)
}

func (m *StaticManager) InstallDecoder(tn int, d Decoder) {
	m.decoders[tn] = d
}

func (m *StaticManager) Active() bool { return m.active }

func (m *StaticManager) Close() error {
	m.active = false
	return nil
}

// Dispatch delivers b to the decoder installed on timeslot tn, if any.
func (m *StaticManager) Dispatch(tn int, b *burst.RxBurst) {
	if d, ok := m.decoders[tn]; ok {
		d.WriteLowSide(b)
	}
}

// Written returns every TxBurst submitted to the manager so far, for
// test inspection.
func (m *StaticManager) Written() []*burst.TxBurst {
	return m.written
}
