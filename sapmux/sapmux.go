// Package sapmux defines the upstream SAPMUX collaborator boundary: the
// component decoded L2 frames are delivered to, and from which an
// encoder learns when its next transmit opportunity is. Grounded on
// go-dmr's callback-style upstream interfaces (homebrew.StreamFunc,
// dmr.PacketFunc) rather than a heavyweight multiplexer type.
package sapmux

import (
	"github.com/bloodandwolf/Osmo-USRP/l2"
	"github.com/bloodandwolf/Osmo-USRP/tdma"
)

// Upstream is the SAPMUX-facing interface a decoder delivers decoded
// frames through and an encoder pulls frames to send from.
type Upstream interface {
	// WriteLowSide delivers a decoded control-channel frame.
	WriteLowSide(frame l2.Frame, at tdma.Time, rssi, ta, fer float64)

	// WriteLowSideSACCH delivers a decoded SACCH frame along with the
	// measurements the handset is reporting about itself.
	WriteLowSideSACCH(frame l2.Frame, at tdma.Time, rssi, ta, fer float64, actualMSPower int, actualMSTiming int)

	// WriteLowSideTCH delivers a decoded 33-octet speech frame.
	WriteLowSideTCH(frame [33]byte, at tdma.Time, rssi, ta, fer float64)

	// SignalNextWtime informs the upstream of an encoder's next
	// transmit opportunity so it can pace frame submission.
	SignalNextWtime(t tdma.Time)

	// WriteHighSide hands an L2 frame down to an encoder for sending.
	WriteHighSide(frame l2.Frame)
}

// NullUpstream discards everything; useful as a default collaborator
// in tests that only exercise the FEC pipeline itself.
type NullUpstream struct{}

func (NullUpstream) WriteLowSide(l2.Frame, tdma.Time, float64, float64, float64) {}
func (NullUpstream) WriteLowSideSACCH(l2.Frame, tdma.Time, float64, float64, float64, int, int) {}
func (NullUpstream) WriteLowSideTCH([33]byte, tdma.Time, float64, float64, float64) {}
func (NullUpstream) SignalNextWtime(tdma.Time)                                     {}
func (NullUpstream) WriteHighSide(l2.Frame)                                        {}

// RecordingUpstream captures every delivered frame, for tests.
type RecordingUpstream struct {
	NullUpstream
	Frames      []l2.Frame
	SACCHFrames []l2.Frame
	TCHFrames   [][33]byte
	WriteTimes  []tdma.Time

	LastRSSI, LastTA, LastFER float64
	LastMSPower, LastMSTiming int
}

func (r *RecordingUpstream) WriteLowSide(frame l2.Frame, at tdma.Time, rssi, ta, fer float64) {
	r.Frames = append(r.Frames, frame)
	r.LastRSSI, r.LastTA, r.LastFER = rssi, ta, fer
}

func (r *RecordingUpstream) WriteLowSideSACCH(frame l2.Frame, at tdma.Time, rssi, ta, fer float64, msPower, msTiming int) {
	r.SACCHFrames = append(r.SACCHFrames, frame)
	r.LastRSSI, r.LastTA, r.LastFER = rssi, ta, fer
	r.LastMSPower, r.LastMSTiming = msPower, msTiming
}

func (r *RecordingUpstream) WriteLowSideTCH(frame [33]byte, at tdma.Time, rssi, ta, fer float64) {
	r.TCHFrames = append(r.TCHFrames, frame)
}

func (r *RecordingUpstream) SignalNextWtime(t tdma.Time) {
	r.WriteTimes = append(r.WriteTimes, t)
}

var _ Upstream = (*RecordingUpstream)(nil)
