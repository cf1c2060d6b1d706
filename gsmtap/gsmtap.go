// Package gsmtap implements the optional GSMTAP packet-capture tap: a
// side-effect-only writer that stamps every transmitted or received L2
// frame with (ARFCN, timeslot, frame number, channel type, uplink?,
// burst subtype) and emits it as a GSMTAP-over-UDP packet, plus a
// reader that hands each GSMTAP packet of a pcap capture to a callback;
// it does not run the packets through any decoder. Grounded on
// cmd/dmrstream's PCAPProtocol.Run() for the offline-capture decode
// path (pcap.OpenOffline + gopacket.NewPacketSource over an Ethernet
// decoder), and on GSML1FEC.cpp's gWriteGSMTAP call sites for which
// burst subtype accompanies which channel type.
package gsmtap

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("gsmtap")

// Burst subtypes, a local subset of the GSMTAP burst-type enumeration
// sufficient to distinguish the channel types this core taps.
const (
	BurstUnknown = iota
	BurstFCCH
	BurstSCH
	BurstCTS_SCH
	BurstCompactSCH
	BurstNormal
	BurstDummy
	BurstAccess
)

// Port is the IANA-registered GSMTAP UDP port.
const Port = 4729

// Header is the 16-byte GSMTAP header prepended to every tapped burst.
type Header struct {
	Version     uint8
	HdrLen      uint8
	Type        uint8
	Timeslot    uint8
	ARFCN       uint16
	SignalDBm   int8
	SNRdB       int8
	FrameNumber uint32
	SubType     uint8
	AntennaNr   uint8
	SubSlot     uint8
	Uplink      bool
}

const (
	typeUm      = 0x01
	arfcnUplink = 0x4000
)

// Marshal encodes the header into its 16-byte wire form.
func (h Header) Marshal() []byte {
	b := make([]byte, 16)
	b[0] = 2 // GSMTAP version 2
	b[1] = 4 // header length in 32-bit words
	b[2] = typeUm
	b[3] = h.Timeslot
	arfcn := h.ARFCN
	if h.Uplink {
		arfcn |= arfcnUplink
	}
	binary.BigEndian.PutUint16(b[4:6], arfcn)
	b[6] = byte(h.SignalDBm)
	b[7] = byte(h.SNRdB)
	binary.BigEndian.PutUint32(b[8:12], h.FrameNumber)
	b[12] = h.SubType
	b[13] = h.AntennaNr
	b[14] = h.SubSlot
	b[15] = 0
	return b
}

// Unmarshal decodes a 16-byte GSMTAP header.
func Unmarshal(b []byte) (Header, error) {
	if len(b) < 16 {
		return Header{}, fmt.Errorf("gsmtap: header too short: %d bytes", len(b))
	}
	arfcn := binary.BigEndian.Uint16(b[4:6])
	return Header{
		Version:     b[0],
		HdrLen:      b[1],
		Type:        b[2],
		Timeslot:    b[3],
		ARFCN:       arfcn &^ arfcnUplink,
		Uplink:      arfcn&arfcnUplink != 0,
		SignalDBm:   int8(b[6]),
		SNRdB:       int8(b[7]),
		FrameNumber: binary.BigEndian.Uint32(b[8:12]),
		SubType:     b[12],
		AntennaNr:   b[13],
		SubSlot:     b[14],
	}, nil
}

// Packet is one decoded GSMTAP capture: its header plus the raw burst
// or L2 payload that followed it.
type Packet struct {
	Header  Header
	Payload []byte
}

// Writer appends GSMTAP packets to a pcap file, wrapping each as
// Ethernet/IPv4/UDP, the same container dmrdatadump and dmrstream read
// capture files in.
type Writer struct {
	w      *pcapgo.Writer
	srcMAC net.HardwareAddr
	dstMAC net.HardwareAddr
	srcIP  net.IP
	dstIP  net.IP
}

// NewWriter wraps an open pcapgo writer (its header must already have
// been written by the caller via w.WriteFileHeader).
func NewWriter(w *pcapgo.Writer) *Writer {
	return &Writer{
		w:      w,
		srcMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		dstMAC: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		srcIP:  net.IPv4(127, 0, 0, 1),
		dstIP:  net.IPv4(127, 0, 0, 1),
	}
}

// Write serializes and appends one GSMTAP packet to the capture.
func (w *Writer) Write(h Header, payload []byte) error {
	eth := &layers.Ethernet{SrcMAC: w.srcMAC, DstMAC: w.dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: w.srcIP, DstIP: w.dstIP}
	udp := &layers.UDP{SrcPort: layers.UDPPort(Port), DstPort: layers.UDPPort(Port)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	body := append(h.Marshal(), payload...)
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(body)); err != nil {
		return err
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{CaptureLength: len(data), Length: len(data)}
	if err := w.w.WritePacket(ci, data); err != nil {
		return err
	}
	log.Debugf("tapped burst: arfcn=%d tn=%d fn=%d subtype=%d uplink=%v", h.ARFCN, h.Timeslot, h.FrameNumber, h.SubType, h.Uplink)
	return nil
}

// ReadFile replays an offline pcap capture, invoking fn with each
// decoded GSMTAP packet, mirroring PCAPProtocol.Run()'s
// pcap.OpenOffline + gopacket.NewPacketSource(handle, "Ethernet") loop.
func ReadFile(path string, fn func(Packet)) error {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return err
	}
	defer handle.Close()

	dec := gopacket.DecodersByLayerName["Ethernet"]
	source := gopacket.NewPacketSource(handle, dec)
	for packet := range source.Packets() {
		app := packet.ApplicationLayer()
		if app == nil {
			continue
		}
		raw := app.Payload()
		hdr, err := Unmarshal(raw)
		if err != nil {
			log.Warningf("skipping malformed GSMTAP packet: %v", err)
			continue
		}
		fn(Packet{Header: hdr, Payload: raw[16:]})
	}
	return nil
}
