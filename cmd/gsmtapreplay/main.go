// Command gsmtapreplay replays a GSMTAP capture file, printing a
// summary of every tapped burst/frame and optionally re-emitting it
// live over UDP to a GSMTAP-aware listener (Wireshark, a second
// instance of this tool, etc). Grounded on cmd/dmrstream's
// PCAPProtocol.Run(): open an offline capture, decode each packet, and
// hand it to a sink function, here gsmtap.ReadFile's callback in place
// of homebrew.ParseData + Stream.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bloodandwolf/Osmo-USRP/gsmtap"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("gsmtapreplay")

func subtypeName(st uint8) string {
	switch st {
	case gsmtap.BurstFCCH:
		return "FCCH"
	case gsmtap.BurstSCH:
		return "SCH"
	case gsmtap.BurstCTS_SCH:
		return "CTS_SCH"
	case gsmtap.BurstCompactSCH:
		return "COMPACT_SCH"
	case gsmtap.BurstNormal:
		return "NORMAL"
	case gsmtap.BurstDummy:
		return "DUMMY"
	case gsmtap.BurstAccess:
		return "ACCESS"
	default:
		return "UNKNOWN"
	}
}

func main() {
	pcapFile := flag.String("pcap", "", "GSMTAP pcap capture to replay")
	liveAddr := flag.String("live", "", "host:port to re-emit each packet to over UDP (default: don't)")
	showRaw := flag.Bool("raw", false, "dump the raw payload of every packet")
	pace := flag.Duration("pace", 0, "sleep this long between packets (default: as fast as possible)")
	logLevel := flag.String("loglevel", "INFO", "op/go-logging level")
	flag.Parse()

	if *pcapFile == "" {
		fmt.Fprintln(os.Stderr, "gsmtapreplay: -pcap is required")
		os.Exit(2)
	}

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid -loglevel: %v", err)
	}
	logging.SetLevel(level, "gsmtapreplay")

	var conn net.Conn
	if *liveAddr != "" {
		conn, err = net.Dial("udp", *liveAddr)
		if err != nil {
			log.Fatalf("dial %s: %v", *liveAddr, err)
		}
		defer conn.Close()
	}

	count := 0
	err = gsmtap.ReadFile(*pcapFile, func(p gsmtap.Packet) {
		count++
		dir := "dl"
		if p.Header.Uplink {
			dir = "ul"
		}
		log.Infof("#%d %s arfcn=%d tn=%d fn=%d subtype=%s rssi=%ddBm",
			count, dir, p.Header.ARFCN, p.Header.Timeslot, p.Header.FrameNumber,
			subtypeName(p.Header.SubType), p.Header.SignalDBm)

		if *showRaw {
			fmt.Print(hex.Dump(p.Payload))
		}

		if conn != nil {
			body := append(p.Header.Marshal(), p.Payload...)
			if _, err := conn.Write(body); err != nil {
				log.Warningf("live re-emit failed: %v", err)
			}
		}

		if *pace > 0 {
			time.Sleep(*pace)
		}
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	log.Infof("replayed %d packets from %s", count, *pcapFile)
}
