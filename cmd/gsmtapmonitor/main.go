// Command gsmtapmonitor plays a running audio level meter over the
// energy of normal-burst frames read from a GSMTAP capture (every
// channel tapped with the normal-burst subtype, traffic and control
// alike, not only TCH), the way a radio
// bench tool shows signal presence without decoding real speech.
// Grounded on cmd/dmrdatadump's portaudio output stream setup
// (portaudio.Initialize/DefaultHostApi/LowLatencyParameters/OpenStream),
// with the AMBE decode step replaced by a simple frame-energy estimate
// since this core's Non-goals exclude a speech codec.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/bloodandwolf/Osmo-USRP/gsmtap"

	"github.com/gordonklaus/portaudio"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("gsmtapmonitor")

const sampleRate = 8000

// frameEnergy returns a normalized [0,1] loudness estimate for one
// tapped frame, the root-mean-square of its octets treated as
// signed excursions around the frame's mean.
func frameEnergy(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	var mean float64
	for _, b := range payload {
		mean += float64(b)
	}
	mean /= float64(len(payload))

	var sumSq float64
	for _, b := range payload {
		d := float64(b) - mean
		sumSq += d * d
	}
	rms := math.Sqrt(sumSq / float64(len(payload)))
	return math.Min(rms/128.0, 1.0)
}

func main() {
	pcapFile := flag.String("pcap", "", "GSMTAP pcap capture to monitor")
	tone := flag.Float64("tone", 440, "sidetone frequency in Hz, scaled by each frame's energy")
	flag.Parse()

	if *pcapFile == "" {
		fmt.Fprintln(os.Stderr, "gsmtapmonitor: -pcap is required")
		os.Exit(2)
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	h, err := portaudio.DefaultHostApi()
	if err != nil {
		log.Fatalf("portaudio host API: %v", err)
	}

	level := make(chan float64, 1)
	level <- 0

	var phase float64
	params := portaudio.LowLatencyParameters(nil, h.DefaultOutputDevice)
	params.SampleRate = sampleRate
	params.Output.Channels = 1
	stream, err := portaudio.OpenStream(params, func(out []float32) {
		var cur float64
		select {
		case cur = <-level:
			level <- cur
		default:
			cur = 0
		}
		step := 2 * math.Pi * *tone / sampleRate
		for i := range out {
			out[i] = float32(cur * math.Sin(phase))
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
	})
	if err != nil {
		log.Fatalf("open stream: %v", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		log.Fatalf("start stream: %v", err)
	}
	defer stream.Stop()

	count := 0
	err = gsmtap.ReadFile(*pcapFile, func(p gsmtap.Packet) {
		if p.Header.SubType != gsmtap.BurstNormal {
			return
		}
		count++
		e := frameEnergy(p.Payload)
		select {
		case <-level:
		default:
		}
		level <- e
		log.Debugf("frame %d: arfcn=%d tn=%d fn=%d energy=%.3f",
			count, p.Header.ARFCN, p.Header.Timeslot, p.Header.FrameNumber, e)
	})
	if err != nil {
		log.Fatalf("monitor failed: %v", err)
	}
	log.Infof("monitored %d normal-burst frames from %s", count, *pcapFile)
}
