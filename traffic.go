package manetsim

// traffic.go installs the application traffic of an experiment: one
// on/off source on a chosen sender directed at a chosen receiver's
// address and port.  The on and off durations are constant per cycle;
// during an on period packets of fixed length leave back to back at
// the application data rate.  The start time is drawn uniformly at
// random from a configured interval using the run's seeded random
// stream, so a fixed seed fixes the start time.  The stop time is an
// absolute simulated time; a realized start at or past the stop time
// means the source simply never transmits.

import (
	"net/netip"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
)

// An OnOffApp alternates between transmitting and idle intervals
// until its stop time
type OnOffApp struct {
	node      *Node
	peer      netip.Addr
	port      int
	pktLen    int     // bytes per packet
	rate      float64 // bits per second while on
	onPeriod  float64 // seconds transmitting per cycle
	offPeriod float64 // seconds idle per cycle
	start     float64 // realized start, drawn at install time
	stop      float64 // absolute stop time
	windowEnd float64 // end of the current on period
	sent      int
	pipeline  *ObservationPipeline
}

// An OnOffCfg carries the timing parameters of one traffic flow
type OnOffCfg struct {
	PktLen    int     `json:"pktlen" yaml:"pktlen"`
	Rate      float64 `json:"rate" yaml:"rate"`
	OnPeriod  float64 `json:"on" yaml:"on"`
	OffPeriod float64 `json:"off" yaml:"off"`
	StartMin  float64 `json:"startmin" yaml:"startmin"`
	StartMax  float64 `json:"startmax" yaml:"startmax"`
	Stop      float64 `json:"stop" yaml:"stop"`
}

// DfltOnOffCfg reproduces the scenario's historical flow: 512 byte
// packets, constant 1 s on / 0 s off cycles, start uniform in [1,2) s,
// stop at 10 s
func DfltOnOffCfg() OnOffCfg {
	return OnOffCfg{
		PktLen:    512,
		Rate:      64.0e3,
		OnPeriod:  1.0,
		OffPeriod: 0.0,
		StartMin:  1.0,
		StartMax:  2.0,
		Stop:      10.0,
	}
}

// InstallOnOff places an on/off source on a node, draws its start time
// from rng, registers its transmit observer with the pipeline, and
// schedules its first on period.  A start at or beyond the stop time
// leaves the source installed but permanently silent.
func InstallOnOff(evtMgr *evtm.EventManager, node *Node, peer netip.Addr, port int,
	cfg OnOffCfg, rng *rngstream.RngStream, pipeline *ObservationPipeline) *OnOffApp {

	app := new(OnOffApp)
	app.node = node
	app.peer = peer
	app.port = port
	app.pktLen = cfg.PktLen
	app.rate = cfg.Rate
	app.onPeriod = cfg.OnPeriod
	app.offPeriod = cfg.OffPeriod
	app.stop = cfg.Stop
	app.pipeline = pipeline

	// the one random draw of the installation; the seeded stream makes
	// it reproducible
	app.start = cfg.StartMin + (cfg.StartMax-cfg.StartMin)*rng.RandU01()

	if app.start < app.stop {
		evtMgr.Schedule(app, nil, onOffCycleStart, vrtime.SecondsToTime(app.start))
	}
	return app
}

// Start returns the realized start time drawn at install
func (app *OnOffApp) Start() float64 {
	return app.start
}

// Sent returns the number of packets the source has put on the wire
func (app *OnOffApp) Sent() int {
	return app.sent
}

// pktInterval is the spacing of packets while the source is on
func (app *OnOffApp) pktInterval() float64 {
	return float64(app.pktLen*8) / app.rate
}

// onOffCycleStart opens an on period: note when it closes and send the
// first packet of the burst
func onOffCycleStart(evtMgr *evtm.EventManager, context any, data any) any {
	app := context.(*OnOffApp)
	app.windowEnd = evtMgr.CurrentSeconds() + app.onPeriod
	return onOffSend(evtMgr, context, data)
}

// onOffSend transmits one packet and schedules the next transmission,
// either within the current on period or at the start of the next
// cycle.  The stop time silences the source for good.
func onOffSend(evtMgr *evtm.EventManager, context any, data any) any {
	app := context.(*OnOffApp)
	now := evtMgr.CurrentSeconds()

	if now >= app.stop {
		return nil
	}

	dg := &Datagram{
		Src:     app.node.Addr(),
		Dst:     app.peer,
		SrcPort: app.port,
		DstPort: app.port,
		Len:     app.pktLen,
	}

	// observer first: the transmit event is stamped with the instant
	// the packet leaves the application
	app.pipeline.PacketSent(evtMgr, app.node, dg.Src, dg.Dst)
	app.node.stack.Send(evtMgr, dg)
	app.sent += 1

	nxt := now + app.pktInterval()
	if nxt < app.windowEnd {
		evtMgr.Schedule(app, nil, onOffSend, vrtime.SecondsToTime(nxt-now))
	} else {
		cycleStart := app.windowEnd + app.offPeriod
		if cycleStart < app.stop {
			evtMgr.Schedule(app, nil, onOffCycleStart, vrtime.SecondsToTime(cycleStart-now))
		}
	}
	return nil
}
