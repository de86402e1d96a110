// Package manetsim is a scenario driver for evaluating ad-hoc routing
// over a multi-hop wireless network.  It builds a fixed row topology,
// provisions a shared wireless medium, binds a routing protocol,
// generates on/off application traffic, and logs every observed
// transmission and reception against the simulated clock.  The
// discrete-event scheduler, virtual time, and seeded random streams
// come from the iti/evt and iti/rngstream modules; the driver owns
// only the orchestration.
package manetsim

import (
	"fmt"
	"io"
	"os"

	"github.com/iti/evt/evtm"
	"github.com/iti/rngstream"
)

// ExpState tracks the controller through its lifecycle.  The order is
// strict: an experiment is configured once, runs once, and finishes.
type ExpState int

const (
	Unconfigured ExpState = iota
	Configured
	Running
	Finished
)

func (state ExpState) String() string {
	switch state {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Running:
		return "running"
	}
	return "finished"
}

// An ExperimentCfg holds every parameter of a run.  The zero value is
// not usable; start from DfltExperimentCfg and override.
type ExperimentCfg struct {
	// name of the experiment, used in artifacts and the rng stream
	Name string `json:"name" yaml:"name"`

	// number of nodes and their grid spacing in meters
	Size int     `json:"size" yaml:"size"`
	Step float64 `json:"step" yaml:"step"`

	// total simulated duration, seconds
	Duration float64 `json:"duration" yaml:"duration"`

	// radio reach and link speed
	RadioRange float64 `json:"radiorange" yaml:"radiorange"`
	DataRate   float64 `json:"datarate" yaml:"datarate"`

	// write per-device capture artifacts
	Pcap bool `json:"pcap" yaml:"pcap"`

	// write a one-shot route table dump at RouteDumpTime
	PrintRoutes   bool    `json:"printroutes" yaml:"printroutes"`
	RouteDumpTime float64 `json:"routedumptime" yaml:"routedumptime"`

	// master seed for the run's random streams
	Seed uint64 `json:"seed" yaml:"seed"`

	// prefix for artifacts written to the working directory
	ArtifactPrefix string `json:"prefix" yaml:"prefix"`

	// when non-empty, observation events are serialized here
	// (yaml or json, by extension)
	TraceFile string `json:"tracefile" yaml:"tracefile"`

	// traffic endpoints by node id; a negative Receiver means the
	// last node of the topology
	Sender   int `json:"sender" yaml:"sender"`
	Receiver int `json:"receiver" yaml:"receiver"`

	// the traffic flow's timing parameters
	Flow OnOffCfg `json:"flow" yaml:"flow"`
}

// DfltExperimentCfg reproduces the historical scenario: ten nodes
// 100 m apart, 100 s of simulated time, routes printed, capture off
func DfltExperimentCfg() ExperimentCfg {
	return ExperimentCfg{
		Name:           "manet",
		Size:           10,
		Step:           100.0,
		Duration:       100.0,
		RadioRange:     DfltRadioRange,
		DataRate:       DfltDataRate,
		Pcap:           false,
		PrintRoutes:    true,
		RouteDumpTime:  8.0,
		Seed:           12345,
		ArtifactPrefix: "manet",
		Sender:         0,
		Receiver:       -1,
		Flow:           DfltOnOffCfg(),
	}
}

// validate rejects parameter combinations the experiment cannot run
// with.  Every rejection is a ConfigurationError and happens before
// anything is scheduled.
func (cfg *ExperimentCfg) validate() error {
	if cfg.Size < 1 {
		return ConfigurationErrorf("node count must be positive, got %d", cfg.Size)
	}
	if cfg.Step < 0.0 {
		return ConfigurationErrorf("grid step must be non-negative, got %g", cfg.Step)
	}
	if !(cfg.Duration > 0.0) {
		return ConfigurationErrorf("duration must be positive, got %g", cfg.Duration)
	}
	if cfg.Sender < 0 || cfg.Sender >= cfg.Size {
		return ConfigurationErrorf("sender id %d outside topology of %d nodes", cfg.Sender, cfg.Size)
	}
	rcvr := cfg.receiverID()
	if rcvr >= cfg.Size {
		return ConfigurationErrorf("receiver id %d outside topology of %d nodes", rcvr, cfg.Size)
	}
	if rcvr == cfg.Sender {
		return ConfigurationErrorf("sender and receiver are both node %d", cfg.Sender)
	}
	if cfg.Flow.PktLen < 1 {
		return ConfigurationErrorf("packet length must be positive, got %d", cfg.Flow.PktLen)
	}
	if !(cfg.Flow.Rate > 0.0) {
		return ConfigurationErrorf("flow rate must be positive, got %g", cfg.Flow.Rate)
	}
	if !(cfg.Flow.OnPeriod > 0.0) || cfg.Flow.OffPeriod < 0.0 {
		return ConfigurationErrorf("on/off periods %g/%g out of range", cfg.Flow.OnPeriod, cfg.Flow.OffPeriod)
	}
	if cfg.Flow.StartMax < cfg.Flow.StartMin {
		return ConfigurationErrorf("start interval [%g,%g) is empty", cfg.Flow.StartMin, cfg.Flow.StartMax)
	}
	// note: Flow.Stop below the realized start is legal; such a flow
	// never transmits
	return nil
}

// receiverID resolves the negative-means-last convention
func (cfg *ExperimentCfg) receiverID() int {
	if cfg.Receiver < 0 {
		return cfg.Size - 1
	}
	return cfg.Receiver
}

// An Experiment owns the topology and every per-component
// configuration of one run, and sequences the components around the
// event scheduler's lifecycle
type Experiment struct {
	cfg     ExperimentCfg
	state   ExpState
	w       io.Writer
	evtMgr  *evtm.EventManager
	rng     *rngstream.RngStream
	tm      *TraceManager
	topo    *Topology
	medium  *SharedMedium
	routing RoutingProtocol
	pipe    *ObservationPipeline
	app     *OnOffApp
}

// CreateExperiment validates cfg and moves a new experiment to the
// Configured state, seeding the run's random stream.  Event log lines
// go to w; nil selects stdout.  A validation failure is fatal to the
// run: nothing was and nothing will be scheduled.
func CreateExperiment(cfg ExperimentCfg, w io.Writer) (*Experiment, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stdout
	}

	expt := new(Experiment)
	expt.cfg = cfg
	expt.w = w

	// one seeding, at Configured entry; every random draw of the run
	// descends from it
	rngstream.SetRngStreamMasterSeed(cfg.Seed)
	expt.rng = rngstream.New(cfg.Name)

	expt.tm = CreateTraceManager(cfg.Name, len(cfg.TraceFile) > 0)
	expt.state = Configured
	return expt, nil
}

// State reports where the controller is in its lifecycle
func (expt *Experiment) State() ExpState {
	return expt.state
}

// UseRouting replaces the default shortest-path reference protocol,
// e.g. with the routing implementation under evaluation.  Only legal
// before Run.
func (expt *Experiment) UseRouting(routing RoutingProtocol) error {
	if expt.state != Configured {
		return fmt.Errorf("routing can only be bound in the configured state, not %s", expt.state)
	}
	expt.routing = routing
	return nil
}

// Run sequences topology construction, link provisioning, stack
// installation, and traffic installation, then drives the scheduler to
// the configured horizon and tears down.  Terminal: a finished
// experiment cannot run again.
func (expt *Experiment) Run() error {
	if expt.state != Configured {
		return fmt.Errorf("cannot run from state %s", expt.state)
	}
	expt.state = Running
	expt.evtMgr = evtm.New()

	expt.createNodes()
	if err := expt.createDevices(); err != nil {
		return err
	}
	if err := expt.installStack(); err != nil {
		return err
	}
	expt.installApplications()

	fmt.Printf("Starting simulation for %g s ...\n", expt.cfg.Duration)
	expt.evtMgr.Run(expt.cfg.Duration)

	expt.teardown()
	return nil
}

// createNodes builds the grid topology and registers node names with
// the trace dictionary.  Validation already bounded the parameters, so
// a build failure here is a programming error.
func (expt *Experiment) createNodes() {
	fmt.Printf("Creating %d nodes %g m apart.\n", expt.cfg.Size, expt.cfg.Step)
	topo, err := CreateTopology(expt.cfg.Size, expt.cfg.Step)
	if err != nil {
		panic(err)
	}
	expt.topo = topo

	for _, node := range topo.Nodes() {
		expt.tm.AddName(node.id, node.name, "node")
	}
}

// createDevices provisions every node's wireless interface on one
// shared ad-hoc medium, and opens capture artifacts when asked to
func (expt *Experiment) createDevices() error {
	expt.medium = CreateSharedMedium(expt.cfg.RadioRange)
	expt.medium.Provision(expt.topo, expt.cfg.DataRate)

	if expt.cfg.Pcap {
		return expt.medium.EnableCapture(expt.cfg.ArtifactPrefix)
	}
	return nil
}

// installStack addresses the interfaces from the experiment's block,
// binds the routing protocol to every node, and schedules the one-shot
// route table dump when it was requested
func (expt *Experiment) installStack() error {
	if expt.routing == nil {
		expt.routing = CreateShortestPathRouting()
	}
	if err := InstallStack(expt.topo, expt.medium, expt.routing); err != nil {
		return err
	}

	if expt.cfg.PrintRoutes {
		ScheduleRouteDump(expt.evtMgr, expt.routing,
			expt.cfg.RouteDumpTime, expt.cfg.ArtifactPrefix+".routes")
	}
	return nil
}

// installApplications places a receive sink on every node and the
// single on/off source on the sender, aimed at the receiver's address
func (expt *Experiment) installApplications() {
	expt.pipe = CreateObservationPipeline(expt.w, expt.tm)
	expt.pipe.InstallSinks(expt.topo, SinkPort)

	sender, _ := expt.topo.NodeByID(expt.cfg.Sender)
	receiver, _ := expt.topo.NodeByID(expt.cfg.receiverID())
	expt.app = InstallOnOff(expt.evtMgr, sender, receiver.Addr(), SinkPort,
		expt.cfg.Flow, expt.rng, expt.pipe)
}

// teardown releases scheduler-adjacent state and writes the trace
// artifact.  Entering Finished is terminal.
func (expt *Experiment) teardown() {
	expt.medium.closeCapture()
	if expt.tm.Active() {
		expt.tm.WriteToFile(expt.cfg.TraceFile)
	}
	expt.state = Finished
}

// Pipeline exposes the observation pipeline, e.g. for post-run counts
func (expt *Experiment) Pipeline() *ObservationPipeline {
	return expt.pipe
}

// Traffic exposes the installed traffic source
func (expt *Experiment) Traffic() *OnOffApp {
	return expt.app
}

// Topo exposes the built topology, nil before Run
func (expt *Experiment) Topo() *Topology {
	return expt.topo
}

// Report writes a one-paragraph summary of the finished run
func (expt *Experiment) Report(w io.Writer) {
	if expt.state != Finished {
		fmt.Fprintf(w, "experiment %s has not finished\n", expt.cfg.Name)
		return
	}
	fmt.Fprintf(w, "experiment %s: %d packets sent, %d transmit events, %d receive events, %d frames lost, last event at %gs\n",
		expt.cfg.Name, expt.app.Sent(), expt.pipe.Transmitted(), expt.pipe.Received(),
		expt.medium.lost, expt.pipe.LastEventTime())
}
