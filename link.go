package manetsim

// link.go provisions the wireless link layer.  Every node gets one
// interface on a single shared medium operating in ad-hoc mode (no
// access point, all nodes are peers) at a fixed data rate.  A frame
// reaches exactly the interfaces within radio range of its sender.
//
// Each interface serializes its outbound frames through a single-server
// transmit queue: one frame occupies the transmitter for len*8/rate
// seconds and queued frames are served first-come first-served.
//
// The RTS/CTS handshake is disabled: the threshold is fixed at zero,
// which this model reads as "no frame is short enough to require the
// handshake", so frames go to the air directly.  This matches the
// scenario the driver reproduces and keeps the medium infallible.

import (
	"fmt"
	"math"
	"net/netip"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// DfltDataRate is the fixed link speed, bits per second.  6 Mb/s OFDM.
const DfltDataRate = 6.0e6

// DfltRadioRange is the default reach of a transmission, meters.
// With the default 100 m grid step only adjacent nodes hear each other,
// which forces multi-hop forwarding along the line.
const DfltRadioRange = 150.0

// rtsCtsThreshold of zero disables the collision-avoidance handshake
// for every frame length
const rtsCtsThreshold = 0

// speed of light, meters per second, for propagation delay
const lightSpeed = 3.0e8

// A SharedMedium is the single broadcast channel every interface in the
// experiment attaches to
type SharedMedium struct {
	radioRange float64
	intrfcs    []*Intrfc
	lost       int // frames addressed to an out-of-range peer
}

// CreateSharedMedium is a constructor.  A non-positive radioRange
// selects the default.
func CreateSharedMedium(radioRange float64) *SharedMedium {
	medium := new(SharedMedium)
	if radioRange <= 0.0 {
		radioRange = DfltRadioRange
	}
	medium.radioRange = radioRange
	medium.intrfcs = make([]*Intrfc, 0)
	return medium
}

// An Intrfc is a node's single wireless network interface.  Its address
// is assigned later by the routing integrator.
type Intrfc struct {
	device *Node
	medium *SharedMedium
	addr   netip.Addr
	rate   float64 // bits per second
	busy   bool    // transmitter occupied
	xmtq   []*xmtTask
	captor *pcapCaptor // nil unless capture was enabled
}

// an xmtTask pairs a datagram awaiting transmission with the interface
// it is addressed to at the link layer
type xmtTask struct {
	dg   *Datagram
	peer *Intrfc
}

// Attach creates an interface for a node on this medium, in ad-hoc
// mode at the given rate (non-positive selects the default).  A node
// carries exactly one interface; attaching twice is a caller bug.
func (medium *SharedMedium) Attach(node *Node, rate float64) *Intrfc {
	if node.intrfc != nil {
		panic(fmt.Sprintf("%s already has an interface", node.name))
	}
	if rate <= 0.0 {
		rate = DfltDataRate
	}

	intrfc := &Intrfc{device: node, medium: medium, rate: rate}
	intrfc.xmtq = make([]*xmtTask, 0)
	node.intrfc = intrfc
	medium.intrfcs = append(medium.intrfcs, intrfc)
	return intrfc
}

// Provision attaches an interface to every node of a topology
func (medium *SharedMedium) Provision(topo *Topology, rate float64) {
	for _, node := range topo.Nodes() {
		medium.Attach(node, rate)
	}
}

// EnableCapture opens one capture artifact per attached interface,
// named <prefix>-<node>.pcap in the working directory.  Frames the
// interface sends and receives from then on are recorded.
func (medium *SharedMedium) EnableCapture(prefix string) error {
	for _, intrfc := range medium.intrfcs {
		captor, err := createPcapCaptor(fmt.Sprintf("%s-%s.pcap", prefix, intrfc.device.name))
		if err != nil {
			return err
		}
		intrfc.captor = captor
	}
	return nil
}

// closeCapture flushes and closes any capture artifacts at teardown
func (medium *SharedMedium) closeCapture() {
	for _, intrfc := range medium.intrfcs {
		if intrfc.captor != nil {
			intrfc.captor.close()
			intrfc.captor = nil
		}
	}
}

// distance gives the separation of two interfaces' owning nodes, meters
func distance(a, b *Intrfc) float64 {
	posA := a.device.pos
	posB := b.device.pos
	return math.Hypot(posA.X-posB.X, posA.Y-posB.Y)
}

// inRange reports whether a frame sent by interface a is heard by b
func (medium *SharedMedium) inRange(a, b *Intrfc) bool {
	if a == b {
		return false
	}
	return distance(a, b) <= medium.radioRange
}

// Connectivity returns the radio adjacency of the attached interfaces
// as a map from node id to the ids of the nodes it can hear, the form
// the routing protocol's install operation consumes
func (medium *SharedMedium) Connectivity() map[int][]int {
	conn := make(map[int][]int)
	for _, intrfc := range medium.intrfcs {
		id := intrfc.device.id
		conn[id] = make([]int, 0)
		for _, peer := range medium.intrfcs {
			if medium.inRange(intrfc, peer) {
				conn[id] = append(conn[id], peer.device.id)
			}
		}
	}
	return conn
}

// xmt queues a datagram for transmission to the named peer interface.
// If the transmitter is idle service begins immediately.
func (intrfc *Intrfc) xmt(evtMgr *evtm.EventManager, dg *Datagram, peer *Intrfc) {
	task := &xmtTask{dg: dg, peer: peer}
	intrfc.xmtq = append(intrfc.xmtq, task)
	if !intrfc.busy {
		intrfc.beginService(evtMgr)
	}
}

// beginService occupies the transmitter for the head-of-queue frame's
// serialization time and schedules the completion handler
func (intrfc *Intrfc) beginService(evtMgr *evtm.EventManager) {
	intrfc.busy = true
	task := intrfc.xmtq[0]
	xmtTime := float64(task.dg.Len*8) / intrfc.rate
	evtMgr.Schedule(intrfc, nil, xmtComplete, vrtime.SecondsToTime(xmtTime))
}

// xmtComplete fires when a frame has fully left the transmitter.  The
// frame propagates to its link-layer peer if the peer is in radio
// range, and the next queued frame (if any) enters service.
func xmtComplete(evtMgr *evtm.EventManager, context any, data any) any {
	intrfc := context.(*Intrfc)

	task := intrfc.xmtq[0]
	intrfc.xmtq = intrfc.xmtq[1:]

	if intrfc.captor != nil {
		intrfc.captor.record(evtMgr.CurrentSeconds(), task.dg)
	}

	if intrfc.medium.inRange(intrfc, task.peer) {
		propDelay := distance(intrfc, task.peer) / lightSpeed
		evtMgr.Schedule(task.peer, task.dg, frameArrival, vrtime.SecondsToTime(propDelay))
	} else {
		// the routing tables pointed at a peer the radio cannot reach;
		// the frame is simply lost, as it would be on the air
		intrfc.medium.lost += 1
	}

	if len(intrfc.xmtq) > 0 {
		intrfc.beginService(evtMgr)
	} else {
		intrfc.busy = false
	}
	return nil
}

// frameArrival fires when a frame reaches its link-layer destination.
// The frame is recorded by the receiver's captor and handed up the stack.
func frameArrival(evtMgr *evtm.EventManager, context any, data any) any {
	intrfc := context.(*Intrfc)
	dg := data.(*Datagram)

	if intrfc.captor != nil {
		intrfc.captor.record(evtMgr.CurrentSeconds(), dg)
	}
	intrfc.device.stack.arrive(evtMgr, dg)
	return nil
}
