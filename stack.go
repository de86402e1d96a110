package manetsim

// stack.go installs the network layer.  The routing integrator gives
// every node a stack bound to the one routing protocol instance of the
// run and assigns addresses from a single contiguous block, in node
// creation order.  Stacks forward datagrams hop by hop: a datagram
// whose destination matches the local address is demultiplexed to a
// bound socket, anything else is re-transmitted toward the routing
// protocol's next hop.

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// the experiment's address block, 10.0.0.0/8, assigned starting at 10.0.0.1
var addrBase = netip.AddrFrom4([4]byte{10, 0, 0, 0})

// addrBlockCapacity is the number of host addresses a /8 block offers
const addrBlockCapacity = 1<<24 - 2

// maxHops bounds forwarding so a malformed table cannot loop a
// datagram forever
const maxHops = 64

// A Datagram is one application packet in flight.  Its addresses are
// network endpoints; the link layer is told separately which neighbor
// carries it on each hop.
type Datagram struct {
	Src     netip.Addr
	Dst     netip.Addr
	SrcPort int
	DstPort int
	Len     int // bytes
	Hops    int // hops taken so far
}

// A Stack is a node's network layer: its interface, bound to the
// experiment-wide routing protocol
type Stack struct {
	node    *Node
	intrfc  *Intrfc
	routing RoutingProtocol
}

// InstallStack builds a stack on every node of the topology, assigns
// each interface the next address of the block, and installs the
// routing protocol over the medium's connectivity.  Fails with an
// AddressExhaustionError when the topology outgrows the block.
func InstallStack(topo *Topology, medium *SharedMedium, routing RoutingProtocol) error {
	if topo.Size() > addrBlockCapacity {
		return &AddressExhaustionError{Requested: topo.Size(), Capacity: addrBlockCapacity}
	}

	addr := addrBase
	for _, node := range topo.Nodes() {
		if node.intrfc == nil {
			return ConfigurationErrorf("%s has no interface to address", node.name)
		}
		addr = addr.Next()
		node.intrfc.addr = addr
		node.stack = &Stack{node: node, intrfc: node.intrfc, routing: routing}
	}

	return routing.Install(topo, medium.Connectivity())
}

// Send originates a datagram from this stack's node.  A missing route
// drops the datagram silently; route availability is the routing
// protocol's concern, not the driver's.
func (stack *Stack) Send(evtMgr *evtm.EventManager, dg *Datagram) {
	nxt, present := stack.routing.NextHop(stack.node.id, dg.Dst)
	if !present {
		return
	}
	stack.intrfc.xmt(evtMgr, dg, nxt.intrfc)
}

// arrive handles a datagram delivered to this node by the link layer:
// deliver locally when addressed here, otherwise forward
func (stack *Stack) arrive(evtMgr *evtm.EventManager, dg *Datagram) {
	if dg.Dst == stack.intrfc.addr {
		stack.demux(evtMgr, dg)
		return
	}

	dg.Hops += 1
	if dg.Hops >= maxHops {
		return
	}
	nxt, present := stack.routing.NextHop(stack.node.id, dg.Dst)
	if !present {
		return
	}
	stack.intrfc.xmt(evtMgr, dg, nxt.intrfc)
}

// demux hands a locally addressed datagram to the socket bound to its
// destination port, dropping it when no socket matches
func (stack *Stack) demux(evtMgr *evtm.EventManager, dg *Datagram) {
	for _, sock := range stack.node.sockets {
		if sock.port == dg.DstPort {
			sock.deliver(evtMgr, dg)
			return
		}
	}
}

// ScheduleRouteDump arranges a one-shot snapshot of every node's route
// table at simulated time 'at', written to the named artifact.  This is
// a single scheduled callback, deliberately outside the observation
// pipeline's steady-state event stream.
func ScheduleRouteDump(evtMgr *evtm.EventManager, routing RoutingProtocol, at float64, filename string) {
	evtMgr.Schedule(routing, filename, dumpRouteTables, vrtime.SecondsToTime(at))
}

// dumpRouteTables is the handler behind ScheduleRouteDump
func dumpRouteTables(evtMgr *evtm.EventManager, context any, data any) any {
	routing := context.(RoutingProtocol)
	filename := data.(string)

	f, err := os.Create(filename)
	if err != nil {
		panic(fmt.Sprintf("cannot create route dump %s: %v", filename, err))
	}
	routing.DumpTables(f, evtMgr.CurrentSeconds())
	f.Close()
	return nil
}
