package manetsim

// observe.go is the observation pipeline: a receive-side sink bound on
// every node and an explicit observer list for application transmit
// events.  Every observed packet becomes one time-stamped log line,
// written immediately and synchronously so that the textual order of
// the log matches simulated-time order.  Transmit events come from
// explicit registration: each traffic source hands its callback to the
// pipeline at install time.

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// the well-known application port every sink listens on
const SinkPort = 80

// An ObservationEvent records one observed transmission or reception.
// Events are immutable once emitted; address fields are the zero
// netip.Addr when the corresponding endpoint could not be resolved.
type ObservationEvent struct {
	Time   float64
	NodeID int
	Kind   EventKind
	Src    netip.Addr
	Dst    netip.Addr
}

// EventKind distinguishes the two observable packet events
type EventKind int

const (
	TransmitEvent EventKind = iota
	ReceiveEvent
)

func (kind EventKind) String() string {
	if kind == TransmitEvent {
		return "transmit"
	}
	return "receive"
}

// The ObservationPipeline turns packet events into log lines the
// moment they happen, and mirrors them into the trace manager when one
// is active.  After installation it only reads node identities and
// addresses; it owns nothing.
type ObservationPipeline struct {
	w        io.Writer
	tm       *TraceManager
	xmtCount int
	rcvCount int
	lastTime float64
}

// CreateObservationPipeline is a constructor.  Log lines go to w; tm
// may be nil when no trace artifact is wanted.
func CreateObservationPipeline(w io.Writer, tm *TraceManager) *ObservationPipeline {
	op := new(ObservationPipeline)
	op.w = w
	op.tm = tm
	return op
}

// InstallSinks binds one receive socket per node on the well-known
// port, listening on the any-address.  Each socket wake drains every
// queued datagram so bursty delivery loses nothing.
func (op *ObservationPipeline) InstallSinks(topo *Topology, port int) {
	for _, node := range topo.Nodes() {
		sink := node.bindSocket(port)
		sink.recvFunc = func(evtMgr *evtm.EventManager, sock *Socket) {
			for {
				dg, ok := sock.recvFrom()
				if !ok {
					break
				}
				op.packetReceived(evtMgr, sock.node, dg)
			}
		}
	}
}

// PacketSent is the transmit-side observer callback.  Traffic sources
// registered with the pipeline call it once per packet they put on the
// wire, at the simulated instant of transmission.
func (op *ObservationPipeline) PacketSent(evtMgr *evtm.EventManager, node *Node, src, dst netip.Addr) {
	now := evtMgr.CurrentSeconds()
	op.xmtCount += 1
	op.lastTime = now

	// unresolved endpoints are omitted from the line, never fatal
	line := fmt.Sprintf("%g source ", now)
	if src.IsValid() {
		line += fmt.Sprintf("%s send to dest ", src)
	}
	if dst.IsValid() {
		line += dst.String()
	}
	fmt.Fprintln(op.w, line)

	op.record(evtMgr.CurrentTime(), ObservationEvent{
		Time: now, NodeID: node.id, Kind: TransmitEvent, Src: src, Dst: dst})
}

// packetReceived emits the receive-side event for one drained datagram
func (op *ObservationPipeline) packetReceived(evtMgr *evtm.EventManager, node *Node, dg *Datagram) {
	now := evtMgr.CurrentSeconds()
	op.rcvCount += 1
	op.lastTime = now

	if dg.Src.IsValid() {
		fmt.Fprintf(op.w, "%g %d received one packet from %s\n", now, node.id, dg.Src)
	} else {
		fmt.Fprintf(op.w, "%g %d received one packet!\n", now, node.id)
	}

	op.record(evtMgr.CurrentTime(), ObservationEvent{
		Time: now, NodeID: node.id, Kind: ReceiveEvent, Src: dg.Src, Dst: dg.Dst})
}

// record mirrors an event into the trace manager, when tracing is on
func (op *ObservationPipeline) record(vrt vrtime.Time, ev ObservationEvent) {
	if op.tm != nil {
		op.tm.AddEvent(vrt, ev)
	}
}

// Transmitted and Received report the pipeline's event counts
func (op *ObservationPipeline) Transmitted() int { return op.xmtCount }
func (op *ObservationPipeline) Received() int    { return op.rcvCount }

// LastEventTime gives the simulated timestamp of the newest event
func (op *ObservationPipeline) LastEventTime() float64 { return op.lastTime }

// A Socket is a node's binding of an application port to a receive
// callback.  Arrivals queue in recvq; a wake is scheduled at the
// arrival instant (once, however many arrivals pile up) and the
// callback drains the queue in arrival order.
type Socket struct {
	node        *Node
	port        int
	recvq       []*Datagram
	wakePending bool
	recvFunc    func(evtMgr *evtm.EventManager, sock *Socket)
}

// bindSocket attaches a socket for the given port to the node
func (node *Node) bindSocket(port int) *Socket {
	sock := &Socket{node: node, port: port}
	sock.recvq = make([]*Datagram, 0)
	node.sockets = append(node.sockets, sock)
	return sock
}

// deliver queues an arriving datagram and schedules the socket's wake
// if one is not already pending
func (sock *Socket) deliver(evtMgr *evtm.EventManager, dg *Datagram) {
	sock.recvq = append(sock.recvq, dg)
	if !sock.wakePending {
		sock.wakePending = true
		evtMgr.Schedule(sock, nil, socketWake, vrtime.SecondsToTime(0.0))
	}
}

// recvFrom pops the oldest queued datagram, reporting false on empty
func (sock *Socket) recvFrom() (*Datagram, bool) {
	if len(sock.recvq) == 0 {
		return nil, false
	}
	dg := sock.recvq[0]
	sock.recvq = sock.recvq[1:]
	return dg, true
}

// socketWake runs the socket's receive callback
func socketWake(evtMgr *evtm.EventManager, context any, data any) any {
	sock := context.(*Socket)
	sock.wakePending = false
	if sock.recvFunc != nil {
		sock.recvFunc(evtMgr, sock)
	}
	return nil
}
