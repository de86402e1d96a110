package manetsim

import (
	"fmt"
	"net/netip"
	"strings"
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSinkDrainsEveryQueuedDatagram delivers a burst of datagrams to
// one socket before its wake runs and checks that the single wake
// reports all of them, in delivery order
func TestSinkDrainsEveryQueuedDatagram(t *testing.T) {
	topo, _, _ := provisionLine(t, 1, 0.0, 150.0)

	var sb strings.Builder
	pipe := CreateObservationPipeline(&sb, nil)
	pipe.InstallSinks(topo, SinkPort)

	node := topo.Nodes()[0]
	sock := node.sockets[0]

	const burst = 5
	evtMgr := evtm.New()
	evtMgr.Schedule(nil, nil,
		func(evtMgr *evtm.EventManager, context any, data any) any {
			for idx := 0; idx < burst; idx++ {
				src := netip.AddrFrom4([4]byte{10, 0, 1, byte(idx + 1)})
				sock.deliver(evtMgr, &Datagram{
					Src: src, Dst: node.Addr(), DstPort: SinkPort, Len: 64})
			}
			return nil
		}, vrtime.SecondsToTime(1.0))
	evtMgr.Run(10.0)

	require.Equal(t, burst, pipe.Received())

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, burst)
	for idx, line := range lines {
		assert.Contains(t, line, fmt.Sprintf("received one packet from 10.0.1.%d", idx+1))
	}
}

func TestSinkReportsUnresolvablePeer(t *testing.T) {
	topo, _, _ := provisionLine(t, 1, 0.0, 150.0)

	var sb strings.Builder
	pipe := CreateObservationPipeline(&sb, nil)
	pipe.InstallSinks(topo, SinkPort)

	sock := topo.Nodes()[0].sockets[0]

	evtMgr := evtm.New()
	evtMgr.Schedule(nil, nil,
		func(evtMgr *evtm.EventManager, context any, data any) any {
			// no source address to resolve
			sock.deliver(evtMgr, &Datagram{Dst: topo.Nodes()[0].Addr(), DstPort: SinkPort, Len: 64})
			return nil
		}, vrtime.SecondsToTime(1.0))
	evtMgr.Run(10.0)

	assert.Equal(t, 1, pipe.Received())
	assert.Contains(t, sb.String(), "received one packet!")
}

// TestTransmitEventOncePerSignal checks that one PacketSent call
// produces exactly one transmit event even when every node hosts a
// matching sink application
func TestTransmitEventOncePerSignal(t *testing.T) {
	topo, _, _ := provisionLine(t, 4, 100.0, 150.0)

	var sb strings.Builder
	pipe := CreateObservationPipeline(&sb, nil)
	pipe.InstallSinks(topo, SinkPort)

	src := topo.Nodes()[0]
	dst := topo.Nodes()[3]

	evtMgr := evtm.New()
	const sends = 3
	evtMgr.Schedule(nil, nil,
		func(evtMgr *evtm.EventManager, context any, data any) any {
			for idx := 0; idx < sends; idx++ {
				pipe.PacketSent(evtMgr, src, src.Addr(), dst.Addr())
			}
			return nil
		}, vrtime.SecondsToTime(0.5))
	evtMgr.Run(10.0)

	assert.Equal(t, sends, pipe.Transmitted())
	assert.Equal(t, sends, strings.Count(sb.String(), "source "+src.Addr().String()))
}

func TestTransmitLineOmitsUnresolvedSide(t *testing.T) {
	topo, _, _ := provisionLine(t, 2, 100.0, 150.0)

	var sb strings.Builder
	pipe := CreateObservationPipeline(&sb, nil)

	src := topo.Nodes()[0]
	evtMgr := evtm.New()
	evtMgr.Schedule(nil, nil,
		func(evtMgr *evtm.EventManager, context any, data any) any {
			pipe.PacketSent(evtMgr, src, src.Addr(), netip.Addr{})
			return nil
		}, vrtime.SecondsToTime(0.5))
	evtMgr.Run(10.0)

	line := strings.TrimSpace(sb.String())
	assert.Contains(t, line, "source "+src.Addr().String()+" send to dest")
	assert.True(t, strings.HasSuffix(line, "send to dest"), "unresolved destination must be omitted: %q", line)
}

func TestEventsMirroredIntoTrace(t *testing.T) {
	topo, _, _ := provisionLine(t, 2, 100.0, 150.0)

	tm := CreateTraceManager("mirror", true)
	var sb strings.Builder
	pipe := CreateObservationPipeline(&sb, tm)
	pipe.InstallSinks(topo, SinkPort)

	src := topo.Nodes()[0]
	dst := topo.Nodes()[1]

	evtMgr := evtm.New()
	evtMgr.Schedule(nil, nil,
		func(evtMgr *evtm.EventManager, context any, data any) any {
			pipe.PacketSent(evtMgr, src, src.Addr(), dst.Addr())
			src.stack.Send(evtMgr, &Datagram{
				Src: src.Addr(), Dst: dst.Addr(), SrcPort: SinkPort, DstPort: SinkPort, Len: 64})
			return nil
		}, vrtime.SecondsToTime(1.0))
	evtMgr.Run(10.0)

	require.Len(t, tm.Events, 2)
	assert.Equal(t, "transmit", tm.Events[0].Kind)
	assert.Equal(t, "receive", tm.Events[1].Kind)
	assert.LessOrEqual(t, tm.Events[0].Time, tm.Events[1].Time)
}
