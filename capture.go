package manetsim

// capture.go writes per-device link-layer capture artifacts.  Each
// captor owns one pcap file; frames the interface sends or receives
// are synthesized into Ethernet/IPv4/UDP packets (the simulation
// carries no real bytes, only lengths and addresses) and appended with
// the simulated timestamp, so standard capture tooling can read them.

import (
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// snapLen is the capture snapshot length written to the file header
const snapLen = 65536

// a pcapCaptor appends synthesized frames to one capture file
type pcapCaptor struct {
	f *os.File
	w *pcapgo.Writer
}

// createPcapCaptor opens the capture artifact and writes its header
func createPcapCaptor(filename string) (*pcapCaptor, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}
	return &pcapCaptor{f: f, w: w}, nil
}

// macFromAddr derives a stable synthetic MAC address from the low
// bytes of a network address
func macFromAddr(b [4]byte) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, b[0], b[1], b[2], b[3]}
}

// record appends one datagram to the capture, stamped with the
// simulated time.  Serialization failures are swallowed: capture is a
// diagnostic side channel and must never perturb the run.
func (pc *pcapCaptor) record(now float64, dg *Datagram) {
	srcIP := dg.Src.As4()
	dstIP := dg.Dst.As4()

	eth := layers.Ethernet{
		SrcMAC:       macFromAddr(srcIP),
		DstMAC:       macFromAddr(dstIP),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(srcIP[:]),
		DstIP:    net.IP(dstIP[:]),
	}
	udp := layers.UDP{
		SrcPort: layers.UDPPort(dg.SrcPort),
		DstPort: layers.UDPPort(dg.DstPort),
	}
	udp.SetNetworkLayerForChecksum(&ip4)

	payload := make([]byte, dg.Len)
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip4, &udp, gopacket.Payload(payload)); err != nil {
		return
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, int64(now*float64(time.Second))),
		CaptureLength: len(data),
		Length:        len(data),
	}
	pc.w.WritePacket(ci, data)
}

// close flushes the capture artifact
func (pc *pcapCaptor) close() {
	pc.f.Close()
}
