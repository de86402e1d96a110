package manetsim

// routing.go defines the contract between the scenario driver and the
// ad-hoc routing protocol it evaluates, and supplies a static
// shortest-path reference implementation of that contract.
//
// The approach of the reference implementation is to convert the radio
// connectivity reported by the shared medium into the data structures
// used by a graph package with built-in path discovery.  Weighting each
// edge by 1, a shortest path minimizes the number of hops.  The
// Dijkstra algorithm we call computes a tree of shortest paths from a
// named node, so if we want the path from src to dst we either compute
// such a tree rooted in src or look it up from a cached version of an
// already computed tree.

import (
	"fmt"
	"io"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// A RoutingProtocol is the external path-selection collaborator the
// experiment binds to every node.  Exactly one instance governs the
// whole topology.  The driver depends on nothing beyond these three
// operations; the protocol's internal machinery is its own business.
type RoutingProtocol interface {
	// Install binds the protocol to the nodes of a topology given the
	// radio connectivity between them, before the simulation starts
	Install(topo *Topology, conn map[int][]int) error

	// NextHop names the neighbor to which a datagram for dst should be
	// forwarded from the named node.  The bool is false when the
	// protocol knows no path.
	NextHop(fromID int, dst netip.Addr) (*Node, bool)

	// DumpTables writes a point-in-time snapshot of every node's
	// route table, stamped with the simulation time of the snapshot
	DumpTables(w io.Writer, at float64)
}

// spRouting implements RoutingProtocol with hop-count shortest paths
// computed once at install time.  It stands in for an on-demand
// protocol when the scenario only needs a working path-selection
// mechanism rather than the protocol under test.
type spRouting struct {
	topo    *Topology
	gNodes  map[int]simple.Node
	conn    graph.Graph
	cached  map[int]path.Shortest
	nxtHop  map[int]map[netip.Addr]int // node id -> destination address -> neighbor id
	hops    map[int]map[netip.Addr]int // hop count to destination, for the dump
}

// CreateShortestPathRouting is a constructor for the reference protocol
func CreateShortestPathRouting() RoutingProtocol {
	spr := new(spRouting)
	spr.gNodes = make(map[int]simple.Node)
	spr.cached = make(map[int]path.Shortest)
	return spr
}

// buildConnGraph converts a map from node id to the list of node ids it
// can hear into the weighted undirected form the graph module uses
func (spr *spRouting) buildConnGraph(edges map[int][]int) graph.Graph {
	connGraph := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for nodeID := range edges {
		_, present := spr.gNodes[nodeID]
		if present {
			continue
		}
		spr.gNodes[nodeID] = simple.Node(nodeID)

		// isolated nodes still belong in the graph so that path
		// queries rooted in them are well defined
		connGraph.AddNode(spr.gNodes[nodeID])
	}

	// every radio adjacency becomes an edge with weight 1
	for nodeID, edgeList := range edges {
		for _, nbrID := range edgeList {
			if nodeID == nbrID {
				continue
			}
			weightedEdge := simple.WeightedEdge{F: spr.gNodes[nodeID], T: spr.gNodes[nbrID], W: 1.0}
			connGraph.SetWeightedEdge(weightedEdge)
		}
	}
	return connGraph
}

// getSPTree returns the shortest path tree rooted in input argument
// 'from', computing and caching it on first use
func (spr *spRouting) getSPTree(from int) path.Shortest {
	spTree, present := spr.cached[from]
	if present {
		return spTree
	}
	spTree = path.DijkstraFrom(spr.gNodes[from], spr.conn)
	spr.cached[from] = spTree
	return spTree
}

// convertNodeSeq extracts the node ids from a sequence of graph nodes
// (e.g. like a path) and returns that list
func convertNodeSeq(nsQ []graph.Node) []int {
	rtn := []int{}
	for _, node := range nsQ {
		nodeID, _ := strconv.Atoi(fmt.Sprintf("%d", node))
		rtn = append(rtn, nodeID)
	}
	return rtn
}

// Install computes a next-hop table for every (node, destination
// address) pair reachable in the connectivity graph
func (spr *spRouting) Install(topo *Topology, conn map[int][]int) error {
	spr.topo = topo
	spr.conn = spr.buildConnGraph(conn)
	spr.nxtHop = make(map[int]map[netip.Addr]int)
	spr.hops = make(map[int]map[netip.Addr]int)

	for _, src := range topo.Nodes() {
		spr.nxtHop[src.id] = make(map[netip.Addr]int)
		spr.hops[src.id] = make(map[netip.Addr]int)
		spTree := spr.getSPTree(src.id)

		for _, dst := range topo.Nodes() {
			if src.id == dst.id {
				continue
			}
			nodeSeq, _ := spTree.To(int64(dst.id))
			route := convertNodeSeq(nodeSeq)

			// the route runs src ... dst; an empty or single-element
			// route means no path exists
			if len(route) < 2 {
				continue
			}
			spr.nxtHop[src.id][dst.Addr()] = route[1]
			spr.hops[src.id][dst.Addr()] = len(route) - 1
		}
	}
	return nil
}

// NextHop looks up the neighbor on the stored shortest path
func (spr *spRouting) NextHop(fromID int, dst netip.Addr) (*Node, bool) {
	tbl, present := spr.nxtHop[fromID]
	if !present {
		return nil, false
	}
	nbrID, present := tbl[dst]
	if !present {
		return nil, false
	}
	return spr.topo.nodeByID[nbrID], true
}

// DumpTables writes every node's table, nodes in creation order and
// destinations in address order, in the form
//
//	node-0 (10.0.0.1):
//	  10.0.0.3 via 10.0.0.2 hops 2
func (spr *spRouting) DumpTables(w io.Writer, at float64) {
	fmt.Fprintf(w, "route tables at t=%gs\n", at)
	for _, node := range spr.topo.Nodes() {
		fmt.Fprintf(w, "%s (%s):\n", node.name, node.Addr())

		dsts := make([]netip.Addr, 0, len(spr.nxtHop[node.id]))
		for dst := range spr.nxtHop[node.id] {
			dsts = append(dsts, dst)
		}
		slices.SortFunc(dsts, func(a, b netip.Addr) int { return a.Compare(b) })

		for _, dst := range dsts {
			nbr := spr.topo.nodeByID[spr.nxtHop[node.id][dst]]
			fmt.Fprintf(w, "  %s via %s hops %d\n", dst, nbr.Addr(), spr.hops[node.id][dst])
		}
	}
}

// ShowPath returns a comma-separated list of the node names on the
// shortest path between two node ids, a diagnostic convenience
func (spr *spRouting) ShowPath(srcID, dstID int) string {
	spTree := spr.getSPTree(srcID)
	nodeSeq, _ := spTree.To(int64(dstID))
	route := convertNodeSeq(nodeSeq)

	pathString := make([]string, 0, len(route))
	for _, id := range route {
		pathString = append(pathString, spr.topo.nodeByID[id].name)
	}
	return strings.Join(pathString, ",")
}
