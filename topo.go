package manetsim

// topo.go builds the fixed topology for an experiment: a set of nodes
// placed on a single-row grid, with lookup structures that let other
// components find a node by its id or by its human-readable name

import (
	"fmt"
	"net/netip"
)

// A Position is a fixed location on the simulated plane, in meters.
// Nodes do not move during a run.
type Position struct {
	X float64
	Y float64
}

// A Node is an addressable simulation entity.  It is created once at
// topology-build time and lives for the whole run.  Its interface and
// stack are attached later, by the link provisioner and the routing
// integrator respectively.
type Node struct {
	id      int
	name    string
	pos     Position
	intrfc  *Intrfc
	stack   *Stack
	sockets []*Socket
}

// ID returns the node's unique integer identifier
func (node *Node) ID() int {
	return node.id
}

// Name returns the node's diagnostic label, "node-<id>"
func (node *Node) Name() string {
	return node.name
}

// Pos returns the node's fixed grid position
func (node *Node) Pos() Position {
	return node.pos
}

// Intrfc returns the node's network interface, nil before link provisioning
func (node *Node) Intrfc() *Intrfc {
	return node.intrfc
}

// Addr returns the node's network address.  The zero netip.Addr is
// returned before the routing integrator has assigned addresses.
func (node *Node) Addr() netip.Addr {
	if node.intrfc == nil {
		return netip.Addr{}
	}
	return node.intrfc.addr
}

// A Topology is an ordered collection of nodes on a row-major grid.
// Positions are pairwise distinct and fully determined by the
// (size, step) pair given at creation.
type Topology struct {
	step       float64
	nodes      []*Node
	nodeByID   map[int]*Node
	nodeByName map[string]*Node
}

// CreateTopology creates size nodes with node i placed at (i*step, 0).
// A zero size is a configuration error.
func CreateTopology(size int, step float64) (*Topology, error) {
	if size < 1 {
		return nil, ConfigurationErrorf("topology needs at least one node, got %d", size)
	}
	if step < 0.0 {
		return nil, ConfigurationErrorf("negative grid step %f", step)
	}

	topo := new(Topology)
	topo.step = step
	topo.nodes = make([]*Node, 0, size)
	topo.nodeByID = make(map[int]*Node)
	topo.nodeByName = make(map[string]*Node)

	for idx := 0; idx < size; idx++ {
		node := &Node{
			id:   idx,
			name: fmt.Sprintf("node-%d", idx),
			pos:  Position{X: float64(idx) * step, Y: 0.0},
		}
		topo.addNodeLookup(node)
	}
	return topo, nil
}

// addNodeLookup appends a node and enters it in the by-id and by-name
// maps, panicking on an id or name collision.  Collisions cannot happen
// for grid-built topologies, so this is a structural invariant check.
func (topo *Topology) addNodeLookup(node *Node) {
	_, present := topo.nodeByID[node.id]
	if present {
		panic(fmt.Sprintf("index %d over-used in nodeByID", node.id))
	}
	_, present = topo.nodeByName[node.name]
	if present {
		panic(fmt.Sprintf("name %s over-used in nodeByName", node.name))
	}

	topo.nodes = append(topo.nodes, node)
	topo.nodeByID[node.id] = node
	topo.nodeByName[node.name] = node
}

// Size returns the number of nodes in the topology
func (topo *Topology) Size() int {
	return len(topo.nodes)
}

// Nodes returns the nodes in creation order
func (topo *Topology) Nodes() []*Node {
	return topo.nodes
}

// NodeByID looks a node up by its integer identifier
func (topo *Topology) NodeByID(id int) (*Node, bool) {
	node, present := topo.nodeByID[id]
	return node, present
}

// NodeByName looks a node up by its diagnostic label
func (topo *Topology) NodeByName(name string) (*Node, bool) {
	node, present := topo.nodeByName[name]
	return node, present
}

// nodeByAddr finds the node owning a network address.  Linear scan;
// topologies here are small and the lookup is off the fast path.
func (topo *Topology) nodeByAddr(addr netip.Addr) (*Node, bool) {
	for _, node := range topo.nodes {
		if node.Addr() == addr {
			return node, true
		}
	}
	return nil, false
}
