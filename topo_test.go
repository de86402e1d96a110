package manetsim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTopologyPlacesNodesOnRow(t *testing.T) {
	topo, err := CreateTopology(7, 25.0)
	require.NoError(t, err)
	require.Equal(t, 7, topo.Size())

	seen := make(map[Position]bool)
	for idx, node := range topo.Nodes() {
		assert.Equal(t, idx, node.ID())
		assert.Equal(t, Position{X: float64(idx) * 25.0, Y: 0.0}, node.Pos())
		assert.False(t, seen[node.Pos()], "positions must be pairwise distinct")
		seen[node.Pos()] = true
	}
}

func TestCreateTopologyLabelsAndLookup(t *testing.T) {
	topo, err := CreateTopology(3, 100.0)
	require.NoError(t, err)

	node, present := topo.NodeByName("node-1")
	require.True(t, present)
	assert.Equal(t, 1, node.ID())

	byID, present := topo.NodeByID(2)
	require.True(t, present)
	assert.Equal(t, "node-2", byID.Name())

	_, present = topo.NodeByName("node-3")
	assert.False(t, present)
}

func TestCreateTopologyRejectsZeroNodes(t *testing.T) {
	_, err := CreateTopology(0, 100.0)
	require.Error(t, err)

	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestCreateTopologyRejectsNegativeStep(t *testing.T) {
	_, err := CreateTopology(4, -1.0)
	require.Error(t, err)

	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestCreateTopologyDeterministic(t *testing.T) {
	topoA, err := CreateTopology(5, 50.0)
	require.NoError(t, err)
	topoB, err := CreateTopology(5, 50.0)
	require.NoError(t, err)

	for idx := range topoA.Nodes() {
		assert.Equal(t, topoA.Nodes()[idx].Pos(), topoB.Nodes()[idx].Pos())
		assert.Equal(t, topoA.Nodes()[idx].Name(), topoB.Nodes()[idx].Name())
	}
}

// a zero step is legal for the builder; every node lands at the origin
// of its own index, which for a one-node topology is just the origin
func TestCreateTopologyZeroStepSingleNode(t *testing.T) {
	topo, err := CreateTopology(1, 0.0)
	require.NoError(t, err)
	assert.Equal(t, Position{}, topo.Nodes()[0].Pos())
}
