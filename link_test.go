package manetsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// provisionLine builds a size-node row with the given step and radio
// range, fully stacked with the shortest-path reference routing
func provisionLine(t *testing.T, size int, step, radioRange float64) (*Topology, *SharedMedium, RoutingProtocol) {
	t.Helper()

	topo, err := CreateTopology(size, step)
	require.NoError(t, err)

	medium := CreateSharedMedium(radioRange)
	medium.Provision(topo, DfltDataRate)

	routing := CreateShortestPathRouting()
	require.NoError(t, InstallStack(topo, medium, routing))
	return topo, medium, routing
}

func TestProvisionAttachesOneInterfacePerNode(t *testing.T) {
	topo, _, _ := provisionLine(t, 4, 100.0, 150.0)
	for _, node := range topo.Nodes() {
		require.NotNil(t, node.Intrfc())
		assert.Equal(t, DfltDataRate, node.Intrfc().rate)
	}
}

func TestAttachTwicePanics(t *testing.T) {
	topo, err := CreateTopology(1, 0.0)
	require.NoError(t, err)

	medium := CreateSharedMedium(150.0)
	medium.Provision(topo, 0.0)
	assert.Panics(t, func() { medium.Attach(topo.Nodes()[0], 0.0) })
}

func TestConnectivityIsRadioRangeAdjacency(t *testing.T) {
	_, medium, _ := provisionLine(t, 4, 100.0, 150.0)

	conn := medium.Connectivity()
	assert.ElementsMatch(t, []int{1}, conn[0])
	assert.ElementsMatch(t, []int{0, 2}, conn[1])
	assert.ElementsMatch(t, []int{1, 3}, conn[2])
	assert.ElementsMatch(t, []int{2}, conn[3])
}

func TestConnectivityWiderRange(t *testing.T) {
	// 250 m of reach over a 100 m step hears two hops out
	_, medium, _ := provisionLine(t, 4, 100.0, 250.0)

	conn := medium.Connectivity()
	assert.ElementsMatch(t, []int{1, 2}, conn[0])
	assert.ElementsMatch(t, []int{0, 2, 3}, conn[1])
}

func TestDistance(t *testing.T) {
	topo, _, _ := provisionLine(t, 3, 100.0, 150.0)
	a := topo.Nodes()[0].Intrfc()
	c := topo.Nodes()[2].Intrfc()
	assert.InDelta(t, 200.0, distance(a, c), 1e-9)
}
