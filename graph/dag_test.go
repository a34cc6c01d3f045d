package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDAGAcceptsALinearChain(t *testing.T) {
	nodes := []Node{
		{ID: "acme/base"},
		{ID: "acme/lib", Requires: []string{"acme/base"}},
		{ID: "acme/app", Requires: []string{"acme/lib"}},
	}
	assert.NoError(t, ValidateDAG(nodes))
}

func TestValidateDAGDetectsADirectCycle(t *testing.T) {
	nodes := []Node{
		{ID: "acme/a", Requires: []string{"acme/b"}},
		{ID: "acme/b", Requires: []string{"acme/a"}},
	}
	assert.Error(t, ValidateDAG(nodes))
}

func TestTopologicalOrderPlacesDependenciesFirst(t *testing.T) {
	nodes := []Node{
		{ID: "acme/app", Requires: []string{"acme/lib"}},
		{ID: "acme/lib", Requires: []string{"acme/base"}},
		{ID: "acme/base"},
	}
	order, err := TopologicalOrder(nodes)
	require.NoError(t, err)
	require.Len(t, order, 3)

	position := map[string]int{}
	for i, n := range order {
		position[n.ID] = i
	}
	assert.Less(t, position["acme/base"], position["acme/lib"])
	assert.Less(t, position["acme/lib"], position["acme/app"])
}

func TestTopologicalOrderRejectsUnknownDependency(t *testing.T) {
	nodes := []Node{
		{ID: "acme/app", Requires: []string{"acme/ghost"}},
	}
	_, err := TopologicalOrder(nodes)
	assert.Error(t, err)
}

func TestTopologicalOrderRejectsCycle(t *testing.T) {
	nodes := []Node{
		{ID: "acme/a", Requires: []string{"acme/b"}},
		{ID: "acme/b", Requires: []string{"acme/a"}},
	}
	_, err := TopologicalOrder(nodes)
	assert.Error(t, err)
}
