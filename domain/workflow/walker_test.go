package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() ([]Node, []Edge) {
	nodes := []Node{
		NewStartNode("p1"),
		{ID: "info", ProjectID: "p1", Title: "Information", Kind: NodeKindDefault},
		{ID: "booking", ProjectID: "p1", Title: "Booking", Kind: NodeKindDefault},
		{ID: "end", ProjectID: "p1", Title: "End", Kind: NodeKindDefault},
	}
	edges := []Edge{
		{ID: "e1", ProjectID: "p1", SourceID: StartNodeID("p1"), TargetID: "info", Label: "Information"},
		{ID: "e2", ProjectID: "p1", SourceID: StartNodeID("p1"), TargetID: "booking", Label: "Booking"},
		{ID: "e3", ProjectID: "p1", SourceID: "info", TargetID: "end", Label: "Finish"},
		{ID: "e4", ProjectID: "p1", SourceID: "booking", TargetID: "end", Label: "Finish"},
	}
	return nodes, edges
}

func TestWalker_StartsAtStartNode(t *testing.T) {
	nodes, edges := testWorkflow()
	w, err := NewWalker(nodes, edges)
	require.NoError(t, err)
	assert.Equal(t, StartNodeID("p1"), w.Current().ID)
}

func TestWalker_NoStartNode(t *testing.T) {
	_, err := NewWalker([]Node{{ID: "n1", Kind: NodeKindDefault}}, nil)
	assert.Error(t, err)
}

func TestWalker_NextSteps(t *testing.T) {
	nodes, edges := testWorkflow()
	w, err := NewWalker(nodes, edges)
	require.NoError(t, err)

	steps := w.NextSteps()
	require.Len(t, steps, 2)
	targets := []string{steps[0].Node.ID, steps[1].Node.ID}
	assert.ElementsMatch(t, []string{"info", "booking"}, targets)
}

func TestWalker_TransitionTo(t *testing.T) {
	nodes, edges := testWorkflow()
	w, err := NewWalker(nodes, edges)
	require.NoError(t, err)

	assert.False(t, w.TransitionTo("end"), "end is not reachable from start")
	require.True(t, w.TransitionTo("info"))
	assert.Equal(t, "info", w.Current().ID)

	edge, ok := w.EdgeTo("end")
	require.True(t, ok)
	assert.Equal(t, "e3", edge.ID)

	require.True(t, w.TransitionTo("end"))
	assert.Empty(t, w.NextSteps())
}

func TestWalker_SkipsDanglingEdges(t *testing.T) {
	nodes, edges := testWorkflow()
	edges = append(edges, Edge{ID: "e5", SourceID: StartNodeID("p1"), TargetID: "missing"})
	w, err := NewWalker(nodes, edges)
	require.NoError(t, err)
	assert.Len(t, w.NextSteps(), 2)
}
