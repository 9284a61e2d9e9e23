package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "conduit-backend/pkg/errors"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph("p1")
	g.Load([]Node{NewStartNode("p1")}, nil)
	return g
}

func TestGraph_LoadClearsDirty(t *testing.T) {
	g := NewGraph("p1")
	require.NoError(t, g.AddNode(Node{ID: "n1", ProjectID: "p1", Kind: NodeKindDefault}))
	require.True(t, g.Dirty())

	g.Load([]Node{NewStartNode("p1")}, nil)
	assert.False(t, g.Dirty())
	assert.Len(t, g.Nodes(), 1)
}

func TestGraph_MutationsMarkDirty(t *testing.T) {
	g := newTestGraph(t)
	require.False(t, g.Dirty())

	require.NoError(t, g.AddNode(Node{ID: "n1", ProjectID: "p1", Kind: NodeKindDefault}))
	assert.True(t, g.Dirty())

	g.MarkSaved()
	require.NoError(t, g.AddEdge(Edge{ID: "e1", ProjectID: "p1", SourceID: StartNodeID("p1"), TargetID: "n1"}))
	assert.True(t, g.Dirty())

	g.MarkSaved()
	title := "renamed"
	require.NoError(t, g.UpdateNode("n1", NodePatch{Title: &title}))
	assert.True(t, g.Dirty())
}

func TestGraph_RemoveStartNodeRejected(t *testing.T) {
	g := newTestGraph(t)
	startID := StartNodeID("p1")

	err := g.RemoveNode(startID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvariantViolation(err))

	// Model unchanged and still clean.
	_, ok := g.Node(startID)
	assert.True(t, ok)
	assert.False(t, g.Dirty())
}

func TestGraph_UpdateStartNodeDropsKindChange(t *testing.T) {
	g := newTestGraph(t)
	startID := StartNodeID("p1")

	kind := NodeKindTool
	title := "Greeting"
	require.NoError(t, g.UpdateNode(startID, NodePatch{Kind: &kind, Title: &title}))

	n, ok := g.Node(startID)
	require.True(t, ok)
	assert.Equal(t, NodeKindStart, n.Kind, "start node kind must be immutable")
	assert.Equal(t, "Greeting", n.Title, "other supplied fields still apply")
}

func TestGraph_UpdateNonStartNodeKind(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AddNode(Node{ID: "n1", ProjectID: "p1", Kind: NodeKindDefault}))

	kind := NodeKindTool
	toolID := "t1"
	require.NoError(t, g.UpdateNode("n1", NodePatch{Kind: &kind, ToolID: &toolID}))

	n, _ := g.Node("n1")
	assert.Equal(t, NodeKindTool, n.Kind)
	assert.Equal(t, "t1", n.ToolID)
}

func TestGraph_UpdateMissingNode(t *testing.T) {
	g := newTestGraph(t)
	err := g.UpdateNode("ghost", NodePatch{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGraph_DanglingEdgesTolerated(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AddEdge(Edge{ID: "e1", ProjectID: "p1", SourceID: "ghost-a", TargetID: "ghost-b"}))
	assert.Len(t, g.Edges(), 1)
}

func TestGraph_AssertSaveable(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AssertSaveable())

	// No start node at all.
	empty := NewGraph("p1")
	empty.Load([]Node{{ID: "n1", ProjectID: "p1", Kind: NodeKindDefault}}, nil)
	err := empty.AssertSaveable()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvariantViolation(err))

	// Two start nodes is just as unsaveable.
	double := NewGraph("p1")
	double.Load([]Node{
		NewStartNode("p1"),
		{ID: "rogue", ProjectID: "p1", Kind: NodeKindStart},
	}, nil)
	assert.Error(t, double.AssertSaveable())
}

func TestGraph_ApplyDoesNotTouchDirty(t *testing.T) {
	g := newTestGraph(t)
	require.False(t, g.Dirty())

	g.ApplyNode(Node{ID: "remote", ProjectID: "p1", Kind: NodeKindDefault, Title: "from peer"})
	g.ApplyEdge(Edge{ID: "e-remote", ProjectID: "p1", SourceID: StartNodeID("p1"), TargetID: "remote"})
	assert.False(t, g.Dirty(), "remote applies must not set the dirty flag")

	// And the other way around: applies on a dirty graph leave it dirty.
	require.NoError(t, g.AddNode(Node{ID: "local", ProjectID: "p1", Kind: NodeKindDefault}))
	g.DropNode("remote")
	g.DropEdge("e-remote")
	assert.True(t, g.Dirty())
}

func TestGraph_ApplyIsIdempotent(t *testing.T) {
	g := newTestGraph(t)
	n := Node{ID: "n1", ProjectID: "p1", Kind: NodeKindDefault, Title: "once"}

	g.ApplyNode(n)
	first := g.Nodes()
	g.ApplyNode(n)
	assert.Equal(t, first, g.Nodes(), "re-applying the same change yields the same state")

	g.DropNode("ghost") // no-op
	assert.Equal(t, first, g.Nodes())
}

func TestStartNodeID(t *testing.T) {
	assert.Equal(t, "start_p1", StartNodeID("p1"))
}

func TestValidateStartNodeGuards(t *testing.T) {
	startNode := Node{ID: StartNodeID("p1"), ProjectID: "p1", Kind: NodeKindStart}
	plain := Node{ID: "n1", ProjectID: "p1", Kind: NodeKindDefault}
	// A start-like id on an ordinary node must not trip the guards.
	startLookalike := Node{ID: "start_here", ProjectID: "p1", Kind: NodeKindDefault}

	assert.Error(t, ValidateStartNodeDelete(startNode))
	assert.NoError(t, ValidateStartNodeDelete(plain))
	assert.NoError(t, ValidateStartNodeDelete(startLookalike))

	kind := NodeKindDefault
	assert.Error(t, ValidateStartNodePatch(startNode, NodePatch{Kind: &kind}))
	start := NodeKindStart
	assert.NoError(t, ValidateStartNodePatch(startNode, NodePatch{Kind: &start}))
	assert.NoError(t, ValidateStartNodePatch(plain, NodePatch{Kind: &kind}))
	assert.NoError(t, ValidateStartNodePatch(startLookalike, NodePatch{Kind: &kind}))
}
