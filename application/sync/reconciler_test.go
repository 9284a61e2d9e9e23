package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/realtime"
)

type fakeResolver struct {
	tools map[string]workflow.Tool
	err   error
	calls int
}

func (f *fakeResolver) GetTool(ctx context.Context, id string) (workflow.Tool, error) {
	f.calls++
	if f.err != nil {
		return workflow.Tool{}, f.err
	}
	t, ok := f.tools[id]
	if !ok {
		return workflow.Tool{}, errors.New("no such tool")
	}
	return t, nil
}

func newReconcilerUnderTest(t *testing.T, resolver *fakeResolver) (*Reconciler, *workflow.Graph) {
	t.Helper()
	g := workflow.NewGraph("p1")
	g.Load([]workflow.Node{workflow.NewStartNode("p1")}, nil)
	return NewReconciler(g, resolver, zaptest.NewLogger(t)), g
}

func nodeInsert(n workflow.Node) realtime.ChangeEvent {
	return realtime.ChangeEvent{Table: realtime.TableNodes, Kind: realtime.ChangeInsert, Node: &n}
}

func TestReconciler_InsertAppendsNode(t *testing.T) {
	r, g := newReconcilerUnderTest(t, &fakeResolver{})

	r.Apply(context.Background(), nodeInsert(workflow.Node{ID: "n1", ProjectID: "p1", Kind: workflow.NodeKindDefault}))

	_, ok := g.Node("n1")
	assert.True(t, ok)
	assert.False(t, g.Dirty(), "reconciliation never sets the dirty flag")
}

func TestReconciler_UpdateOverwritesLocalEdits(t *testing.T) {
	r, g := newReconcilerUnderTest(t, &fakeResolver{})
	require.NoError(t, g.AddNode(workflow.Node{ID: "n1", ProjectID: "p1", Kind: workflow.NodeKindDefault, Title: "local edit"}))
	require.True(t, g.Dirty())

	remote := workflow.Node{ID: "n1", ProjectID: "p1", Kind: workflow.NodeKindDefault, Title: "remote wins"}
	r.Apply(context.Background(), realtime.ChangeEvent{Table: realtime.TableNodes, Kind: realtime.ChangeUpdate, Node: &remote})

	n, _ := g.Node("n1")
	assert.Equal(t, "remote wins", n.Title, "last writer wins at entity granularity")
	assert.True(t, g.Dirty(), "dirty flag still reflects unsaved local work")
}

func TestReconciler_DeleteIsNoOpWhenAbsent(t *testing.T) {
	r, g := newReconcilerUnderTest(t, &fakeResolver{})
	before := g.Nodes()

	r.Apply(context.Background(), realtime.ChangeEvent{
		Table: realtime.TableNodes,
		Kind:  realtime.ChangeDelete,
		Node:  &workflow.Node{ID: "ghost", ProjectID: "p1"},
	})
	assert.Equal(t, before, g.Nodes())
}

func TestReconciler_ToolReResolution(t *testing.T) {
	resolver := &fakeResolver{tools: map[string]workflow.Tool{
		"t1": {ID: "t1", Name: "lookup", Method: workflow.MethodGet, Endpoint: "https://api.example.com"},
	}}
	r, g := newReconcilerUnderTest(t, resolver)

	// Push payloads carry only the tool id, not the joined tool.
	r.Apply(context.Background(), nodeInsert(workflow.Node{
		ID: "n1", ProjectID: "p1", Kind: workflow.NodeKindTool, ToolID: "t1",
	}))

	n, ok := g.Node("n1")
	require.True(t, ok)
	require.NotNil(t, n.Tool)
	assert.Equal(t, "lookup", n.Tool.Name)
	assert.Equal(t, 1, resolver.calls)
}

func TestReconciler_FailedToolFetchLeavesStateUnchanged(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("store unavailable")}
	r, g := newReconcilerUnderTest(t, resolver)
	before := g.Nodes()

	r.Apply(context.Background(), nodeInsert(workflow.Node{
		ID: "n1", ProjectID: "p1", Kind: workflow.NodeKindTool, ToolID: "t1",
	}))

	assert.Equal(t, before, g.Nodes(), "a failed background fetch must not mutate the graph")
}

func TestReconciler_EdgeEvents(t *testing.T) {
	r, g := newReconcilerUnderTest(t, &fakeResolver{})
	e := workflow.Edge{ID: "e1", ProjectID: "p1", SourceID: "a", TargetID: "b"}

	r.Apply(context.Background(), realtime.ChangeEvent{Table: realtime.TableEdges, Kind: realtime.ChangeInsert, Edge: &e})
	_, ok := g.Edge("e1")
	require.True(t, ok)
	assert.False(t, g.Dirty())

	// Applying the same event again is idempotent.
	r.Apply(context.Background(), realtime.ChangeEvent{Table: realtime.TableEdges, Kind: realtime.ChangeInsert, Edge: &e})
	assert.Len(t, g.Edges(), 1)

	r.Apply(context.Background(), realtime.ChangeEvent{Table: realtime.TableEdges, Kind: realtime.ChangeDelete, Edge: &e})
	_, ok = g.Edge("e1")
	assert.False(t, ok)
}

func TestReconciler_MalformedEventsIgnored(t *testing.T) {
	r, g := newReconcilerUnderTest(t, &fakeResolver{})
	before := g.Nodes()

	r.Apply(context.Background(), realtime.ChangeEvent{Table: realtime.TableNodes, Kind: realtime.ChangeInsert})
	r.Apply(context.Background(), realtime.ChangeEvent{Table: "mystery", Kind: realtime.ChangeInsert})
	assert.Equal(t, before, g.Nodes())
}
