package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/persistence/memory"
)

func openSession(t *testing.T, store *memory.Store, projectID string) *Session {
	t.Helper()
	s := New(projectID, store, store, store, zaptest.NewLogger(t))
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func TestSession_OpenLoadsGraph(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p, err := store.CreateProject(ctx, "P", "")
	require.NoError(t, err)

	s := openSession(t, store, p.ID)
	nodes := s.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, workflow.StartNodeID(p.ID), nodes[0].ID)
	assert.False(t, s.Dirty())
}

func TestSession_EditSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p, err := store.CreateProject(ctx, "P", "")
	require.NoError(t, err)

	s := openSession(t, store, p.ID)
	require.NoError(t, s.AddNode(workflow.Node{ID: "n1", ProjectID: p.ID, Kind: workflow.NodeKindDefault}))
	require.True(t, s.Dirty())

	require.NoError(t, s.Save(ctx))
	assert.False(t, s.Dirty())

	persisted, err := store.FetchNodes(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

// Two sessions on the same project: an edge saved by one shows up in the
// other through the change stream alone.
func TestSession_CrossSessionPropagation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p, err := store.CreateProject(ctx, "P", "")
	require.NoError(t, err)

	a := openSession(t, store, p.ID)
	b := openSession(t, store, p.ID)

	require.NoError(t, a.AddNode(workflow.Node{ID: "n1", ProjectID: p.ID, Kind: workflow.NodeKindDefault}))
	require.NoError(t, a.AddEdge(workflow.Edge{
		ID: "e1", ProjectID: p.ID,
		SourceID: workflow.StartNodeID(p.ID), TargetID: "n1",
	}))
	require.NoError(t, a.Save(ctx))

	require.Eventually(t, func() bool {
		for _, e := range b.Edges() {
			if e.ID == "e1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "session B never saw e1 on the edge stream")

	assert.False(t, b.Dirty(), "remote events never dirty the receiving session")
}

// The echo of a session's own save is re-applied to itself; that must be
// idempotent and invisible.
func TestSession_OwnSaveEchoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p, err := store.CreateProject(ctx, "P", "")
	require.NoError(t, err)

	s := openSession(t, store, p.ID)
	require.NoError(t, s.AddNode(workflow.Node{ID: "n1", ProjectID: p.ID, Kind: workflow.NodeKindDefault, Title: "mine"}))
	require.NoError(t, s.Save(ctx))

	// Let the echo drain, then check nothing changed.
	require.Eventually(t, func() bool {
		n, ok := func() (workflow.Node, bool) {
			for _, n := range s.Nodes() {
				if n.ID == "n1" {
					return n, true
				}
			}
			return workflow.Node{}, false
		}()
		return ok && n.Title == "mine"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, s.Nodes(), 2)
	assert.False(t, s.Dirty())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p, err := store.CreateProject(ctx, "P", "")
	require.NoError(t, err)

	s := New(p.ID, store, store, store, zaptest.NewLogger(t))
	require.NoError(t, s.Open(ctx))

	s.Close()
	assert.NotPanics(t, s.Close)
}

func TestSession_StaleOpenDiscarded(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p, err := store.CreateProject(ctx, "P", "")
	require.NoError(t, err)

	s := New(p.ID, store, store, store, zaptest.NewLogger(t))
	s.Close()

	// The fetch completes but lands in a closed session; nothing leaks.
	require.NoError(t, s.Open(ctx))
	assert.Empty(t, s.Nodes())
}
