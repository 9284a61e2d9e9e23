// Package session ties one open project view together: the graph model,
// its change-stream subscriptions, the reconciler pumping remote events
// into it, and the save coordinator.
package session

import (
	"context"
	stdsync "sync"

	"go.uber.org/zap"

	gsync "conduit-backend/application/sync"
	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/infrastructure/realtime"
)

// Session owns the in-memory graph for one open project. All access to the
// graph — local mutations, saves, and reconciled remote events — is
// serialized through the session's mutex, mirroring the single-actor model
// of the canvas: handlers never run truly in parallel, but their relative
// order is whatever the network produced.
type Session struct {
	projectID string
	store     abstractions.GraphStore
	tools     gsync.ToolResolver
	feed      realtime.Feed
	logger    *zap.Logger

	mu         stdsync.Mutex
	graph      *workflow.Graph
	reconciler *gsync.Reconciler
	saver      *gsync.SaveCoordinator
	subs       []*realtime.Subscription
	closed     bool
	generation int

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// New creates a session for a project. Open must be called before use.
func New(projectID string, store abstractions.GraphStore, tools gsync.ToolResolver, feed realtime.Feed, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		projectID: projectID,
		store:     store,
		tools:     tools,
		feed:      feed,
		logger:    logger,
		graph:     workflow.NewGraph(projectID),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.reconciler = gsync.NewReconciler(s.graph, tools, logger)
	s.saver = gsync.NewSaveCoordinator(store, logger)
	return s
}

// Open fetches the project's graph and starts the change-stream pumps.
// If the session was closed while the fetches were in flight, the stale
// results are discarded rather than applied to a dead session.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	nodes, err := s.store.FetchNodes(ctx, s.projectID)
	if err != nil {
		return err
	}
	edges, err := s.store.FetchEdges(ctx, s.projectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		// Stale response: the view has since been torn down.
		return nil
	}
	s.graph.Load(nodes, edges)

	nodeSub, err := s.feed.Subscribe(realtime.TableNodes, s.projectID)
	if err != nil {
		return err
	}
	edgeSub, err := s.feed.Subscribe(realtime.TableEdges, s.projectID)
	if err != nil {
		nodeSub.Close()
		return err
	}
	s.subs = append(s.subs, nodeSub, edgeSub)

	for _, sub := range []*realtime.Subscription{nodeSub, edgeSub} {
		s.wg.Add(1)
		go s.pump(sub)
	}
	return nil
}

// pump feeds one subscription's events through the reconciler
func (s *Session) pump(sub *realtime.Subscription) {
	defer s.wg.Done()
	for ev := range sub.Events() {
		s.mu.Lock()
		if !s.closed {
			s.reconciler.Apply(s.ctx, ev)
		}
		s.mu.Unlock()
	}
}

// Close tears down both stream subscriptions and marks any in-flight
// fetch results stale. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Close()
	}
	s.wg.Wait()
}

// AddNode adds a node to the local graph
func (s *Session) AddNode(n workflow.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.AddNode(n)
}

// UpdateNode applies a partial update to a local node
func (s *Session) UpdateNode(id string, patch workflow.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.UpdateNode(id, patch)
}

// RemoveNode removes a local node
func (s *Session) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.RemoveNode(id)
}

// AddEdge adds an edge to the local graph
func (s *Session) AddEdge(e workflow.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.AddEdge(e)
}

// UpdateEdge applies a partial update to a local edge
func (s *Session) UpdateEdge(id string, patch workflow.EdgePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.UpdateEdge(id, patch)
}

// RemoveEdge removes a local edge
func (s *Session) RemoveEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.RemoveEdge(id)
}

// Nodes returns a copy of the local node set
func (s *Session) Nodes() []workflow.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Nodes()
}

// Edges returns a copy of the local edge set
func (s *Session) Edges() []workflow.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Edges()
}

// Dirty reports whether local state has unsaved changes
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Dirty()
}

// Save pushes the local graph through the atomic whole-graph save.
// Overlapping Save calls are serialized by the session mutex.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saver.Save(ctx, s.graph)
}
