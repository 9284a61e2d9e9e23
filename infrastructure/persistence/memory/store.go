// Package memory provides an in-memory implementation of the persistence
// ports, with the same invariants and side effects as the Postgres store:
// project creation seeds a start node, start nodes refuse deletion, tool
// deletion clears node references, and every mutation is published on the
// change feed. It backs tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/realtime"
	pkgerrors "conduit-backend/pkg/errors"
)

// Store is an in-memory store implementing the graph, project, and tool
// store ports plus the realtime feed.
type Store struct {
	mu       sync.Mutex
	projects map[string]workflow.Project
	nodes    map[string]workflow.Node
	edges    map[string]workflow.Edge
	tools    map[string]workflow.Tool

	subs map[*realtime.Subscription]struct{}

	// replaceFailure, when set, makes the next ReplaceGraph fail after its
	// delete phase has run against the staged copy. Used to verify that a
	// mid-transaction failure leaves durable state untouched.
	replaceFailure error
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		projects: make(map[string]workflow.Project),
		nodes:    make(map[string]workflow.Node),
		edges:    make(map[string]workflow.Edge),
		tools:    make(map[string]workflow.Tool),
		subs:     make(map[*realtime.Subscription]struct{}),
	}
}

// FailNextReplace makes the next ReplaceGraph call fail mid-transaction
func (s *Store) FailNextReplace(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceFailure = err
}

// Subscribe returns a change-event subscription filtered to one project
// and entity table. The handle must be closed by the caller; Close is
// idempotent.
func (s *Store) Subscribe(table realtime.Table, projectID string) (*realtime.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := realtime.NewSubscription(table, projectID, func(closed *realtime.Subscription) {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, closed)
	})
	s.subs[sub] = struct{}{}
	return sub, nil
}

// publish delivers an event to matching subscriptions; callers hold s.mu
func (s *Store) publish(ev realtime.ChangeEvent) {
	for sub := range s.subs {
		sub.Deliver(ev)
	}
}

func nodeEvent(kind realtime.ChangeKind, n workflow.Node) realtime.ChangeEvent {
	node := n
	return realtime.ChangeEvent{Table: realtime.TableNodes, Kind: kind, Node: &node}
}

func edgeEvent(kind realtime.ChangeKind, e workflow.Edge) realtime.ChangeEvent {
	edge := e
	return realtime.ChangeEvent{Table: realtime.TableEdges, Kind: kind, Edge: &edge}
}

// CreateProject creates a project and its start node
func (s *Store) CreateProject(ctx context.Context, name, description string) (workflow.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	p := workflow.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.projects[p.ID] = p

	start := workflow.NewStartNode(p.ID)
	start.CreatedAt = now
	start.UpdatedAt = now
	s.nodes[start.ID] = start
	s.publish(nodeEvent(realtime.ChangeInsert, start))

	return p, nil
}

// GetProject returns a project by id
func (s *Store) GetProject(ctx context.Context, id string) (workflow.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return workflow.Project{}, pkgerrors.NewNotFoundError("project " + id)
	}
	return p, nil
}

// ListProjects returns all projects
func (s *Store) ListProjects(ctx context.Context) ([]workflow.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]workflow.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out, nil
}

// DeleteProject deletes a project, cascading to its nodes and edges
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return pkgerrors.NewNotFoundError("project " + id)
	}
	delete(s.projects, id)
	for nodeID, n := range s.nodes {
		if n.ProjectID == id {
			delete(s.nodes, nodeID)
			s.publish(nodeEvent(realtime.ChangeDelete, n))
		}
	}
	for edgeID, e := range s.edges {
		if e.ProjectID == id {
			delete(s.edges, edgeID)
			s.publish(edgeEvent(realtime.ChangeDelete, e))
		}
	}
	return nil
}

// FetchNodes returns a project's nodes with tools inlined
func (s *Store) FetchNodes(ctx context.Context, projectID string) ([]workflow.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]workflow.Node, 0, 16)
	for _, n := range s.nodes {
		if n.ProjectID != projectID {
			continue
		}
		out = append(out, s.inlineTool(n))
	}
	return out, nil
}

// inlineTool resolves the read-side tool join; callers hold s.mu
func (s *Store) inlineTool(n workflow.Node) workflow.Node {
	n.Tool = nil
	if n.ToolID != "" {
		if t, ok := s.tools[n.ToolID]; ok {
			tool := t
			n.Tool = &tool
		}
	}
	return n
}

// FetchEdges returns a project's edges
func (s *Store) FetchEdges(ctx context.Context, projectID string) ([]workflow.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]workflow.Edge, 0, 16)
	for _, e := range s.edges {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReplaceGraph atomically overwrites a project's node/edge set. The
// replacement is staged on copies and committed only when every step
// succeeded, so an injected failure leaves the durable maps untouched.
func (s *Store) ReplaceGraph(ctx context.Context, projectID string, nodes []workflow.Node, edges []workflow.Edge) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := assertStartNode(projectID, nodes); err != nil {
		return time.Time{}, err
	}
	p, ok := s.projects[projectID]
	if !ok {
		return time.Time{}, pkgerrors.NewNotFoundError("project " + projectID)
	}

	now := time.Now()
	stagedNodes := make(map[string]workflow.Node, len(s.nodes))
	stagedEdges := make(map[string]workflow.Edge, len(s.edges))
	var events []realtime.ChangeEvent

	// Delete phase on the staged copies.
	for id, n := range s.nodes {
		if n.ProjectID == projectID && !n.IsStart() {
			events = append(events, nodeEvent(realtime.ChangeDelete, n))
			continue
		}
		stagedNodes[id] = n
	}
	for id, e := range s.edges {
		if e.ProjectID == projectID {
			events = append(events, edgeEvent(realtime.ChangeDelete, e))
			continue
		}
		stagedEdges[id] = e
	}

	if s.replaceFailure != nil {
		err := s.replaceFailure
		s.replaceFailure = nil
		return time.Time{}, pkgerrors.NewDatabaseError("replace graph", err)
	}

	// Upsert phase: all mutable fields, bumped timestamp. The start node's
	// kind is left as stored.
	for _, n := range nodes {
		n.Tool = nil
		if existing, ok := stagedNodes[n.ID]; ok {
			if existing.ProjectID != projectID {
				return time.Time{}, pkgerrors.NewInvariantViolationError(
					"node " + n.ID + " belongs to another project")
			}
			n.Kind = existing.Kind
			n.CreatedAt = existing.CreatedAt
			events = append(events, nodeEvent(realtime.ChangeUpdate, n))
		} else {
			n.CreatedAt = now
			events = append(events, nodeEvent(realtime.ChangeInsert, n))
		}
		n.UpdatedAt = now
		stagedNodes[n.ID] = n
	}
	for _, e := range edges {
		e.CreatedAt = now
		e.UpdatedAt = now
		stagedEdges[e.ID] = e
		events = append(events, edgeEvent(realtime.ChangeInsert, e))
	}

	// Commit.
	s.nodes = stagedNodes
	s.edges = stagedEdges
	p.UpdatedAt = now
	s.projects[projectID] = p
	for _, ev := range events {
		s.publish(ev)
	}
	return now, nil
}

// CreateNode inserts a single node
func (s *Store) CreateNode(ctx context.Context, node workflow.Node) (workflow.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if err := node.Validate(); err != nil {
		return workflow.Node{}, err
	}
	now := time.Now()
	node.CreatedAt = now
	node.UpdatedAt = now
	node.Tool = nil
	s.nodes[node.ID] = node
	s.publish(nodeEvent(realtime.ChangeInsert, node))
	return node, nil
}

// UpdateNode applies a partial update to a single node
func (s *Store) UpdateNode(ctx context.Context, id string, patch workflow.NodePatch) (workflow.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return workflow.Node{}, pkgerrors.NewNotFoundError("node " + id)
	}
	if err := workflow.ValidateStartNodePatch(n, patch); err != nil {
		return workflow.Node{}, err
	}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Prompt != nil {
		n.Prompt = *patch.Prompt
	}
	if patch.Kind != nil {
		n.Kind = *patch.Kind
	}
	if patch.ToolID != nil {
		n.ToolID = *patch.ToolID
	}
	if patch.Position != nil {
		n.Position = *patch.Position
	}
	n.UpdatedAt = time.Now()
	s.nodes[id] = n
	s.publish(nodeEvent(realtime.ChangeUpdate, n))
	return n, nil
}

// DeleteNode deletes a single node; start nodes are refused
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id)
	}
	if err := workflow.ValidateStartNodeDelete(n); err != nil {
		return err
	}
	delete(s.nodes, id)
	s.publish(nodeEvent(realtime.ChangeDelete, n))
	return nil
}

// CreateEdge inserts a single edge
func (s *Store) CreateEdge(ctx context.Context, edge workflow.Edge) (workflow.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if err := edge.Validate(); err != nil {
		return workflow.Edge{}, err
	}
	now := time.Now()
	edge.CreatedAt = now
	edge.UpdatedAt = now
	s.edges[edge.ID] = edge
	s.publish(edgeEvent(realtime.ChangeInsert, edge))
	return edge, nil
}

// UpdateEdge applies a partial update to a single edge
func (s *Store) UpdateEdge(ctx context.Context, id string, patch workflow.EdgePatch) (workflow.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[id]
	if !ok {
		return workflow.Edge{}, pkgerrors.NewNotFoundError("edge " + id)
	}
	if patch.SourceID != nil {
		e.SourceID = *patch.SourceID
	}
	if patch.TargetID != nil {
		e.TargetID = *patch.TargetID
	}
	if patch.Label != nil {
		e.Label = *patch.Label
	}
	if patch.Prompt != nil {
		e.Prompt = *patch.Prompt
	}
	e.UpdatedAt = time.Now()
	s.edges[id] = e
	s.publish(edgeEvent(realtime.ChangeUpdate, e))
	return e, nil
}

// DeleteEdge deletes a single edge
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[id]
	if !ok {
		return pkgerrors.NewNotFoundError("edge " + id)
	}
	delete(s.edges, id)
	s.publish(edgeEvent(realtime.ChangeDelete, e))
	return nil
}

// CreateTool inserts a tool after validating its payloads
func (s *Store) CreateTool(ctx context.Context, tool workflow.Tool) (workflow.Tool, error) {
	if err := tool.Validate(); err != nil {
		return workflow.Tool{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tool.ID == "" {
		tool.ID = uuid.New().String()
	}
	now := time.Now()
	tool.CreatedAt = now
	tool.UpdatedAt = now
	s.tools[tool.ID] = tool
	return tool, nil
}

// GetTool returns a tool by id
func (s *Store) GetTool(ctx context.Context, id string) (workflow.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tools[id]
	if !ok {
		return workflow.Tool{}, pkgerrors.NewNotFoundError("tool " + id)
	}
	return t, nil
}

// ListTools returns all tools
func (s *Store) ListTools(ctx context.Context) ([]workflow.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]workflow.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	return out, nil
}

// UpdateTool replaces a tool definition
func (s *Store) UpdateTool(ctx context.Context, id string, tool workflow.Tool) (workflow.Tool, error) {
	if err := tool.Validate(); err != nil {
		return workflow.Tool{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tools[id]
	if !ok {
		return workflow.Tool{}, pkgerrors.NewNotFoundError("tool " + id)
	}
	tool.ID = id
	tool.CreatedAt = existing.CreatedAt
	tool.UpdatedAt = time.Now()
	s.tools[id] = tool
	return tool, nil
}

// DeleteTool deletes a tool and clears the reference on nodes pointing at
// it; the nodes themselves are kept.
func (s *Store) DeleteTool(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tools[id]; !ok {
		return pkgerrors.NewNotFoundError("tool " + id)
	}
	delete(s.tools, id)
	for nodeID, n := range s.nodes {
		if n.ToolID == id {
			n.ToolID = ""
			n.Tool = nil
			s.nodes[nodeID] = n
			s.publish(nodeEvent(realtime.ChangeUpdate, n))
		}
	}
	return nil
}

func assertStartNode(projectID string, nodes []workflow.Node) error {
	for _, n := range nodes {
		if n.IsStart() && n.ID == workflow.StartNodeID(projectID) {
			return nil
		}
	}
	return pkgerrors.NewInvariantViolationError("replacement node set has no start node")
}
