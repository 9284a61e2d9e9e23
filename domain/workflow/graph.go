package workflow

import (
	"sort"

	pkgerrors "conduit-backend/pkg/errors"
)

// Graph is the in-memory model of one project's workflow. It is the
// aggregate the canvas edits directly: local mutations mark it dirty,
// Load and a successful save clear the flag, and remote change events are
// applied through the Apply/Drop methods which leave the flag alone.
//
// A Graph is exclusively owned by one session and is not safe for
// concurrent use; the owning session serializes access.
type Graph struct {
	projectID string
	nodes     map[string]*Node
	edges     map[string]*Edge
	dirty     bool
}

// NewGraph creates an empty graph model for a project
func NewGraph(projectID string) *Graph {
	return &Graph{
		projectID: projectID,
		nodes:     make(map[string]*Node),
		edges:     make(map[string]*Edge),
	}
}

// ProjectID returns the owning project's id
func (g *Graph) ProjectID() string {
	return g.projectID
}

// Load replaces the in-memory state wholesale with a fetched snapshot and
// clears the dirty flag.
func (g *Graph) Load(nodes []Node, edges []Edge) {
	g.nodes = make(map[string]*Node, len(nodes))
	g.edges = make(map[string]*Edge, len(edges))
	for i := range nodes {
		n := nodes[i]
		g.nodes[n.ID] = &n
	}
	for i := range edges {
		e := edges[i]
		g.edges[e.ID] = &e
	}
	g.dirty = false
}

// Dirty reports whether local state has diverged from the last successful
// save. Remote reconciliation never changes this flag.
func (g *Graph) Dirty() bool {
	return g.dirty
}

// MarkSaved clears the dirty flag after a successful save
func (g *Graph) MarkSaved() {
	g.dirty = false
}

// AddNode adds a node and marks the graph dirty
func (g *Graph) AddNode(n Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	g.nodes[n.ID] = &n
	g.dirty = true
	return nil
}

// UpdateNode applies a partial update to a node and marks the graph dirty.
// An attempt to change the start node's kind is silently dropped; any other
// supplied fields still apply.
func (g *Graph) UpdateNode(id string, patch NodePatch) error {
	n, ok := g.nodes[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id)
	}

	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Prompt != nil {
		n.Prompt = *patch.Prompt
	}
	if patch.Kind != nil && !n.IsStart() {
		n.Kind = *patch.Kind
	}
	if patch.ToolID != nil {
		n.ToolID = *patch.ToolID
		if *patch.ToolID == "" {
			n.Tool = nil
		}
	}
	if patch.Position != nil {
		n.Position = *patch.Position
	}
	g.dirty = true
	return nil
}

// RemoveNode removes a node and marks the graph dirty. Removing the start
// node is an invariant violation and leaves the model unchanged.
func (g *Graph) RemoveNode(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id)
	}
	if n.IsStart() {
		return pkgerrors.NewInvariantViolationError("the start node cannot be removed")
	}
	delete(g.nodes, id)
	g.dirty = true
	return nil
}

// AddEdge adds an edge and marks the graph dirty. No referential check
// against node existence is made; dangling edges are tolerated transiently
// during multi-step edits.
func (g *Graph) AddEdge(e Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	g.edges[e.ID] = &e
	g.dirty = true
	return nil
}

// UpdateEdge applies a partial update to an edge and marks the graph dirty
func (g *Graph) UpdateEdge(id string, patch EdgePatch) error {
	e, ok := g.edges[id]
	if !ok {
		return pkgerrors.NewNotFoundError("edge " + id)
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
	g.dirty = true
	return nil
}

// RemoveEdge removes an edge and marks the graph dirty
func (g *Graph) RemoveEdge(id string) error {
	if _, ok := g.edges[id]; !ok {
		return pkgerrors.NewNotFoundError("edge " + id)
	}
	delete(g.edges, id)
	g.dirty = true
	return nil
}

// AssertSaveable fails unless the node set contains exactly one start node
func (g *Graph) AssertSaveable() error {
	starts := 0
	for _, n := range g.nodes {
		if n.IsStart() {
			starts++
		}
	}
	if starts != 1 {
		return pkgerrors.NewInvariantViolationError("a workflow must contain exactly one start node")
	}
	return nil
}

// ApplyNode upserts a remotely-sourced node, overwriting every field of any
// local copy. The dirty flag is not touched: it tracks local-vs-last-save
// divergence only.
func (g *Graph) ApplyNode(n Node) {
	g.nodes[n.ID] = &n
}

// DropNode removes a remotely-deleted node; no-op when absent
func (g *Graph) DropNode(id string) {
	delete(g.nodes, id)
}

// ApplyEdge upserts a remotely-sourced edge without touching the dirty flag
func (g *Graph) ApplyEdge(e Edge) {
	g.edges[e.ID] = &e
}

// DropEdge removes a remotely-deleted edge; no-op when absent
func (g *Graph) DropEdge(id string) {
	delete(g.edges, id)
}

// Node returns a copy of the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Edge returns a copy of the edge with the given id
func (g *Graph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Nodes returns a copy of all nodes, ordered by id
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns a copy of all edges, ordered by id
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns the serializable state handed to the save path
func (g *Graph) Snapshot() ([]Node, []Edge) {
	return g.Nodes(), g.Edges()
}
