package workflow

import (
	pkgerrors "conduit-backend/pkg/errors"
)

// Step pairs a reachable node with the edge that leads to it
type Step struct {
	Node Node
	Edge Edge
}

// Walker traverses a loaded workflow at conversation runtime: it tracks the
// current node and answers which transitions are available. It operates on
// an immutable snapshot; editing and walking never share state.
type Walker struct {
	nodes   map[string]Node
	bySrc   map[string][]Edge
	current string
}

// NewWalker builds a walker positioned at the workflow's start node
func NewWalker(nodes []Node, edges []Edge) (*Walker, error) {
	w := &Walker{
		nodes: make(map[string]Node, len(nodes)),
		bySrc: make(map[string][]Edge, len(edges)),
	}
	for _, n := range nodes {
		w.nodes[n.ID] = n
		if n.IsStart() {
			w.current = n.ID
		}
	}
	if w.current == "" {
		return nil, pkgerrors.NewInvariantViolationError("no start node found in workflow")
	}
	for _, e := range edges {
		w.bySrc[e.SourceID] = append(w.bySrc[e.SourceID], e)
	}
	return w, nil
}

// Current returns the node the conversation is at
func (w *Walker) Current() Node {
	return w.nodes[w.current]
}

// NextSteps returns every node reachable from the current one, each paired
// with its transition edge. Edges pointing at missing nodes are skipped.
func (w *Walker) NextSteps() []Step {
	edges := w.bySrc[w.current]
	steps := make([]Step, 0, len(edges))
	for _, e := range edges {
		n, ok := w.nodes[e.TargetID]
		if !ok {
			continue
		}
		steps = append(steps, Step{Node: n, Edge: e})
	}
	return steps
}

// TransitionTo moves to the target node if an edge from the current node
// permits it; it reports whether the transition happened.
func (w *Walker) TransitionTo(nodeID string) bool {
	for _, s := range w.NextSteps() {
		if s.Node.ID == nodeID {
			w.current = nodeID
			return true
		}
	}
	return false
}

// EdgeTo returns the edge connecting the current node to the target, if any
func (w *Walker) EdgeTo(targetID string) (Edge, bool) {
	for _, e := range w.bySrc[w.current] {
		if e.TargetID == targetID {
			return e, true
		}
	}
	return Edge{}, false
}
