package workflow

import (
	"time"

	pkgerrors "conduit-backend/pkg/errors"
)

// NodeKind represents the kind of a workflow node
type NodeKind string

const (
	NodeKindStart   NodeKind = "start"
	NodeKindDefault NodeKind = "default"
	NodeKindTool    NodeKind = "tool"
)

// Valid reports whether the kind is one of the known node kinds
func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindStart, NodeKindDefault, NodeKindTool:
		return true
	}
	return false
}

// StartNodeID derives the identifier of a project's start node. Every
// project has exactly one start node and its id is a pure function of the
// project id, so all clients agree on it without coordination.
func StartNodeID(projectID string) string {
	return "start_" + projectID
}

// Position is a node's 2D canvas position
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a conversation state in a workflow graph. Identifiers are
// client-generated and stable across saves.
type Node struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	Kind      NodeKind  `json:"node_type"`
	ToolID    string    `json:"tool_id,omitempty"`
	Tool      *Tool     `json:"tool,omitempty"` // inlined on fetch; nil means absent
	Position  Position  `json:"position"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsStart reports whether the node is its project's start node
func (n Node) IsStart() bool {
	return n.Kind == NodeKindStart
}

// Validate checks the node's intrinsic rules
func (n Node) Validate() error {
	if n.ID == "" {
		return pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !n.Kind.Valid() {
		return pkgerrors.NewValidationError("unknown node kind: " + string(n.Kind))
	}
	if n.Kind == NodeKindStart && n.ID != StartNodeID(n.ProjectID) {
		return pkgerrors.NewValidationError("start node id must be derived from the project id")
	}
	return nil
}

// NodePatch is a partial update to a node. Nil fields are left unchanged.
type NodePatch struct {
	Title    *string   `json:"title,omitempty"`
	Prompt   *string   `json:"prompt,omitempty"`
	Kind     *NodeKind `json:"node_type,omitempty"`
	ToolID   *string   `json:"tool_id,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// ValidateStartNodeDelete refuses deletion of a project's start node. The
// decision rides the stored node's kind, never its id: clients are free to
// pick ids that merely look start-like.
func ValidateStartNodeDelete(n Node) error {
	if n.IsStart() {
		return pkgerrors.NewInvariantViolationError("the start node cannot be deleted")
	}
	return nil
}

// ValidateStartNodePatch refuses a kind change aimed at a start node
func ValidateStartNodePatch(n Node, patch NodePatch) error {
	if n.IsStart() && patch.Kind != nil && *patch.Kind != NodeKindStart {
		return pkgerrors.NewInvariantViolationError("the start node's kind cannot be changed")
	}
	return nil
}
