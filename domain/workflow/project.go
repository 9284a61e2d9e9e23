package workflow

import "time"

// Project owns one workflow graph. Creating a project always creates its
// start node as a side effect; deleting a project cascades to its nodes and
// edges.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StartNodePosition is where a project's start node is placed on creation
var StartNodePosition = Position{X: 50, Y: 50}

// NewStartNode builds the canonical start node for a project
func NewStartNode(projectID string) Node {
	return Node{
		ID:        StartNodeID(projectID),
		ProjectID: projectID,
		Title:     "Start",
		Prompt:    "Welcome! How can I help you today?",
		Kind:      NodeKindStart,
		Position:  StartNodePosition,
	}
}
