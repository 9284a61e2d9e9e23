package workflow

import (
	"time"

	pkgerrors "conduit-backend/pkg/errors"
)

// Edge is a transition between two workflow nodes. Multiple parallel edges
// between the same (source, target) pair are allowed; the transition prompt
// is what disambiguates them at runtime.
type Edge struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Label     string    `json:"label"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the edge's intrinsic rules. Node existence is not
// checked here: dangling edges are tolerated transiently during
// multi-step local edits.
func (e Edge) Validate() error {
	if e.ID == "" {
		return pkgerrors.NewValidationError("edge id cannot be empty")
	}
	if e.SourceID == "" || e.TargetID == "" {
		return pkgerrors.NewValidationError("edge source and target are required")
	}
	return nil
}

// EdgePatch is a partial update to an edge. Nil fields are left unchanged.
type EdgePatch struct {
	SourceID *string `json:"source_id,omitempty"`
	TargetID *string `json:"target_id,omitempty"`
	Label    *string `json:"label,omitempty"`
	Prompt   *string `json:"prompt,omitempty"`
}
