package workflow

import (
	"time"

	pkgerrors "conduit-backend/pkg/errors"
)

// HTTPMethod is the request method a tool invocation uses
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodPatch  HTTPMethod = "PATCH"
)

// Valid reports whether the method is one of the supported methods
func (m HTTPMethod) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

// Tool is an HTTP capability a tool-kind node can invoke. Tools are shared
// across projects and may be referenced by zero or more nodes; deleting a
// tool clears the reference on those nodes, it does not cascade.
type Tool struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Method    HTTPMethod `json:"method"`
	Endpoint  string     `json:"endpoint"`
	Headers   Payload    `json:"headers"`
	Body      Payload    `json:"body"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// Validate checks the tool definition, including that its header and body
// payloads are not malformed.
func (t Tool) Validate() error {
	if t.Name == "" {
		return pkgerrors.NewValidationError("tool name cannot be empty")
	}
	if !t.Method.Valid() {
		return pkgerrors.NewValidationError("unsupported HTTP method: " + string(t.Method))
	}
	if t.Endpoint == "" {
		return pkgerrors.NewValidationError("tool endpoint cannot be empty")
	}
	if err := t.Headers.Validate("headers"); err != nil {
		return err
	}
	if err := t.Body.Validate("body"); err != nil {
		return err
	}
	return nil
}
