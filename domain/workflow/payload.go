package workflow

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	pkgerrors "conduit-backend/pkg/errors"
)

// PayloadState distinguishes the three shapes a tool's structured header or
// body data can take.
type PayloadState int

const (
	PayloadAbsent PayloadState = iota
	PayloadParsed
	PayloadInvalid
)

// Payload is a tool's free-form header mapping or body template. It is an
// explicit sum type rather than an untyped blob: Absent, Parsed(values), or
// Invalid(raw text that failed to parse). Invalid payloads survive
// round-trips so the raw text is not lost, but they fail validation.
type Payload struct {
	state  PayloadState
	values map[string]interface{}
	raw    string
}

// AbsentPayload returns the absent payload
func AbsentPayload() Payload {
	return Payload{state: PayloadAbsent}
}

// NewPayload builds a parsed payload from a value map
func NewPayload(values map[string]interface{}) Payload {
	if values == nil {
		return AbsentPayload()
	}
	return Payload{state: PayloadParsed, values: values}
}

// ParsePayload classifies raw text into one of the three payload states.
// Empty text and JSON null are absent; a JSON object is parsed; anything
// else is invalid.
func ParsePayload(raw string) Payload {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return AbsentPayload()
	}

	var values map[string]interface{}
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return Payload{state: PayloadInvalid, raw: raw}
	}
	return Payload{state: PayloadParsed, values: values}
}

// State returns the payload state
func (p Payload) State() PayloadState {
	return p.state
}

// IsAbsent reports whether no payload was supplied
func (p Payload) IsAbsent() bool {
	return p.state == PayloadAbsent
}

// Values returns the parsed key/value data, or nil when not parsed
func (p Payload) Values() map[string]interface{} {
	if p.state != PayloadParsed {
		return nil
	}
	return p.values
}

// Raw returns the unparseable text of an invalid payload
func (p Payload) Raw() string {
	return p.raw
}

// Validate surfaces invalid payloads as validation failures
func (p Payload) Validate(field string) error {
	if p.state == PayloadInvalid {
		return pkgerrors.NewValidationError(fmt.Sprintf("tool %s is not valid JSON", field))
	}
	return nil
}

// MarshalJSON encodes absent as null, parsed as the object, and invalid as
// the original raw string.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.state {
	case PayloadParsed:
		return json.Marshal(p.values)
	case PayloadInvalid:
		return json.Marshal(p.raw)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a payload from its wire form
func (p *Payload) UnmarshalJSON(data []byte) error {
	// A JSON string carries the raw text of a previously invalid payload.
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*p = ParsePayload(raw)
		return nil
	}
	*p = ParsePayload(string(data))
	return nil
}

// Value implements driver.Valuer for jsonb columns
func (p Payload) Value() (driver.Value, error) {
	switch p.state {
	case PayloadParsed:
		data, err := json.Marshal(p.values)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case PayloadInvalid:
		// jsonb refuses malformed text; persist it as a JSON string so the
		// raw content survives.
		data, err := json.Marshal(p.raw)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, nil
	}
}

// Scan implements sql.Scanner for jsonb columns
func (p *Payload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = AbsentPayload()
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}
}
