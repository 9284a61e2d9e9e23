package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		state PayloadState
	}{
		{"empty", "", PayloadAbsent},
		{"whitespace", "   ", PayloadAbsent},
		{"null", "null", PayloadAbsent},
		{"object", `{"Authorization":"Bearer {{token}}"}`, PayloadParsed},
		{"malformed", `{"Authorization": Bearer}`, PayloadInvalid},
		{"array is not a mapping", `[1,2]`, PayloadInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePayload(tt.raw)
			assert.Equal(t, tt.state, p.State())
		})
	}
}

func TestPayload_InvalidKeepsRawAndFailsValidation(t *testing.T) {
	p := ParsePayload(`{not json`)
	require.Equal(t, PayloadInvalid, p.State())
	assert.Equal(t, `{not json`, p.Raw())
	assert.Error(t, p.Validate("headers"))

	assert.NoError(t, AbsentPayload().Validate("headers"))
	assert.NoError(t, ParsePayload(`{"k":"v"}`).Validate("headers"))
}

func TestPayload_JSONRoundTrip(t *testing.T) {
	parsed := ParsePayload(`{"k":"v"}`)
	data, err := json.Marshal(parsed)
	require.NoError(t, err)

	var back Payload
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, PayloadParsed, back.State())
	assert.Equal(t, "v", back.Values()["k"])

	var absent Payload
	require.NoError(t, json.Unmarshal([]byte("null"), &absent))
	assert.True(t, absent.IsAbsent())
}

func TestPayload_ScanValue(t *testing.T) {
	var p Payload
	require.NoError(t, p.Scan([]byte(`{"k":"v"}`)))
	require.Equal(t, PayloadParsed, p.State())

	v, err := p.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, v.(string))

	var absent Payload
	require.NoError(t, absent.Scan(nil))
	v, err = absent.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	// Invalid payloads persist their raw text as a JSON string.
	invalid := ParsePayload(`{oops`)
	v, err = invalid.Value()
	require.NoError(t, err)
	var round Payload
	require.NoError(t, round.Scan([]byte(v.(string))))
	assert.Equal(t, PayloadInvalid, round.State())
	assert.Equal(t, `{oops`, round.Raw())
}
