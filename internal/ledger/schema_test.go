package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sensorCUE = `
temperature: number & >=-50 & <=60
unit: "C" | "F"
`

func TestSchemaValidator_Validate(t *testing.T) {
	v := newSchemaValidator()

	tests := []struct {
		name    string
		src     string
		state   string
		wantErr bool
	}{
		{"valid state", sensorCUE, `{"temperature":21.5,"unit":"C"}`, false},
		{"out of range", sensorCUE, `{"temperature":100,"unit":"C"}`, true},
		{"bad enum", sensorCUE, `{"temperature":10,"unit":"K"}`, true},
		{"missing field", sensorCUE, `{"unit":"C"}`, true},
		{"no schema accepts object", "", `{"anything":[1,2]}`, false},
		{"no schema rejects array", "", `[1,2]`, true},
		{"invalid cue", "value: &&", `{"value":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.src, json.RawMessage(tt.state))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, CodeSchemaViolation, CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSchemaValidator_CachesCompiledSchemas(t *testing.T) {
	v := newSchemaValidator()
	require.NoError(t, v.Validate(sensorCUE, json.RawMessage(`{"temperature":1,"unit":"F"}`)))
	require.NoError(t, v.Validate(sensorCUE, json.RawMessage(`{"temperature":2,"unit":"C"}`)))
	assert.Len(t, v.cache, 1)
}

func TestSchemaValidator_ValidateGovernance(t *testing.T) {
	v := newSchemaValidator()

	require.NoError(t, v.ValidateGovernance(json.RawMessage(DefaultGovernanceProperties)))

	err := v.ValidateGovernance(json.RawMessage(`{"members":[],"policies":[],"roles":[],"schemas":[{"id":"governance","schema":"","initial_value":{}}]}`))
	assert.Error(t, err, "schema id governance is reserved")

	err = v.ValidateGovernance(json.RawMessage(`{"members":[{"id":"","name":"x"}],"policies":[],"roles":[],"schemas":[]}`))
	assert.Error(t, err, "member ids must not be empty")
}
