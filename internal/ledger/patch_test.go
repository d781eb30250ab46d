package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePatch(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch string
		want  string
	}{
		{"add field", `{"a":1}`, `{"b":2}`, `{"a":1,"b":2}`},
		{"replace field", `{"a":1}`, `{"a":"x"}`, `{"a":"x"}`},
		{"null removes", `{"a":1,"b":2}`, `{"a":null}`, `{"b":2}`},
		{"nested merge", `{"a":{"x":1,"y":2}}`, `{"a":{"y":null,"z":3}}`, `{"a":{"x":1,"z":3}}`},
		{"array replaced", `{"a":[1,2]}`, `{"a":[3]}`, `{"a":[3]}`},
		{"empty doc", ``, `{"a":1}`, `{"a":1}`},
		{"large integer kept", `{}`, `{"n":9007199254740993}`, `{"n":9007199254740993}`},
		{"empty patch", `{"a":1}`, `{}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mergePatch(json.RawMessage(tt.doc), json.RawMessage(tt.patch))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestMergePatchRejectsInvalidJSON(t *testing.T) {
	_, err := mergePatch(json.RawMessage(`{"a":1}`), json.RawMessage(`{`))
	assert.Error(t, err)

	_, err = mergePatch(json.RawMessage(`nope`), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestIsJSONObject(t *testing.T) {
	assert.True(t, isJSONObject(json.RawMessage(`{}`)))
	assert.True(t, isJSONObject(json.RawMessage(`{"a":[1]}`)))
	assert.False(t, isJSONObject(json.RawMessage(`[]`)))
	assert.False(t, isJSONObject(json.RawMessage(`null`)))
	assert.False(t, isJSONObject(json.RawMessage(`"x"`)))
	assert.False(t, isJSONObject(nil))
}
