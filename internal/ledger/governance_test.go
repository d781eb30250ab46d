package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

func TestQuorumJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Quorum
	}{
		{"majority", `"MAJORITY"`, Quorum{Kind: QuorumMajority}},
		{"fixed", `{"FIXED":3}`, Quorum{Kind: QuorumFixed, Fixed: 3}},
		{"percentage", `{"PERCENTAGE":0.5}`, Quorum{Kind: QuorumPercentage, Percentage: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quorum
			require.NoError(t, json.Unmarshal([]byte(tt.json), &q))
			assert.Equal(t, tt.want, q)

			out, err := json.Marshal(q)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(out))
		})
	}
}

func TestQuorumJSONInvalid(t *testing.T) {
	for _, in := range []string{`"ALL"`, `{"FIXED":1,"PERCENTAGE":0.2}`, `{"SOME":1}`, `{"FIXED":"x"}`, `12`} {
		var q Quorum
		assert.Error(t, json.Unmarshal([]byte(in), &q), in)
	}
}

func TestParseGovernance(t *testing.T) {
	kp, err := keys.Generate(id.Ed25519)
	require.NoError(t, err)

	props := `{
		"members": [{"id": "` + kp.Public().String() + `", "name": "node"}],
		"policies": [{"id": "sensor", "approve": {"quorum": "MAJORITY"}, "evaluate": {"quorum": {"FIXED": 1}}, "validate": {"quorum": {"PERCENTAGE": 0.5}}}],
		"roles": [],
		"schemas": [{"id": "sensor", "schema": "value: int", "initial_value": {"value": 0}}]
	}`

	g, err := ParseGovernance(json.RawMessage(props))
	require.NoError(t, err)

	assert.True(t, g.IsMember(kp.Public()))
	require.Len(t, g.Policies, 1)
	assert.Equal(t, QuorumFixed, g.Policies[0].Evaluate.Quorum.Kind)

	def, ok := g.Schema("sensor")
	require.True(t, ok)
	assert.Equal(t, "value: int", def.CUESource())

	_, ok = g.Schema("missing")
	assert.False(t, ok)
}

func TestParseGovernanceRejectsBadMember(t *testing.T) {
	_, err := ParseGovernance(json.RawMessage(`{"members":[{"id":"not-a-key","name":"x"}]}`))
	assert.Error(t, err)
}

func TestSchemaDefNonStringSchema(t *testing.T) {
	def := SchemaDef{ID: "free", Schema: json.RawMessage(`{"type":"object"}`)}
	assert.Equal(t, "", def.CUESource())
}
