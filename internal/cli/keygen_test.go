package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

func TestKeygen(t *testing.T) {
	tests := []struct {
		alg      string
		wantCode string
	}{
		{"ed25519", "E"},
		{"secp256k1", "S"},
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := NewKeygenCommand(&RootOptions{Format: "json"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{"--alg", tt.alg})
			require.NoError(t, cmd.Execute())

			var resp struct {
				Data KeygenResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.alg, resp.Data.Derivator)
			assert.True(t, len(resp.Data.PublicKey) > 1 && resp.Data.PublicKey[:1] == tt.wantCode)

			alg, err := id.ParseKeyAlg(tt.alg)
			require.NoError(t, err)
			kp, err := keys.FromSecretHex(alg, resp.Data.PrivateKey)
			require.NoError(t, err)
			assert.Equal(t, resp.Data.PublicKey, kp.Public().String())
		})
	}
}

func TestKeygenUnknownAlgorithm(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewKeygenCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--alg", "rsa"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "unknown key derivator")
}

func TestKeygenTextOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewKeygenCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "key_derivator: ed25519")
	assert.Contains(t, buf.String(), "private_key:")
	assert.Contains(t, buf.String(), "public_key:")
}
