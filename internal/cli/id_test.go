package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

func execID(t *testing.T, format string, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewIDCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestIDParse(t *testing.T) {
	kp, err := keys.Generate(id.Secp256k1)
	require.NoError(t, err)
	sig, err := kp.Sign([]byte("msg"))
	require.NoError(t, err)
	digest, err := id.Derive(id.SHA3_512, []byte("msg"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  IDInfo
	}{
		{"digest", digest.String(), IDInfo{Kind: "digest", Algorithm: "sha3_512", Bytes: 64}},
		{"key", kp.Public().String(), IDInfo{Kind: "key", Algorithm: "secp256k1", Bytes: 33}},
		{"signature", sig.String(), IDInfo{Kind: "signature", Algorithm: "secp256k1", Bytes: 65}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execID(t, "json", "", "parse", tt.input)
			require.NoError(t, err)

			var resp struct {
				Data IDInfo `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			tt.want.ID = tt.input
			assert.Equal(t, tt.want, resp.Data)
		})
	}
}

func TestIDParseMalformed(t *testing.T) {
	out, err := execID(t, "text", "", "parse", "Xnot-an-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, id.ErrMalformed)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [MalformedIdentifier]")
}

func TestIDDigestStdin(t *testing.T) {
	want, err := id.Derive(id.Blake2b256, []byte("payload"))
	require.NoError(t, err)

	out, err := execID(t, "text", "payload", "digest")
	require.NoError(t, err)
	assert.Equal(t, want.String()+"\n", out)
}

func TestIDDigestCanonicalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{ "b": 1, "a": [true, null] }`), 0o644))

	want, err := id.DeriveCanonical(id.SHA2_256, map[string]any{"a": []any{true, nil}, "b": 1})
	require.NoError(t, err)

	out, err := execID(t, "json", "", "digest", "--alg", "sha2_256", "--canonical", path)
	require.NoError(t, err)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, want.String(), resp.Data["digest"])
	assert.Equal(t, "sha2_256", resp.Data["algorithm"])
}

func TestIDDigestCanonicalRejectsNonJSON(t *testing.T) {
	_, err := execID(t, "text", "not json", "digest", "--canonical")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestIDVerify(t *testing.T) {
	kp, err := keys.Generate(id.Ed25519)
	require.NoError(t, err)
	sig, err := kp.Sign([]byte("Fmessage"))
	require.NoError(t, err)

	out, err := execID(t, "text", "", "verify", "--key", kp.Public().String(), "--sig", sig.String(), "Fmessage")
	require.NoError(t, err)
	assert.Contains(t, out, "signature valid")

	out, err = execID(t, "text", "", "verify", "--key", kp.Public().String(), "--sig", sig.String(), "Fother")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SignatureFailed")

	_, err = execID(t, "text", "", "verify", "--key", "bogus", "--sig", sig.String(), "Fmessage")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
