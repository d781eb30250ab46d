package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execEvents(t *testing.T, config string, args ...string) (EventsResult, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewEventsCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", config}, args...))
	if err := cmd.Execute(); err != nil {
		return EventsResult{}, err
	}

	var resp struct {
		Status string       `json:"status"`
		Data   EventsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data, nil
}

func TestEventsUnknownSubject(t *testing.T) {
	config := writeConfig(t, "sqlite3", filepath.Join(t.TempDir(), "ledger.db"))

	buf := &bytes.Buffer{}
	cmd := NewEventsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", config, "Fhd8EDbXdcKNGD3vkJQYpTUGjA_OhCwpRFFSq3keAhHU"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [NotFound]")
}

func TestEventsMalformedSubject(t *testing.T) {
	_, err := execEvents(t, writeConfig(t, "memory", ""), "not-an-id")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestEventsBadStore(t *testing.T) {
	// a directory cannot be opened as a SQLite file
	_, err := execEvents(t, writeConfig(t, "sqlite3", t.TempDir()), "Fhd8EDbXdcKNGD3vkJQYpTUGjA_OhCwpRFFSq3keAhHU")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
