package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGoldens   = "../harness/testdata/golden"
)

func execScenario(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewScenarioCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestScenarioMatchesHarnessGoldens(t *testing.T) {
	out, err := execScenario(t, "json", "--golden-dir", harnessGoldens, harnessScenarios)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "scenario_report", []byte(out))
}

func TestScenarioTextOutput(t *testing.T) {
	out, err := execScenario(t, "text", "--golden-dir", harnessGoldens, "--filter", "sensor_*", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sensor_lifecycle")
	assert.NotContains(t, out, "governance_transfer")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioFailureExitCode(t *testing.T) {
	out, err := execScenario(t, "text", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken_expectation")
}

func TestScenarioUpdateThenMatch(t *testing.T) {
	goldenDir := t.TempDir()

	out, err := execScenario(t, "text", "--golden-dir", goldenDir, "--update", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	written, err := os.ReadFile(filepath.Join(goldenDir, "sensor_lifecycle.golden"))
	require.NoError(t, err)
	shipped, err := os.ReadFile(filepath.Join(harnessGoldens, "sensor_lifecycle.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(shipped), string(written))

	_, err = execScenario(t, "text", "--golden-dir", goldenDir, harnessScenarios)
	require.NoError(t, err)
}

func TestScenarioGoldenMismatch(t *testing.T) {
	goldenDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "sensor_lifecycle.golden"), []byte("{}"), 0o644))

	out, err := execScenario(t, "text", "--golden-dir", goldenDir, "--filter", "sensor_lifecycle", harnessScenarios)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestScenarioMissingDirectory(t *testing.T) {
	_, err := execScenario(t, "text", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioEmptyDirectory(t *testing.T) {
	out, err := execScenario(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestFindScenarioFilesSkipsGoldenDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "c.yaml"), nil, 0o644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)
}
