package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ledgerbridge/internal/id"
)

// TraceSnapshot is the golden form of a scenario execution. Identifiers
// are labels, so the snapshot is stable across key and digest changes.
type TraceSnapshot struct {
	Scenario      string              `json:"scenario"`
	Steps         []StepTrace         `json:"steps"`
	Notifications []NotificationTrace `json:"notifications"`
}

// Snapshot returns the canonical JSON trace of result.
func Snapshot(name string, result *Result) ([]byte, error) {
	return id.MarshalCanonical(TraceSnapshot{
		Scenario:      name,
		Steps:         result.Steps,
		Notifications: result.Notifications,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
