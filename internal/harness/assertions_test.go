package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []NotificationTrace {
	return []NotificationTrace{
		{Seq: 1, Kind: "new_subject", Subject: "$gov"},
		{Seq: 2, Kind: "new_event", Subject: "$gov"},
		{Seq: 3, Kind: "state_updated", Subject: "$gov"},
		{Seq: 4, Kind: "new_event", Subject: "$gov", SN: 1},
		{Seq: 5, Kind: "state_updated", Subject: "$gov", SN: 1},
	}
}

func uptr(v uint64) *uint64 { return &v }

func bptr(v bool) *bool { return &v }

func TestAssertNotificationContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertNotificationContains(trace, Assertion{Kind: "new_event", SN: uptr(1)}))
	assert.NoError(t, assertNotificationContains(trace, Assertion{Kind: "new_subject", Subject: "$gov"}))

	err := assertNotificationContains(trace, Assertion{Kind: "new_event", SN: uptr(2)})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertNotificationContains, ae.Type)
	assert.Contains(t, err.Error(), "new_event sn=2")
	assert.Contains(t, err.Error(), "[5] state_updated $gov sn=1")
}

func TestAssertNotificationOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertNotificationOrder(trace, Assertion{Kinds: []string{"new_subject", "state_updated", "new_event"}}))
	assert.NoError(t, assertNotificationOrder(trace, Assertion{Kinds: []string{"new_event", "new_event"}}))

	err := assertNotificationOrder(trace, Assertion{Kinds: []string{"state_updated", "new_subject"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new_subject (index 1)")

	err = assertNotificationOrder(trace, Assertion{Subject: "$other", Kinds: []string{"new_subject"}})
	assert.Error(t, err)
}

func TestAssertNotificationCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertNotificationCount(trace, Assertion{Kind: "new_event", Count: 2}))
	assert.NoError(t, assertNotificationCount(trace, Assertion{Kind: "approval_received", Count: 0}))

	err := assertNotificationCount(trace, Assertion{Kind: "state_updated", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	state := map[string]any{
		"$sensor": map[string]any{
			"properties": map[string]any{"temperature": 30.0, "unit": "F", "tags": []any{"a"}},
			"sn":         uint64(4),
			"active":     false,
		},
	}

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"subset match", Assertion{Subject: "$sensor", Expect: map[string]any{"temperature": 30, "unit": "F"}}, ""},
		{"nested match", Assertion{Subject: "$sensor", Expect: map[string]any{"tags": []any{"a"}}}, ""},
		{"sn and active", Assertion{Subject: "$sensor", SN: uptr(4), Active: bptr(false)}, ""},
		{"unbound subject", Assertion{Subject: "$gov", SN: uptr(0)}, "not bound"},
		{"wrong sn", Assertion{Subject: "$sensor", SN: uptr(3)}, "sn = 3"},
		{"wrong active", Assertion{Subject: "$sensor", Active: bptr(true)}, "active = true"},
		{"missing field", Assertion{Subject: "$sensor", Expect: map[string]any{"humidity": 1}}, `"humidity" to exist`},
		{"wrong value", Assertion{Subject: "$sensor", Expect: map[string]any{"unit": "C"}}, `"unit" = C`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(state, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	for _, n := range sampleTrace() {
		result.AddNotification(n)
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertNotificationCount, Kind: "new_subject", Count: 1},
		{Type: AssertNotificationCount, Kind: "new_subject", Count: 2},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion[1]")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestCheckExpect(t *testing.T) {
	trace := StepTrace{Index: 2, Action: "fact", SN: 1, State: "finished", Success: true}

	assert.Empty(t, checkExpect(trace, nil))
	assert.Empty(t, checkExpect(trace, &Expect{State: "finished", Success: bptr(true), SN: uptr(1)}))

	errs := checkExpect(trace, &Expect{State: "error", SN: uptr(2), Error: "NotFound"})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "steps[2] fact: expected state error, got finished")
}
