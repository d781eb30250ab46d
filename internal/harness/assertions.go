package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []NotificationTrace // Notifications for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nNotifications:\n")
		for _, n := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s sn=%d\n", n.Seq, n.Kind, n.Subject, n.SN)
		}
	}
	return buf.String()
}

// matchesNotification reports whether n has the assertion's kind and,
// when given, its subject and sn.
func matchesNotification(n NotificationTrace, a Assertion) bool {
	if n.Kind != a.Kind {
		return false
	}
	if a.Subject != "" && n.Subject != a.Subject {
		return false
	}
	if a.SN != nil && n.SN != *a.SN {
		return false
	}
	return true
}

func describe(a Assertion) string {
	var parts []string
	parts = append(parts, a.Kind)
	if a.Subject != "" {
		parts = append(parts, a.Subject)
	}
	if a.SN != nil {
		parts = append(parts, fmt.Sprintf("sn=%d", *a.SN))
	}
	return strings.Join(parts, " ")
}

// assertNotificationContains checks that a matching notification was drained.
func assertNotificationContains(trace []NotificationTrace, a Assertion) error {
	for _, n := range trace {
		if matchesNotification(n, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertNotificationContains,
		Expected: describe(a),
		Actual:   "not found in notifications",
		Trace:    trace,
	}
}

// assertNotificationOrder checks that kinds appear in the given relative
// order. Intervening notifications are allowed; each kind matches after
// the position of the previous one.
func assertNotificationOrder(trace []NotificationTrace, a Assertion) error {
	pos := 0
	for i, kind := range a.Kinds {
		found := false
		for pos < len(trace) {
			n := trace[pos]
			pos++
			if n.Kind == kind && (a.Subject == "" || n.Subject == a.Subject) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertNotificationOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual:   fmt.Sprintf("%s (index %d) not found after the previous kinds", kind, i),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertNotificationCount checks the exact number of matching notifications.
func assertNotificationCount(trace []NotificationTrace, a Assertion) error {
	count := 0
	for _, n := range trace {
		if matchesNotification(n, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertNotificationCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the recorded state of a bound subject using
// subset semantics on its properties.
func assertFinalState(state map[string]any, a Assertion) error {
	raw, ok := state[a.Subject]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("subject %s", a.Subject),
			Actual:   "subject not bound by any step",
		}
	}
	snapshot, _ := raw.(map[string]any)

	if a.SN != nil {
		if sn, _ := snapshot["sn"].(uint64); sn != *a.SN {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s sn = %d", a.Subject, *a.SN),
				Actual:   fmt.Sprintf("sn = %v", snapshot["sn"]),
			}
		}
	}
	if a.Active != nil {
		if active, _ := snapshot["active"].(bool); active != *a.Active {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s active = %t", a.Subject, *a.Active),
				Actual:   fmt.Sprintf("active = %v", snapshot["active"]),
			}
		}
	}

	expected, err := normalize(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Subject, err)
	}
	actual, _ := snapshot["properties"].(map[string]any)

	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s", key, a.Subject),
			}
		}
		if !valuesEqual(actualValue, expected[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected[key], expected[key]),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// normalize reduces YAML-decoded values to the shapes encoding/json
// produces, so numbers compare as float64 on both sides.
func normalize(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// valuesEqual compares two values for equality.
// Handles nested maps and slices.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// evaluateAssertion dispatches one assertion against the result.
func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertNotificationContains:
		return assertNotificationContains(result.Notifications, a)
	case AssertNotificationOrder:
		return assertNotificationOrder(result.Notifications, a)
	case AssertNotificationCount:
		return assertNotificationCount(result.Notifications, a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// EvaluateAssertions evaluates all assertions against a completed result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return errs
}
