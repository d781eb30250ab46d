package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

// NodeSigner is the key name that signs as the node itself.
const NodeSigner = "node"

// Scenario defines an end-to-end ledger scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Keys maps signer names to hex ed25519 seeds. NodeSigner is required
	// and becomes the node key.
	Keys map[string]string `yaml:"keys"`

	// Steps run in order against one node.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the notification trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one facade call.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// As binds the subject the step touched to "$" + As.
	As string `yaml:"as,omitempty"`

	// Signer names the key that signs the request. Defaults to NodeSigner.
	Signer string `yaml:"signer,omitempty"`

	Args map[string]any `yaml:"args"`

	// Expect, if set, is checked against the observed step outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match on a StepTrace.
type Expect struct {
	State   string  `yaml:"state,omitempty"`
	Success *bool   `yaml:"success,omitempty"`
	SN      *uint64 `yaml:"sn,omitempty"`
	Error   string  `yaml:"error,omitempty"`
}

// Assertion validates the notification trace or final subject state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is a notification kind (notification_contains, notification_count).
	Kind string `yaml:"kind,omitempty"`

	// Subject is a "$name" reference. Optional for notification assertions,
	// required for final_state.
	Subject string `yaml:"subject,omitempty"`

	SN *uint64 `yaml:"sn,omitempty"`

	// Count is the expected number of occurrences (notification_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected relative order (notification_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Expect is a subset of the subject properties (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Active checks the subject lifecycle flag (final_state).
	Active *bool `yaml:"active,omitempty"`
}

// Step actions.
const (
	ActionCreate   = "create"
	ActionFact     = "fact"
	ActionTransfer = "transfer"
	ActionEOL      = "eol"
	ActionApprove  = "approve"
)

// Assertion type constants.
const (
	AssertNotificationContains = "notification_contains"
	AssertNotificationOrder    = "notification_order"
	AssertNotificationCount    = "notification_count"
	AssertFinalState           = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so "assertion:" vs "assertions:" typos surface.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, ok := s.Keys[NodeSigner]; !ok {
		return fmt.Errorf("keys.%s is required", NodeSigner)
	}
	for name, secret := range s.Keys {
		if _, err := keys.FromSecretHex(id.Ed25519, secret); err != nil {
			return fmt.Errorf("keys.%s: %w", name, err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Action {
		case ActionCreate, ActionFact, ActionTransfer, ActionEOL, ActionApprove:
		case "":
			return fmt.Errorf("steps[%d]: action is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		if step.Args == nil {
			return fmt.Errorf("steps[%d]: args is required (use empty map if no args)", i)
		}
		if step.Signer != "" {
			if _, ok := s.Keys[step.Signer]; !ok {
				return fmt.Errorf("steps[%d]: unknown signer %q", i, step.Signer)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNotificationContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for notification_contains", index)
		}
	case AssertNotificationOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for notification_order", index)
		}
	case AssertNotificationCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for notification_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for notification_count", index)
		}
	case AssertFinalState:
		if a.Subject == "" {
			return fmt.Errorf("assertions[%d]: subject is required for final_state", index)
		}
		if len(a.Expect) == 0 && a.SN == nil && a.Active == nil {
			return fmt.Errorf("assertions[%d]: expect, sn or active is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
