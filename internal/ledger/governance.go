package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/ledgerbridge/internal/id"
)

// DefaultGovernanceProperties is the state of a freshly created governance.
const DefaultGovernanceProperties = `{"members":[],"policies":[],"roles":[],"schemas":[]}`

// Governance is the decoded state of a governance subject.
type Governance struct {
	Members  []Member    `json:"members"`
	Policies []Policy    `json:"policies"`
	Roles    []Role      `json:"roles"`
	Schemas  []SchemaDef `json:"schemas"`
}

type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Policy struct {
	ID       string     `json:"id"`
	Approve  Validation `json:"approve"`
	Evaluate Validation `json:"evaluate"`
	Validate Validation `json:"validate"`
}

type Validation struct {
	Quorum Quorum `json:"quorum"`
}

// QuorumKind selects how a Quorum is computed.
type QuorumKind string

const (
	QuorumMajority   QuorumKind = "MAJORITY"
	QuorumFixed      QuorumKind = "FIXED"
	QuorumPercentage QuorumKind = "PERCENTAGE"
)

// Quorum encodes as "MAJORITY", {"FIXED": n} or {"PERCENTAGE": f}.
type Quorum struct {
	Kind       QuorumKind
	Fixed      uint64
	Percentage float64
}

func (q Quorum) MarshalJSON() ([]byte, error) {
	switch q.Kind {
	case QuorumMajority, "":
		return []byte(`"MAJORITY"`), nil
	case QuorumFixed:
		return []byte(`{"FIXED":` + strconv.FormatUint(q.Fixed, 10) + `}`), nil
	case QuorumPercentage:
		return []byte(`{"PERCENTAGE":` + strconv.FormatFloat(q.Percentage, 'f', -1, 64) + `}`), nil
	default:
		return nil, fmt.Errorf("unknown quorum kind %q", q.Kind)
	}
}

func (q *Quorum) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != string(QuorumMajority) {
			return fmt.Errorf("unknown quorum %q", s)
		}
		*q = Quorum{Kind: QuorumMajority}
		return nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("quorum must be a string or object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("quorum object must have exactly one entry, got %d", len(m))
	}
	if raw, ok := m[string(QuorumFixed)]; ok {
		var v uint64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("FIXED quorum: %w", err)
		}
		*q = Quorum{Kind: QuorumFixed, Fixed: v}
		return nil
	}
	if raw, ok := m[string(QuorumPercentage)]; ok {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("PERCENTAGE quorum: %w", err)
		}
		*q = Quorum{Kind: QuorumPercentage, Percentage: v}
		return nil
	}
	for k := range m {
		return fmt.Errorf("unknown quorum kind %q", k)
	}
	return nil
}

// Role keeps the who/schema selectors as raw JSON; they are tagged unions
// the engine does not interpret.
type Role struct {
	Who       json.RawMessage `json:"who"`
	Namespace string          `json:"namespace"`
	Role      string          `json:"role"`
	Schema    json.RawMessage `json:"schema"`
}

// SchemaDef declares a subject schema. Schema holds either a CUE source
// string, which subject state must satisfy, or any other JSON value, which
// imposes no constraint beyond state being an object.
type SchemaDef struct {
	ID           string          `json:"id"`
	Schema       json.RawMessage `json:"schema"`
	InitialValue json.RawMessage `json:"initial_value"`
}

// CUESource returns the CUE definition, or "" if the schema is not a string.
func (s SchemaDef) CUESource() string {
	var src string
	if err := json.Unmarshal(s.Schema, &src); err != nil {
		return ""
	}
	return src
}

// ParseGovernance decodes governance properties.
func ParseGovernance(properties json.RawMessage) (*Governance, error) {
	var g Governance
	if err := json.Unmarshal(properties, &g); err != nil {
		return nil, fmt.Errorf("decode governance properties: %w", err)
	}
	for _, m := range g.Members {
		if _, err := id.ParseKeyID(m.ID); err != nil {
			return nil, fmt.Errorf("member %q: %w", m.Name, err)
		}
	}
	return &g, nil
}

// Schema returns the definition with the given id.
func (g *Governance) Schema(schemaID string) (SchemaDef, bool) {
	for _, s := range g.Schemas {
		if s.ID == schemaID {
			return s, true
		}
	}
	return SchemaDef{}, false
}

// IsMember reports whether key is listed in the governance members.
func (g *Governance) IsMember(key id.KeyID) bool {
	want := key.String()
	for _, m := range g.Members {
		if m.ID == want {
			return true
		}
	}
	return false
}
