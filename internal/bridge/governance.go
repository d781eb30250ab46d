package bridge

import (
	"encoding/json"
	"sync"

	"github.com/roach88/ledgerbridge/internal/ledger"
)

// Governance is a read view over a governance subject's properties.
type Governance struct {
	api *API

	mu   sync.RWMutex
	data SubjectData
}

// NewGovernance fails with NotFound unless s is a loaded governance subject.
func NewGovernance(s *Subject) (*Governance, error) {
	data, ok := s.Data()
	if !ok {
		return nil, Errorf(KindNotFound, "subject data not found")
	}
	if data.SchemaID != ledger.GovernanceSchemaID {
		return nil, Errorf(KindNotFound, "schema id %q is not a governance", data.SchemaID)
	}
	return &Governance{api: s.api, data: data}, nil
}

func (g *Governance) Data() SubjectData {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data
}

// Refresh reloads the governance if the engine holds a newer sn.
func (g *Governance) Refresh() error {
	current := g.Data()
	fresh, err := g.api.subjectData(current.SubjectID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data.SN < fresh.SN {
		g.data = fresh
	}
	return nil
}

func (g *Governance) parse() (*ledger.Governance, error) {
	parsed, err := ledger.ParseGovernance(json.RawMessage(g.Data().Properties))
	if err != nil {
		return nil, NewError(KindDeserialization, err)
	}
	return parsed, nil
}

// Members returns the member key ids.
func (g *Governance) Members() ([]string, error) {
	parsed, err := g.parse()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(parsed.Members))
	for i, m := range parsed.Members {
		out[i] = m.ID
	}
	return out, nil
}

func (g *Governance) Policies() ([]Policy, error) {
	parsed, err := g.parse()
	if err != nil {
		return nil, err
	}
	out := make([]Policy, len(parsed.Policies))
	for i, p := range parsed.Policies {
		out[i] = encodePolicy(p)
	}
	return out, nil
}

func (g *Governance) Roles() ([]Role, error) {
	parsed, err := g.parse()
	if err != nil {
		return nil, err
	}
	out := make([]Role, len(parsed.Roles))
	for i, r := range parsed.Roles {
		out[i] = Role{Who: string(r.Who), Namespace: r.Namespace, Role: r.Role, Schema: string(r.Schema)}
	}
	return out, nil
}

// Schemas returns schema definitions with schema and initial value as JSON
// text.
func (g *Governance) Schemas() ([]Schema, error) {
	parsed, err := g.parse()
	if err != nil {
		return nil, err
	}
	out := make([]Schema, len(parsed.Schemas))
	for i, s := range parsed.Schemas {
		out[i] = Schema{ID: s.ID, Schema: string(s.Schema), InitialValue: string(s.InitialValue)}
	}
	return out, nil
}
