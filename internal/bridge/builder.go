package bridge

import (
	"sync"

	"github.com/roach88/ledgerbridge/internal/id"
)

// SubjectBuilder creates subjects owned by the node. Name and namespace are
// set once and reused by every Build.
type SubjectBuilder struct {
	api *API

	mu        sync.RWMutex
	name      string
	namespace string
}

func NewSubjectBuilder(api *API) *SubjectBuilder {
	return &SubjectBuilder{api: api}
}

func (b *SubjectBuilder) WithName(name string) *SubjectBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	return b
}

func (b *SubjectBuilder) WithNamespace(namespace string) *SubjectBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.namespace = namespace
	return b
}

// Build generates an ed25519 subject key, submits a create request signed
// by the node and returns a handle for the new subject. governanceID is ""
// when schemaID is "governance".
func (b *SubjectBuilder) Build(governanceID, schemaID string) (*Subject, error) {
	b.mu.RLock()
	name, namespace := b.name, b.namespace
	b.mu.RUnlock()

	if governanceID != "" {
		if _, err := decodeDigest("governance_id", governanceID); err != nil {
			return nil, err
		}
	}

	publicKey, err := b.api.AddKeys(id.Ed25519.String())
	if err != nil {
		return nil, err
	}
	content, err := decodeEventRequest(EventRequest{Kind: RequestCreate, Create: &CreateRequest{
		GovernanceID: governanceID,
		SchemaID:     schemaID,
		Namespace:    namespace,
		Name:         name,
		PublicKey:    publicKey,
	}})
	if err != nil {
		return nil, err
	}
	requestID, err := b.api.submit(content)
	if err != nil {
		return nil, err
	}

	s := newSubject(b.api, nil, requestID)
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}
