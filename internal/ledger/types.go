package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ledgerbridge/internal/id"
)

// GovernanceSchemaID marks a subject as a governance.
const GovernanceSchemaID = "governance"

// Signature binds a signer to the digest of some content.
type Signature struct {
	Signer      id.KeyID       `json:"signer"`
	Timestamp   uint64         `json:"timestamp"`
	Value       id.SignatureID `json:"value"`
	ContentHash id.DigestID    `json:"content_hash"`
}

// RequestKind selects the payload of an EventRequest.
type RequestKind string

const (
	KindCreate   RequestKind = "create"
	KindFact     RequestKind = "fact"
	KindTransfer RequestKind = "transfer"
	KindEOL      RequestKind = "eol"
)

type CreateRequest struct {
	GovernanceID id.DigestID `json:"governance_id"`
	SchemaID     string      `json:"schema_id"`
	Namespace    string      `json:"namespace"`
	Name         string      `json:"name"`
	PublicKey    id.KeyID    `json:"public_key"`
}

type FactRequest struct {
	SubjectID id.DigestID     `json:"subject_id"`
	Payload   json.RawMessage `json:"payload"`
}

type TransferRequest struct {
	SubjectID id.DigestID `json:"subject_id"`
	PublicKey id.KeyID    `json:"public_key"`
}

type EOLRequest struct {
	SubjectID id.DigestID `json:"subject_id"`
}

// EventRequest is a tagged union; exactly the field matching Kind is set.
type EventRequest struct {
	Kind     RequestKind      `json:"kind"`
	Create   *CreateRequest   `json:"create,omitempty"`
	Fact     *FactRequest     `json:"fact,omitempty"`
	Transfer *TransferRequest `json:"transfer,omitempty"`
	EOL      *EOLRequest      `json:"eol,omitempty"`
}

// Validate checks that the payload matches the kind.
func (r EventRequest) Validate() error {
	set := 0
	for _, present := range []bool{r.Create != nil, r.Fact != nil, r.Transfer != nil, r.EOL != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("event request must carry exactly one payload, got %d", set)
	}
	switch {
	case r.Kind == KindCreate && r.Create != nil,
		r.Kind == KindFact && r.Fact != nil,
		r.Kind == KindTransfer && r.Transfer != nil,
		r.Kind == KindEOL && r.EOL != nil:
		return nil
	}
	return fmt.Errorf("event request kind %q does not match its payload", r.Kind)
}

// TargetSubject returns the subject a non-create request applies to.
func (r EventRequest) TargetSubject() id.DigestID {
	switch {
	case r.Fact != nil:
		return r.Fact.SubjectID
	case r.Transfer != nil:
		return r.Transfer.SubjectID
	case r.EOL != nil:
		return r.EOL.SubjectID
	}
	return id.DigestID{}
}

type SignedEventRequest struct {
	Content   EventRequest `json:"content"`
	Signature Signature    `json:"signature"`
}

type RequestState string

const (
	RequestFinished   RequestState = "finished"
	RequestError      RequestState = "error"
	RequestProcessing RequestState = "processing"
)

// Request tracks a submitted event request.
type Request struct {
	ID           id.DigestID        `json:"id"`
	SubjectID    id.DigestID        `json:"subject_id"`
	SN           uint64             `json:"sn"`
	EventRequest SignedEventRequest `json:"event_request"`
	State        RequestState       `json:"state"`
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
}

type Event struct {
	SubjectID     id.DigestID        `json:"subject_id"`
	EventRequest  SignedEventRequest `json:"event_request"`
	SN            uint64             `json:"sn"`
	GovVersion    uint64             `json:"gov_version"`
	Patch         json.RawMessage    `json:"patch"`
	StateHash     id.DigestID        `json:"state_hash"`
	EvalSuccess   bool               `json:"eval_success"`
	ApprRequired  bool               `json:"appr_required"`
	Approved      bool               `json:"approved"`
	HashPrevEvent id.DigestID        `json:"hash_prev_event"`
	Evaluators    []Signature        `json:"evaluators"`
	Approvers     []Signature        `json:"approvers"`
}

type SignedEvent struct {
	Content   Event     `json:"content"`
	Signature Signature `json:"signature"`
}

// Subject is the current state of a subject.
type Subject struct {
	SubjectID    id.DigestID     `json:"subject_id"`
	GovernanceID id.DigestID     `json:"governance_id"`
	SN           uint64          `json:"sn"`
	PublicKey    id.KeyID        `json:"public_key"`
	Namespace    string          `json:"namespace"`
	Name         string          `json:"name"`
	SchemaID     string          `json:"schema_id"`
	Owner        id.KeyID        `json:"owner"`
	Creator      id.KeyID        `json:"creator"`
	Properties   json.RawMessage `json:"properties"`
	Active       bool            `json:"active"`
	LastEvent    id.DigestID     `json:"last_event"`
	// GenesisGovVersion is the governance sn when the subject was created.
	GenesisGovVersion uint64 `json:"genesis_gov_version"`
}

// IsGovernance reports whether the subject is a governance.
func (s *Subject) IsGovernance() bool {
	return s.SchemaID == GovernanceSchemaID
}

type ApprovalRequest struct {
	EventRequest  SignedEventRequest `json:"event_request"`
	SN            uint64             `json:"sn"`
	GovVersion    uint64             `json:"gov_version"`
	Patch         json.RawMessage    `json:"patch"`
	StateHash     id.DigestID        `json:"state_hash"`
	HashPrevEvent id.DigestID        `json:"hash_prev_event"`
	GovID         id.DigestID        `json:"gov_id"`
}

type SignedApprovalRequest struct {
	Content   ApprovalRequest `json:"content"`
	Signature Signature       `json:"signature"`
}

type ApprovalResponse struct {
	ApprReqHash id.DigestID `json:"appr_req_hash"`
	Approved    bool        `json:"approved"`
}

type SignedApprovalResponse struct {
	Content   ApprovalResponse `json:"content"`
	Signature Signature        `json:"signature"`
}

type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalAccepted ApprovalState = "accepted"
	ApprovalRejected ApprovalState = "rejected"
	ApprovalObsolete ApprovalState = "obsolete"
)

// Approval is a fact awaiting (or past) the owner's decision.
type Approval struct {
	ID        id.DigestID             `json:"id"`
	SubjectID id.DigestID             `json:"subject_id"`
	RequestID id.DigestID             `json:"request_id"`
	Request   SignedApprovalRequest   `json:"request"`
	Response  *SignedApprovalResponse `json:"response,omitempty"`
	State     ApprovalState           `json:"state"`
}

type ValidationProof struct {
	SubjectID                id.DigestID `json:"subject_id"`
	SchemaID                 string      `json:"schema_id"`
	Namespace                string      `json:"namespace"`
	Name                     string      `json:"name"`
	SubjectPublicKey         id.KeyID    `json:"subject_public_key"`
	GovernanceID             id.DigestID `json:"governance_id"`
	GenesisGovernanceVersion uint64      `json:"genesis_governance_version"`
	SN                       uint64      `json:"sn"`
	PrevEventHash            id.DigestID `json:"prev_event_hash"`
	EventHash                id.DigestID `json:"event_hash"`
	GovernanceVersion        uint64      `json:"governance_version"`
}

// SubjectProviders lists the keys allowed to create a preauthorized subject.
type SubjectProviders struct {
	SubjectID id.DigestID `json:"subject_id"`
	Providers []id.KeyID  `json:"providers"`
}
