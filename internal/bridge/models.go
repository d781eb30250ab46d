package bridge

// Caller-facing models. Identifiers are canonical strings; JSON payloads
// and states are JSON text.

type Signature struct {
	Signer      string `json:"signer"`
	Timestamp   uint64 `json:"timestamp"`
	Value       string `json:"value"`
	ContentHash string `json:"content_hash"`
}

// Event request kinds.
const (
	RequestCreate   = "create"
	RequestFact     = "fact"
	RequestTransfer = "transfer"
	RequestEOL      = "eol"
)

type CreateRequest struct {
	GovernanceID string `json:"governance_id"`
	SchemaID     string `json:"schema_id"`
	Namespace    string `json:"namespace"`
	Name         string `json:"name"`
	PublicKey    string `json:"public_key"`
}

type FactRequest struct {
	SubjectID string `json:"subject_id"`
	Payload   string `json:"payload"`
}

type TransferRequest struct {
	SubjectID string `json:"subject_id"`
	PublicKey string `json:"public_key"`
}

type EOLRequest struct {
	SubjectID string `json:"subject_id"`
}

// EventRequest carries exactly one of its payloads, matching Kind.
type EventRequest struct {
	Kind     string           `json:"kind"`
	Create   *CreateRequest   `json:"create,omitempty"`
	Fact     *FactRequest     `json:"fact,omitempty"`
	Transfer *TransferRequest `json:"transfer,omitempty"`
	EOL      *EOLRequest      `json:"eol,omitempty"`
}

type SignedEventRequest struct {
	Request   EventRequest `json:"request"`
	Signature Signature    `json:"signature"`
}

type Request struct {
	ID           string             `json:"id"`
	SubjectID    string             `json:"subject_id,omitempty"`
	SN           uint64             `json:"sn"`
	EventRequest SignedEventRequest `json:"event_request"`
	State        string             `json:"state"`
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
}

type Event struct {
	SubjectID     string             `json:"subject_id"`
	EventRequest  SignedEventRequest `json:"event_request"`
	SN            uint64             `json:"sn"`
	GovVersion    uint64             `json:"gov_version"`
	Patch         string             `json:"patch"`
	StateHash     string             `json:"state_hash"`
	EvalSuccess   bool               `json:"eval_success"`
	ApprRequired  bool               `json:"appr_required"`
	Approved      bool               `json:"approved"`
	HashPrevEvent string             `json:"hash_prev_event"`
	Evaluators    []Signature        `json:"evaluators"`
	Approvers     []Signature        `json:"approvers"`
}

type SignedEvent struct {
	Event     Event     `json:"event"`
	Signature Signature `json:"signature"`
}

// SubjectData is a snapshot of a subject's state.
type SubjectData struct {
	SubjectID    string `json:"subject_id"`
	GovernanceID string `json:"governance_id"`
	SN           uint64 `json:"sn"`
	PublicKey    string `json:"public_key"`
	Namespace    string `json:"namespace"`
	Name         string `json:"name"`
	SchemaID     string `json:"schema_id"`
	Owner        string `json:"owner"`
	Creator      string `json:"creator"`
	Properties   string `json:"properties"`
	Active       bool   `json:"active"`
}

type ValidationProof struct {
	SubjectID                string `json:"subject_id"`
	SchemaID                 string `json:"schema_id"`
	Namespace                string `json:"namespace"`
	Name                     string `json:"name"`
	SubjectPublicKey         string `json:"subject_public_key"`
	GovernanceID             string `json:"governance_id"`
	GenesisGovernanceVersion uint64 `json:"genesis_governance_version"`
	SN                       uint64 `json:"sn"`
	PrevEventHash            string `json:"prev_event_hash"`
	EventHash                string `json:"event_hash"`
	GovernanceVersion        uint64 `json:"governance_version"`
}

type ValidationProofAndSignatures struct {
	ValidationProof ValidationProof `json:"validation_proof"`
	Signatures      []Signature     `json:"signatures"`
}

// ChainReport is the outcome of a successful chain verification.
type ChainReport struct {
	SubjectID string `json:"subject_id"`
	Events    uint64 `json:"events"`
	Head      string `json:"head"`
}

type SubjectAndProviders struct {
	SubjectID string   `json:"subject_id"`
	Providers []string `json:"providers"`
}

type ApprovalRequest struct {
	EventRequest  SignedEventRequest `json:"event_request"`
	SN            uint64             `json:"sn"`
	GovVersion    uint64             `json:"gov_version"`
	Patch         string             `json:"patch"`
	StateHash     string             `json:"state_hash"`
	HashPrevEvent string             `json:"hash_prev_event"`
	GovID         string             `json:"gov_id"`
}

type ApprovalResponse struct {
	ApprReqHash string `json:"appr_req_hash"`
	Approved    bool   `json:"approved"`
}

// Approval states.
const (
	ApprovalPending  = "pending"
	ApprovalAccepted = "accepted"
	ApprovalRejected = "rejected"
	ApprovalObsolete = "obsolete"
)

type Approval struct {
	ID                string            `json:"id"`
	SubjectID         string            `json:"subject_id"`
	RequestID         string            `json:"request_id"`
	Request           ApprovalRequest   `json:"request"`
	RequestSignature  Signature         `json:"request_signature"`
	Response          *ApprovalResponse `json:"response,omitempty"`
	ResponseSignature *Signature        `json:"response_signature,omitempty"`
	State             string            `json:"state"`
}

// Governance views.

type Quorum struct {
	Kind       string  `json:"kind"`
	Fixed      uint64  `json:"fixed,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
}

type Validation struct {
	Quorum Quorum `json:"quorum"`
}

type Policy struct {
	ID       string     `json:"id"`
	Approve  Validation `json:"approve"`
	Evaluate Validation `json:"evaluate"`
	Validate Validation `json:"validate"`
}

type Role struct {
	Who       string `json:"who"`
	Namespace string `json:"namespace"`
	Role      string `json:"role"`
	Schema    string `json:"schema"`
}

type Schema struct {
	ID           string `json:"id"`
	Schema       string `json:"schema"`
	InitialValue string `json:"initial_value"`
}
