package ledger

import (
	"context"
	"encoding/json"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/storage"
)

// Everything in this file runs on the loop goroutine.

// externalRequest validates, records and applies a signed request.
// Requests the engine refuses on their merits are recorded with state
// "error" and still return their id; only malformed or badly signed
// requests and storage failures return an error.
func (n *Node) externalRequest(ctx context.Context, signed SignedEventRequest) (id.DigestID, error) {
	if err := signed.Content.Validate(); err != nil {
		return id.DigestID{}, &Error{Code: CodeInvalidRequest, Message: "malformed event request", Err: err}
	}
	if err := VerifySignature(signed.Signature, signed.Content); err != nil {
		return id.DigestID{}, err
	}

	requestID, err := id.DeriveCanonical(n.cfg.Digest, signed)
	if err != nil {
		return id.DigestID{}, &Error{Code: CodeInvalidRequest, Message: "hash request", Err: err}
	}
	existing, err := n.store.request(ctx, requestID)
	if err == nil {
		return existing.ID, nil
	}
	if !IsNotFound(err) {
		return id.DigestID{}, n.unrecoverable(err)
	}

	req := &Request{ID: requestID, EventRequest: signed, State: RequestProcessing}
	if err := n.store.putRequest(ctx, req); err != nil {
		return id.DigestID{}, n.unrecoverable(err)
	}

	if err := n.apply(ctx, req); err != nil {
		if CodeOf(err) == CodeStorage {
			return id.DigestID{}, n.unrecoverable(err)
		}
		n.logger.Info("request refused", "request", requestID.String(), "kind", signed.Content.Kind, "error", err)
		req.State = RequestError
		req.Success = false
		req.Error = err.Error()
	}
	if err := n.store.putRequest(ctx, req); err != nil {
		return id.DigestID{}, n.unrecoverable(err)
	}
	return requestID, nil
}

// unrecoverable reports a failure that leaves the engine unable to complete
// a request it already accepted.
func (n *Node) unrecoverable(err error) error {
	n.logger.Error("unrecoverable engine error", "error", err)
	n.emit(Notification{Kind: NotifyUnrecoverableError, Error: err.Error()})
	return err
}

func (n *Node) apply(ctx context.Context, req *Request) error {
	content := req.EventRequest.Content
	switch content.Kind {
	case KindCreate:
		return n.applyCreate(ctx, req, content.Create)
	case KindFact:
		return n.applyFact(ctx, req, content.Fact)
	case KindTransfer:
		return n.applyTransfer(ctx, req, content.Transfer)
	case KindEOL:
		return n.applyEOL(ctx, req, content.EOL)
	default:
		return newError(CodeInvalidRequest, "", "unknown request kind %q", content.Kind)
	}
}

func (n *Node) applyCreate(ctx context.Context, req *Request, c *CreateRequest) error {
	if c.PublicKey.IsZero() {
		return newError(CodeInvalidRequest, "", "create request needs a subject public key")
	}

	var (
		props      json.RawMessage
		govVersion uint64
	)
	if c.SchemaID == GovernanceSchemaID {
		if !c.GovernanceID.IsZero() {
			return newError(CodeInvalidRequest, "", "a governance cannot belong to another governance")
		}
		props = json.RawMessage(DefaultGovernanceProperties)
	} else {
		gov, g, err := n.governance(ctx, c.GovernanceID)
		if err != nil {
			return err
		}
		def, ok := g.Schema(c.SchemaID)
		if !ok {
			return newError(CodeNotFound, c.GovernanceID.String(), "schema %q not defined by governance", c.SchemaID)
		}
		props = def.InitialValue
		if len(props) == 0 {
			props = json.RawMessage(`{}`)
		}
		if err := n.validator.Validate(def.CUESource(), props); err != nil {
			return err
		}
		govVersion = gov.SN
	}

	subjectID, err := id.DeriveCanonical(n.cfg.Digest, req.EventRequest.Content)
	if err != nil {
		return &Error{Code: CodeInvalidRequest, Message: "hash subject", Err: err}
	}
	if _, err := n.store.subject(ctx, subjectID); err == nil {
		return newError(CodeInvalidRequest, subjectID.String(), "subject already exists")
	} else if !IsNotFound(err) {
		return err
	}

	signer := req.EventRequest.Signature.Signer
	subj := &Subject{
		SubjectID:         subjectID,
		GovernanceID:      c.GovernanceID,
		SN:                0,
		PublicKey:         c.PublicKey,
		Namespace:         c.Namespace,
		Name:              c.Name,
		SchemaID:          c.SchemaID,
		Owner:             signer,
		Creator:           signer,
		Properties:        props,
		Active:            true,
		GenesisGovVersion: govVersion,
	}
	if err := n.appendEvent(ctx, subj, req, eventOutcome{patch: props, approved: true}); err != nil {
		return err
	}

	n.emit(Notification{Kind: NotifyNewSubject, SubjectID: subjectID, SN: 0})
	n.emit(Notification{Kind: NotifyNewEvent, SubjectID: subjectID, SN: 0})
	n.emit(Notification{Kind: NotifyStateUpdated, SubjectID: subjectID, SN: 0})
	return nil
}

func (n *Node) applyFact(ctx context.Context, req *Request, f *FactRequest) error {
	subj, err := n.activeSubject(ctx, f.SubjectID)
	if err != nil {
		return err
	}
	req.SubjectID = subj.SubjectID
	if !isJSONObject(f.Payload) {
		return newError(CodeInvalidRequest, subj.SubjectID.String(), "fact payload must be a JSON object")
	}

	newState, err := mergePatch(subj.Properties, f.Payload)
	if err != nil {
		return &Error{Code: CodeInvalidRequest, SubjectID: subj.SubjectID.String(), Message: "apply fact", Err: err}
	}
	if err := n.validateState(ctx, subj, newState); err != nil {
		return err
	}

	if req.EventRequest.Signature.Signer != subj.Owner {
		return n.requestApproval(ctx, subj, req, f.Payload, newState)
	}

	subj.SN++
	subj.Properties = newState
	if err := n.appendEvent(ctx, subj, req, eventOutcome{patch: f.Payload, approved: true}); err != nil {
		return err
	}
	n.emit(Notification{Kind: NotifyNewEvent, SubjectID: subj.SubjectID, SN: subj.SN})
	n.emit(Notification{Kind: NotifyStateUpdated, SubjectID: subj.SubjectID, SN: subj.SN})
	return n.obsoleteApprovals(ctx, subj)
}

func (n *Node) applyTransfer(ctx context.Context, req *Request, t *TransferRequest) error {
	subj, err := n.ownedSubject(ctx, req, t.SubjectID)
	if err != nil {
		return err
	}
	if t.PublicKey.IsZero() {
		return newError(CodeInvalidRequest, subj.SubjectID.String(), "transfer needs a public key")
	}

	subj.SN++
	subj.PublicKey = t.PublicKey
	subj.Owner = t.PublicKey
	if err := n.appendEvent(ctx, subj, req, eventOutcome{patch: json.RawMessage(`{}`), approved: true}); err != nil {
		return err
	}
	n.emit(Notification{Kind: NotifyNewEvent, SubjectID: subj.SubjectID, SN: subj.SN})
	n.emit(Notification{Kind: NotifyStateUpdated, SubjectID: subj.SubjectID, SN: subj.SN})
	return n.obsoleteApprovals(ctx, subj)
}

func (n *Node) applyEOL(ctx context.Context, req *Request, e *EOLRequest) error {
	subj, err := n.ownedSubject(ctx, req, e.SubjectID)
	if err != nil {
		return err
	}

	subj.SN++
	subj.Active = false
	if err := n.appendEvent(ctx, subj, req, eventOutcome{patch: json.RawMessage(`{}`), approved: true}); err != nil {
		return err
	}
	n.emit(Notification{Kind: NotifyNewEvent, SubjectID: subj.SubjectID, SN: subj.SN})
	n.emit(Notification{Kind: NotifyStateUpdated, SubjectID: subj.SubjectID, SN: subj.SN})
	return n.obsoleteApprovals(ctx, subj)
}

type eventOutcome struct {
	patch        json.RawMessage
	apprRequired bool
	approved     bool
	approvers    []Signature
}

// appendEvent signs and stores the event for subj.SN, then stores subj
// and marks req finished.
func (n *Node) appendEvent(ctx context.Context, subj *Subject, req *Request, out eventOutcome) error {
	stateHash, err := id.DeriveCanonical(n.cfg.Digest, subj.Properties)
	if err != nil {
		return &Error{Code: CodeInvalidRequest, SubjectID: subj.SubjectID.String(), Message: "hash state", Err: err}
	}
	govVersion, err := n.governanceVersion(ctx, subj)
	if err != nil {
		return err
	}
	approvers := out.approvers
	if approvers == nil {
		approvers = []Signature{}
	}

	ev := Event{
		SubjectID:     subj.SubjectID,
		EventRequest:  req.EventRequest,
		SN:            subj.SN,
		GovVersion:    govVersion,
		Patch:         out.patch,
		StateHash:     stateHash,
		EvalSuccess:   true,
		ApprRequired:  out.apprRequired,
		Approved:      out.approved,
		HashPrevEvent: subj.LastEvent,
		Evaluators:    []Signature{},
		Approvers:     approvers,
	}
	sig, err := Sign(n.cfg.Keys, n.cfg.Digest, n.cfg.Now(), ev)
	if err != nil {
		return &Error{Code: CodeInvalidSignature, Message: "sign event", Err: err}
	}
	signed := &SignedEvent{Content: ev, Signature: sig}
	eventHash, err := id.DeriveCanonical(n.cfg.Digest, signed)
	if err != nil {
		return &Error{Code: CodeInvalidRequest, Message: "hash event", Err: err}
	}
	subj.LastEvent = eventHash

	if err := n.store.putEvent(ctx, signed); err != nil {
		return err
	}
	if err := n.store.putSubject(ctx, subj); err != nil {
		return err
	}

	req.SubjectID = subj.SubjectID
	req.SN = subj.SN
	req.State = RequestFinished
	req.Success = out.approved
	n.logger.Debug("event appended", "subject", subj.SubjectID.String(), "sn", subj.SN, "approved", out.approved)
	return nil
}

func (n *Node) requestApproval(ctx context.Context, subj *Subject, req *Request, patch, newState json.RawMessage) error {
	stateHash, err := id.DeriveCanonical(n.cfg.Digest, newState)
	if err != nil {
		return &Error{Code: CodeInvalidRequest, Message: "hash state", Err: err}
	}
	govVersion, err := n.governanceVersion(ctx, subj)
	if err != nil {
		return err
	}
	govID := subj.GovernanceID
	if subj.IsGovernance() {
		govID = subj.SubjectID
	}

	ar := ApprovalRequest{
		EventRequest:  req.EventRequest,
		SN:            subj.SN + 1,
		GovVersion:    govVersion,
		Patch:         patch,
		StateHash:     stateHash,
		HashPrevEvent: subj.LastEvent,
		GovID:         govID,
	}
	sig, err := Sign(n.cfg.Keys, n.cfg.Digest, n.cfg.Now(), ar)
	if err != nil {
		return &Error{Code: CodeInvalidSignature, Message: "sign approval request", Err: err}
	}
	approvalID, err := id.DeriveCanonical(n.cfg.Digest, ar)
	if err != nil {
		return &Error{Code: CodeInvalidRequest, Message: "hash approval request", Err: err}
	}

	a := &Approval{
		ID:        approvalID,
		SubjectID: subj.SubjectID,
		RequestID: req.ID,
		Request:   SignedApprovalRequest{Content: ar, Signature: sig},
		State:     ApprovalPending,
	}
	if err := n.store.putApproval(ctx, a); err != nil {
		return err
	}
	req.SN = ar.SN
	n.emit(Notification{Kind: NotifyApprovalReceived, SubjectID: subj.SubjectID, SN: ar.SN, ApprovalID: approvalID})
	return nil
}

// respondApproval records the node's decision on a pending approval.
func (n *Node) respondApproval(ctx context.Context, approvalID id.DigestID, accept bool) (*Approval, error) {
	a, err := n.store.approval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if a.State != ApprovalPending {
		return nil, newError(CodeNotAllowed, a.SubjectID.String(), "approval is already %s", a.State)
	}
	subj, err := n.store.subject(ctx, a.SubjectID)
	if err != nil {
		return nil, err
	}
	req, err := n.store.request(ctx, a.RequestID)
	if err != nil {
		return nil, err
	}

	resp := ApprovalResponse{ApprReqHash: a.ID, Approved: accept}
	sig, err := Sign(n.cfg.Keys, n.cfg.Digest, n.cfg.Now(), resp)
	if err != nil {
		return nil, &Error{Code: CodeInvalidSignature, Message: "sign approval response", Err: err}
	}
	a.Response = &SignedApprovalResponse{Content: resp, Signature: sig}

	if !subj.Active || subj.LastEvent != a.Request.Content.HashPrevEvent {
		if err := n.markObsolete(ctx, a, req); err != nil {
			return nil, err
		}
		return a, nil
	}

	if accept {
		newState, err := mergePatch(subj.Properties, a.Request.Content.Patch)
		if err == nil {
			err = n.validateState(ctx, subj, newState)
		}
		if err != nil {
			if CodeOf(err) == CodeStorage {
				return nil, err
			}
			if err := n.markObsolete(ctx, a, req); err != nil {
				return nil, err
			}
			return a, nil
		}
		subj.Properties = newState
	}

	subj.SN++
	patch := a.Request.Content.Patch
	if !accept {
		patch = json.RawMessage(`{}`)
	}
	out := eventOutcome{patch: patch, apprRequired: true, approved: accept, approvers: []Signature{sig}}
	if err := n.appendEvent(ctx, subj, req, out); err != nil {
		return nil, err
	}
	if accept {
		a.State = ApprovalAccepted
	} else {
		a.State = ApprovalRejected
	}
	if err := n.store.putApproval(ctx, a); err != nil {
		return nil, err
	}
	if err := n.store.putRequest(ctx, req); err != nil {
		return nil, err
	}

	n.emit(Notification{Kind: NotifyNewEvent, SubjectID: subj.SubjectID, SN: subj.SN})
	if accept {
		n.emit(Notification{Kind: NotifyStateUpdated, SubjectID: subj.SubjectID, SN: subj.SN})
	}
	if err := n.obsoleteApprovals(ctx, subj); err != nil {
		return nil, err
	}
	return a, nil
}

func (n *Node) markObsolete(ctx context.Context, a *Approval, req *Request) error {
	a.State = ApprovalObsolete
	if err := n.store.putApproval(ctx, a); err != nil {
		return err
	}
	if req != nil {
		req.State = RequestError
		req.Success = false
		req.Error = "approval obsoleted: subject advanced"
		if err := n.store.putRequest(ctx, req); err != nil {
			return err
		}
	}
	n.emit(Notification{Kind: NotifyApprovalObsoleted, SubjectID: a.SubjectID, SN: a.Request.Content.SN, ApprovalID: a.ID})
	return nil
}

// obsoleteApprovals retires pending approvals built on an older state of subj.
func (n *Node) obsoleteApprovals(ctx context.Context, subj *Subject) error {
	tuples, err := storage.Collect(n.store.approvals.Scan(ctx, false, ""))
	if err != nil {
		return storageFailure("scan approvals", err)
	}
	for _, t := range tuples {
		var a Approval
		if err := json.Unmarshal(t.Value, &a); err != nil {
			return storageFailure("decode approval", err)
		}
		if a.State != ApprovalPending || a.SubjectID != subj.SubjectID {
			continue
		}
		if subj.Active && a.Request.Content.HashPrevEvent == subj.LastEvent {
			continue
		}
		req, err := n.store.request(ctx, a.RequestID)
		if err != nil && !IsNotFound(err) {
			return err
		}
		if err := n.markObsolete(ctx, &a, req); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) activeSubject(ctx context.Context, subjectID id.DigestID) (*Subject, error) {
	subj, err := n.store.subject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !subj.Active {
		return nil, newError(CodeSubjectInactive, subjectID.String(), "subject has reached end of life")
	}
	return subj, nil
}

func (n *Node) ownedSubject(ctx context.Context, req *Request, subjectID id.DigestID) (*Subject, error) {
	subj, err := n.activeSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	req.SubjectID = subj.SubjectID
	if req.EventRequest.Signature.Signer != subj.Owner {
		return nil, newError(CodeNotAllowed, subjectID.String(), "only the owner can %s a subject", req.EventRequest.Content.Kind)
	}
	return subj, nil
}

// governance loads an active governance subject and its decoded properties.
func (n *Node) governance(ctx context.Context, govID id.DigestID) (*Subject, *Governance, error) {
	if govID.IsZero() {
		return nil, nil, newError(CodeInvalidRequest, "", "governance id is required")
	}
	gov, err := n.store.subject(ctx, govID)
	if err != nil {
		return nil, nil, err
	}
	if !gov.IsGovernance() {
		return nil, nil, newError(CodeInvalidRequest, govID.String(), "subject is not a governance")
	}
	if !gov.Active {
		return nil, nil, newError(CodeSubjectInactive, govID.String(), "governance has reached end of life")
	}
	g, err := ParseGovernance(gov.Properties)
	if err != nil {
		return nil, nil, &Error{Code: CodeSchemaViolation, SubjectID: govID.String(), Message: "invalid governance", Err: err}
	}
	return gov, g, nil
}

func (n *Node) validateState(ctx context.Context, subj *Subject, state json.RawMessage) error {
	if subj.IsGovernance() {
		return n.validator.ValidateGovernance(state)
	}
	_, g, err := n.governance(ctx, subj.GovernanceID)
	if err != nil {
		return err
	}
	def, ok := g.Schema(subj.SchemaID)
	if !ok {
		return newError(CodeSchemaViolation, subj.SubjectID.String(), "schema %q no longer defined by governance", subj.SchemaID)
	}
	return n.validator.Validate(def.CUESource(), state)
}

func (n *Node) governanceVersion(ctx context.Context, subj *Subject) (uint64, error) {
	if subj.IsGovernance() {
		return subj.SN, nil
	}
	gov, err := n.store.subject(ctx, subj.GovernanceID)
	if err != nil {
		return 0, err
	}
	return gov.SN, nil
}
