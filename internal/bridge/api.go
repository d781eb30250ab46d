package bridge

import (
	"context"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/runtime"
)

// Ledger is the engine query surface the facade drives. *ledger.API
// implements it.
type Ledger interface {
	ExternalRequest(ctx context.Context, req ledger.SignedEventRequest) (id.DigestID, error)
	GetRequest(ctx context.Context, requestID id.DigestID) (*ledger.Request, error)
	GetSubject(ctx context.Context, subjectID id.DigestID) (*ledger.Subject, error)
	GetSubjects(ctx context.Context, namespace string, page ledger.Page) ([]ledger.Subject, error)
	GetGovernances(ctx context.Context, namespace string, page ledger.Page) ([]ledger.Subject, error)
	GetSubjectsByGovernance(ctx context.Context, governanceID id.DigestID, page ledger.Page) ([]ledger.Subject, error)
	GetEvents(ctx context.Context, subjectID id.DigestID, from *int64, quantity int64) ([]ledger.SignedEvent, error)
	GetEvent(ctx context.Context, subjectID id.DigestID, sn uint64) (*ledger.SignedEvent, error)
	AddPreauthorizeSubject(ctx context.Context, subjectID id.DigestID, providers []id.KeyID) error
	GetAllowedSubjectsAndProviders(ctx context.Context, page ledger.Page) ([]ledger.SubjectProviders, error)
	AddKeys(ctx context.Context, alg id.KeyAlg) (id.KeyID, error)
	GetValidationProof(ctx context.Context, subjectID id.DigestID) (*ledger.ValidationProof, []ledger.Signature, error)
	GetPendingApprovals(ctx context.Context, page ledger.Page) ([]ledger.Approval, error)
	GetApproval(ctx context.Context, approvalID id.DigestID) (*ledger.Approval, error)
	ApprovalRequest(ctx context.Context, approvalID id.DigestID, accept bool) (*ledger.Approval, error)
	VerifyChain(ctx context.Context, subjectID id.DigestID) (*ledger.ChainReport, error)
}

// API is the string-in, string-out facade. It holds its own reference to
// the engine query surface, so it keeps working after the node's
// notification stream has been handed off.
//
// Thread-safety: safe for concurrent use; every call blocks only its
// caller.
type API struct {
	ledger Ledger
	rt     *runtime.Runtime
	keys   keys.KeyPair
	digest id.DigestAlg
	now    func() uint64
}

// NewAPI wires the facade. kp signs requests built by the facade and its
// helpers.
func NewAPI(l Ledger, rt *runtime.Runtime, kp keys.KeyPair, digest id.DigestAlg) *API {
	if digest == 0 {
		digest = id.Blake2b256
	}
	return &API{ledger: l, rt: rt, keys: kp, digest: digest, now: ledger.WallClock}
}

// call blocks on the runtime and maps the failure, if any.
func call[T any](a *API, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := runtime.Block(a.rt, op, fn)
	if err != nil {
		var zero T
		return zero, mapError(err)
	}
	return v, nil
}

func toPage(from string, quantity int64) (ledger.Page, error) {
	if from != "" {
		if _, err := decodeDigest("from", from); err != nil {
			return ledger.Page{}, err
		}
	}
	return ledger.Page{From: from, Quantity: quantity}, nil
}

func encodeSubjects(subjects []ledger.Subject) []SubjectData {
	out := make([]SubjectData, len(subjects))
	for i := range subjects {
		out[i] = encodeSubject(&subjects[i])
	}
	return out
}

func (a *API) GetRequest(requestID string) (Request, error) {
	rid, err := decodeDigest("request_id", requestID)
	if err != nil {
		return Request{}, err
	}
	return call(a, "get_request", func(ctx context.Context) (Request, error) {
		r, err := a.ledger.GetRequest(ctx, rid)
		if err != nil {
			return Request{}, err
		}
		return encodeRequest(r), nil
	})
}

// ExternalRequest submits a signed request and returns the request id.
func (a *API) ExternalRequest(req SignedEventRequest) (string, error) {
	signed, err := decodeSignedEventRequest(req)
	if err != nil {
		return "", err
	}
	return call(a, "external_request", func(ctx context.Context) (string, error) {
		rid, err := a.ledger.ExternalRequest(ctx, signed)
		if err != nil {
			return "", err
		}
		return rid.String(), nil
	})
}

// GetSubjects lists subjects under namespace. from is an inclusive subject
// id ("" starts at the beginning); a negative quantity lists backwards and
// zero lists everything.
func (a *API) GetSubjects(namespace, from string, quantity int64) ([]*Subject, error) {
	page, err := toPage(from, quantity)
	if err != nil {
		return nil, err
	}
	data, err := call(a, "get_subjects", func(ctx context.Context) ([]SubjectData, error) {
		subjects, err := a.ledger.GetSubjects(ctx, namespace, page)
		return encodeSubjects(subjects), err
	})
	return a.wrapSubjects(data), err
}

func (a *API) GetGovernances(namespace, from string, quantity int64) ([]*Subject, error) {
	page, err := toPage(from, quantity)
	if err != nil {
		return nil, err
	}
	data, err := call(a, "get_governances", func(ctx context.Context) ([]SubjectData, error) {
		subjects, err := a.ledger.GetGovernances(ctx, namespace, page)
		return encodeSubjects(subjects), err
	})
	return a.wrapSubjects(data), err
}

func (a *API) GetSubjectsByGovernance(governanceID, from string, quantity int64) ([]*Subject, error) {
	gid, err := decodeDigest("governance_id", governanceID)
	if err != nil {
		return nil, err
	}
	page, err := toPage(from, quantity)
	if err != nil {
		return nil, err
	}
	data, err := call(a, "get_subjects_by_governance", func(ctx context.Context) ([]SubjectData, error) {
		subjects, err := a.ledger.GetSubjectsByGovernance(ctx, gid, page)
		return encodeSubjects(subjects), err
	})
	return a.wrapSubjects(data), err
}

// GetEvents lists events by sn. A nil from starts at the first event; a
// negative from counts back from the latest.
func (a *API) GetEvents(subjectID string, from *int64, quantity int64) ([]SignedEvent, error) {
	sid, err := decodeDigest("subject_id", subjectID)
	if err != nil {
		return nil, err
	}
	return call(a, "get_events", func(ctx context.Context) ([]SignedEvent, error) {
		events, err := a.ledger.GetEvents(ctx, sid, from, quantity)
		if err != nil {
			return nil, err
		}
		out := make([]SignedEvent, len(events))
		for i := range events {
			out[i] = encodeSignedEvent(&events[i])
		}
		return out, nil
	})
}

func (a *API) GetEvent(subjectID string, sn uint64) (SignedEvent, error) {
	sid, err := decodeDigest("subject_id", subjectID)
	if err != nil {
		return SignedEvent{}, err
	}
	return call(a, "get_event", func(ctx context.Context) (SignedEvent, error) {
		ev, err := a.ledger.GetEvent(ctx, sid, sn)
		if err != nil {
			return SignedEvent{}, err
		}
		return encodeSignedEvent(ev), nil
	})
}

// VerifyChain checks the signatures and hash links of every event of a
// subject. A broken chain is reported as ExecutionError.
func (a *API) VerifyChain(subjectID string) (ChainReport, error) {
	sid, err := decodeDigest("subject_id", subjectID)
	if err != nil {
		return ChainReport{}, err
	}
	return call(a, "verify_chain", func(ctx context.Context) (ChainReport, error) {
		r, err := a.ledger.VerifyChain(ctx, sid)
		if err != nil {
			return ChainReport{}, err
		}
		return ChainReport{SubjectID: r.SubjectID.String(), Events: r.Events, Head: r.Head.String()}, nil
	})
}

func (a *API) GetSubject(subjectID string) (*Subject, error) {
	data, err := a.subjectData(subjectID)
	if err != nil {
		return nil, err
	}
	return newSubject(a, &data, ""), nil
}

func (a *API) subjectData(subjectID string) (SubjectData, error) {
	sid, err := decodeDigest("subject_id", subjectID)
	if err != nil {
		return SubjectData{}, err
	}
	return call(a, "get_subject", func(ctx context.Context) (SubjectData, error) {
		s, err := a.ledger.GetSubject(ctx, sid)
		if err != nil {
			return SubjectData{}, err
		}
		return encodeSubject(s), nil
	})
}

func (a *API) AddPreauthorizeSubject(subjectID string, providers []string) error {
	sid, err := decodeDigest("subject_id", subjectID)
	if err != nil {
		return err
	}
	keyIDs := make([]id.KeyID, 0, len(providers))
	seen := make(map[id.KeyID]bool, len(providers))
	for _, p := range providers {
		k, err := decodeKey("provider", p)
		if err != nil {
			return err
		}
		if !seen[k] {
			seen[k] = true
			keyIDs = append(keyIDs, k)
		}
	}
	_, err = call(a, "add_preauthorize_subject", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.ledger.AddPreauthorizeSubject(ctx, sid, keyIDs)
	})
	return err
}

func (a *API) GetAllowedSubjectsAndProviders(from string, quantity int64) ([]SubjectAndProviders, error) {
	page, err := toPage(from, quantity)
	if err != nil {
		return nil, err
	}
	return call(a, "get_allowed_subjects", func(ctx context.Context) ([]SubjectAndProviders, error) {
		list, err := a.ledger.GetAllowedSubjectsAndProviders(ctx, page)
		if err != nil {
			return nil, err
		}
		out := make([]SubjectAndProviders, len(list))
		for i, sp := range list {
			out[i] = encodeProviders(sp)
		}
		return out, nil
	})
}

// AddKeys generates and stores a key pair for derivator ("ed25519" or
// "secp256k1") and returns its public key.
func (a *API) AddKeys(derivator string) (string, error) {
	alg, err := id.ParseKeyAlg(derivator)
	if err != nil {
		return "", NewError(KindInvalidKeyDerivator, err)
	}
	return call(a, "add_keys", func(ctx context.Context) (string, error) {
		k, err := a.ledger.AddKeys(ctx, alg)
		if err != nil {
			return "", err
		}
		return k.String(), nil
	})
}

func (a *API) GetValidationProof(subjectID string) (ValidationProofAndSignatures, error) {
	sid, err := decodeDigest("subject_id", subjectID)
	if err != nil {
		return ValidationProofAndSignatures{}, err
	}
	return call(a, "get_validation_proof", func(ctx context.Context) (ValidationProofAndSignatures, error) {
		proof, sigs, err := a.ledger.GetValidationProof(ctx, sid)
		if err != nil {
			return ValidationProofAndSignatures{}, err
		}
		return ValidationProofAndSignatures{ValidationProof: encodeProof(proof), Signatures: encodeSignatures(sigs)}, nil
	})
}

// GetPendingApprovals lists approvals waiting for this node's decision.
// from is an inclusive approval id.
func (a *API) GetPendingApprovals(from string, quantity int64) ([]Approval, error) {
	page, err := toPage(from, quantity)
	if err != nil {
		return nil, err
	}
	return call(a, "get_pending_approvals", func(ctx context.Context) ([]Approval, error) {
		list, err := a.ledger.GetPendingApprovals(ctx, page)
		if err != nil {
			return nil, err
		}
		out := make([]Approval, len(list))
		for i := range list {
			out[i] = encodeApproval(&list[i])
		}
		return out, nil
	})
}

func (a *API) GetApproval(approvalID string) (Approval, error) {
	aid, err := decodeDigest("approval_id", approvalID)
	if err != nil {
		return Approval{}, err
	}
	return call(a, "get_approval", func(ctx context.Context) (Approval, error) {
		ap, err := a.ledger.GetApproval(ctx, aid)
		if err != nil {
			return Approval{}, err
		}
		return encodeApproval(ap), nil
	})
}

// ApprovalRequest accepts or rejects a pending approval.
func (a *API) ApprovalRequest(approvalID string, accept bool) (Approval, error) {
	aid, err := decodeDigest("approval_id", approvalID)
	if err != nil {
		return Approval{}, err
	}
	return call(a, "approval_request", func(ctx context.Context) (Approval, error) {
		ap, err := a.ledger.ApprovalRequest(ctx, aid, accept)
		if err != nil {
			return Approval{}, err
		}
		return encodeApproval(ap), nil
	})
}

// SignEventRequest signs req with the node key. It does not touch the
// engine.
func (a *API) SignEventRequest(req EventRequest) (Signature, error) {
	content, err := decodeEventRequest(req)
	if err != nil {
		return Signature{}, err
	}
	sig, err := a.sign(content)
	if err != nil {
		return Signature{}, err
	}
	return encodeSignature(sig), nil
}

// SignWith signs req with kp at the given timestamp, for callers that hold
// their own keys.
func SignWith(kp keys.KeyPair, digest id.DigestAlg, timestamp uint64, req EventRequest) (SignedEventRequest, error) {
	content, err := decodeEventRequest(req)
	if err != nil {
		return SignedEventRequest{}, err
	}
	if digest == 0 {
		digest = id.Blake2b256
	}
	sig, err := ledger.Sign(kp, digest, timestamp, content)
	if err != nil {
		return SignedEventRequest{}, NewError(KindSignatureFailed, err)
	}
	return SignedEventRequest{Request: encodeEventRequest(content), Signature: encodeSignature(sig)}, nil
}

func (a *API) sign(content ledger.EventRequest) (ledger.Signature, error) {
	sig, err := ledger.Sign(a.keys, a.digest, a.now(), content)
	if err != nil {
		return ledger.Signature{}, NewError(KindSignatureFailed, err)
	}
	return sig, nil
}

// submit signs content with the node key and submits it.
func (a *API) submit(content ledger.EventRequest) (string, error) {
	sig, err := a.sign(content)
	if err != nil {
		return "", err
	}
	signed := ledger.SignedEventRequest{Content: content, Signature: sig}
	return call(a, "external_request", func(ctx context.Context) (string, error) {
		rid, err := a.ledger.ExternalRequest(ctx, signed)
		if err != nil {
			return "", err
		}
		return rid.String(), nil
	})
}

// Controller returns the node's public key.
func (a *API) Controller() string {
	return a.keys.Public().String()
}

func (a *API) wrapSubjects(data []SubjectData) []*Subject {
	if data == nil {
		return nil
	}
	out := make([]*Subject, len(data))
	for i := range data {
		d := data[i]
		out[i] = newSubject(a, &d, "")
	}
	return out
}
