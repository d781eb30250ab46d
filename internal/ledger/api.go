package ledger

import (
	"context"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

// API is the engine's query and request surface. Every method runs on the
// engine loop and blocks until it has been processed. API values stay
// usable for as long as the loop runs, independent of who consumes the
// notification stream.
type API struct {
	node *Node
}

// ExternalRequest submits a signed event request and returns its id.
func (a *API) ExternalRequest(ctx context.Context, req SignedEventRequest) (id.DigestID, error) {
	return submit(ctx, a.node, "external_request", func(ctx context.Context) (id.DigestID, error) {
		return a.node.externalRequest(ctx, req)
	})
}

func (a *API) GetRequest(ctx context.Context, requestID id.DigestID) (*Request, error) {
	return submit(ctx, a.node, "get_request", func(ctx context.Context) (*Request, error) {
		return a.node.store.request(ctx, requestID)
	})
}

func (a *API) GetSubject(ctx context.Context, subjectID id.DigestID) (*Subject, error) {
	return submit(ctx, a.node, "get_subject", func(ctx context.Context) (*Subject, error) {
		return a.node.store.subject(ctx, subjectID)
	})
}

// GetSubjects lists subjects whose namespace is namespace or nested under it.
// page.From is a subject id.
func (a *API) GetSubjects(ctx context.Context, namespace string, page Page) ([]Subject, error) {
	return submit(ctx, a.node, "get_subjects", func(ctx context.Context) ([]Subject, error) {
		return scanJSON(ctx, a.node.store.subjects, "subject", "", page, func(s *Subject) bool {
			return namespaceMatches(s.Namespace, namespace)
		})
	})
}

// GetGovernances lists governance subjects, filtered like GetSubjects.
func (a *API) GetGovernances(ctx context.Context, namespace string, page Page) ([]Subject, error) {
	return submit(ctx, a.node, "get_governances", func(ctx context.Context) ([]Subject, error) {
		return scanJSON(ctx, a.node.store.subjects, "subject", "", page, func(s *Subject) bool {
			return s.IsGovernance() && namespaceMatches(s.Namespace, namespace)
		})
	})
}

func (a *API) GetSubjectsByGovernance(ctx context.Context, governanceID id.DigestID, page Page) ([]Subject, error) {
	return submit(ctx, a.node, "get_subjects_by_governance", func(ctx context.Context) ([]Subject, error) {
		return scanJSON(ctx, a.node.store.subjects, "subject", "", page, func(s *Subject) bool {
			return s.GovernanceID == governanceID
		})
	})
}

// GetEvents lists events of a subject by sn. A nil from starts at the first
// event (or the last, when quantity is negative); a negative from counts
// back from the latest event, so -1 is the latest.
func (a *API) GetEvents(ctx context.Context, subjectID id.DigestID, from *int64, quantity int64) ([]SignedEvent, error) {
	return submit(ctx, a.node, "get_events", func(ctx context.Context) ([]SignedEvent, error) {
		subj, err := a.node.store.subject(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		page := Page{Quantity: quantity}
		if from != nil {
			sn := *from
			if sn < 0 {
				sn += int64(subj.SN) + 1
			}
			if sn < 0 {
				sn = 0
			}
			page.From = eventKey(subjectID, uint64(sn))
		}
		return scanJSON[SignedEvent](ctx, a.node.store.events, "event", subjectID.String()+"/", page, nil)
	})
}

func (a *API) GetEvent(ctx context.Context, subjectID id.DigestID, sn uint64) (*SignedEvent, error) {
	return submit(ctx, a.node, "get_event", func(ctx context.Context) (*SignedEvent, error) {
		return a.node.store.event(ctx, subjectID, sn)
	})
}

// AddPreauthorizeSubject records the providers allowed to supply a subject.
func (a *API) AddPreauthorizeSubject(ctx context.Context, subjectID id.DigestID, providers []id.KeyID) error {
	_, err := submit(ctx, a.node, "add_preauthorize_subject", func(ctx context.Context) (struct{}, error) {
		if subjectID.IsZero() {
			return struct{}{}, newError(CodeInvalidRequest, "", "subject id is required")
		}
		if providers == nil {
			providers = []id.KeyID{}
		}
		sp := SubjectProviders{SubjectID: subjectID, Providers: providers}
		return struct{}{}, putJSON(ctx, a.node.store.preauth, "preauthorized subject", subjectID.String(), sp)
	})
	return err
}

func (a *API) GetAllowedSubjectsAndProviders(ctx context.Context, page Page) ([]SubjectProviders, error) {
	return submit(ctx, a.node, "get_allowed_subjects", func(ctx context.Context) ([]SubjectProviders, error) {
		return scanJSON[SubjectProviders](ctx, a.node.store.preauth, "preauthorized subject", "", page, nil)
	})
}

type storedKey struct {
	Alg    string `json:"alg"`
	Secret string `json:"secret"`
}

// AddKeys generates a key pair, stores it and returns its public key.
func (a *API) AddKeys(ctx context.Context, alg id.KeyAlg) (id.KeyID, error) {
	return submit(ctx, a.node, "add_keys", func(ctx context.Context) (id.KeyID, error) {
		kp, err := keys.Generate(alg)
		if err != nil {
			return id.KeyID{}, &Error{Code: CodeInvalidRequest, Message: "generate keys", Err: err}
		}
		rec := storedKey{Alg: alg.String(), Secret: kp.SecretHex()}
		if err := putJSON(ctx, a.node.store.keys, "keys", kp.Public().String(), rec); err != nil {
			return id.KeyID{}, err
		}
		return kp.Public(), nil
	})
}

// KeyPair loads a key pair stored by AddKeys.
func (a *API) KeyPair(ctx context.Context, public id.KeyID) (keys.KeyPair, error) {
	return submit(ctx, a.node, "get_keys", func(ctx context.Context) (keys.KeyPair, error) {
		rec, err := getJSON[storedKey](ctx, a.node.store.keys, "keys", public.String())
		if err != nil {
			return nil, err
		}
		kp, err := keys.FromSecretHex(public.Alg(), rec.Secret)
		if err != nil {
			return nil, storageFailure("decode keys", err)
		}
		return kp, nil
	})
}

// GetValidationProof returns the proof for the subject's latest event and
// the node's signature over it.
func (a *API) GetValidationProof(ctx context.Context, subjectID id.DigestID) (*ValidationProof, []Signature, error) {
	type result struct {
		proof *ValidationProof
		sigs  []Signature
	}
	r, err := submit(ctx, a.node, "get_validation_proof", func(ctx context.Context) (result, error) {
		subj, err := a.node.store.subject(ctx, subjectID)
		if err != nil {
			return result{}, err
		}
		ev, err := a.node.store.event(ctx, subjectID, subj.SN)
		if err != nil {
			return result{}, err
		}
		govVersion, err := a.node.governanceVersion(ctx, subj)
		if err != nil {
			return result{}, err
		}
		proof := &ValidationProof{
			SubjectID:                subj.SubjectID,
			SchemaID:                 subj.SchemaID,
			Namespace:                subj.Namespace,
			Name:                     subj.Name,
			SubjectPublicKey:         subj.PublicKey,
			GovernanceID:             subj.GovernanceID,
			GenesisGovernanceVersion: subj.GenesisGovVersion,
			SN:                       subj.SN,
			PrevEventHash:            ev.Content.HashPrevEvent,
			EventHash:                subj.LastEvent,
			GovernanceVersion:        govVersion,
		}
		sig, err := Sign(a.node.cfg.Keys, a.node.cfg.Digest, a.node.cfg.Now(), proof)
		if err != nil {
			return result{}, &Error{Code: CodeInvalidSignature, Message: "sign validation proof", Err: err}
		}
		return result{proof: proof, sigs: []Signature{sig}}, nil
	})
	return r.proof, r.sigs, err
}

// GetPendingApprovals lists approvals still waiting for a decision.
func (a *API) GetPendingApprovals(ctx context.Context, page Page) ([]Approval, error) {
	return submit(ctx, a.node, "get_pending_approvals", func(ctx context.Context) ([]Approval, error) {
		return scanJSON(ctx, a.node.store.approvals, "approval", "", page, func(ap *Approval) bool {
			return ap.State == ApprovalPending
		})
	})
}

func (a *API) GetApproval(ctx context.Context, approvalID id.DigestID) (*Approval, error) {
	return submit(ctx, a.node, "get_approval", func(ctx context.Context) (*Approval, error) {
		return a.node.store.approval(ctx, approvalID)
	})
}

// ApprovalRequest accepts or rejects a pending approval on behalf of the
// node.
func (a *API) ApprovalRequest(ctx context.Context, approvalID id.DigestID, accept bool) (*Approval, error) {
	return submit(ctx, a.node, "approval_request", func(ctx context.Context) (*Approval, error) {
		ap, err := a.node.respondApproval(ctx, approvalID, accept)
		if err != nil && CodeOf(err) == CodeStorage {
			return nil, a.node.unrecoverable(err)
		}
		return ap, err
	})
}
