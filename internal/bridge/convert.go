package bridge

import (
	"encoding/json"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/ledger"
)

// Decoding: caller strings to engine values. Every failure is a
// MalformedIdentifier or Deserialization error naming the field.

func decodeDigest(field, s string) (id.DigestID, error) {
	d, err := id.ParseDigestID(s)
	if err != nil {
		return id.DigestID{}, Errorf(KindMalformedIdentifier, "%s: %v", field, err)
	}
	return d, nil
}

// decodeOptionalDigest maps "" to the zero id.
func decodeOptionalDigest(field, s string) (id.DigestID, error) {
	if s == "" {
		return id.DigestID{}, nil
	}
	return decodeDigest(field, s)
}

func decodeKey(field, s string) (id.KeyID, error) {
	k, err := id.ParseKeyID(s)
	if err != nil {
		return id.KeyID{}, Errorf(KindMalformedIdentifier, "%s: %v", field, err)
	}
	return k, nil
}

func decodeJSONText(field, s string) (json.RawMessage, error) {
	if !json.Valid([]byte(s)) {
		return nil, Errorf(KindDeserialization, "%s is not valid JSON", field)
	}
	return json.RawMessage(s), nil
}

func decodeSignature(s Signature) (ledger.Signature, error) {
	signer, err := decodeKey("signature.signer", s.Signer)
	if err != nil {
		return ledger.Signature{}, err
	}
	value, err := id.ParseSignatureID(s.Value)
	if err != nil {
		return ledger.Signature{}, Errorf(KindMalformedIdentifier, "signature.value: %v", err)
	}
	hash, err := decodeDigest("signature.content_hash", s.ContentHash)
	if err != nil {
		return ledger.Signature{}, err
	}
	return ledger.Signature{Signer: signer, Timestamp: s.Timestamp, Value: value, ContentHash: hash}, nil
}

func decodeEventRequest(r EventRequest) (ledger.EventRequest, error) {
	out := ledger.EventRequest{Kind: ledger.RequestKind(r.Kind)}
	var err error
	switch r.Kind {
	case RequestCreate:
		if r.Create == nil {
			return out, Errorf(KindDeserialization, "create request without create payload")
		}
		c := &ledger.CreateRequest{SchemaID: r.Create.SchemaID, Namespace: r.Create.Namespace, Name: r.Create.Name}
		if c.GovernanceID, err = decodeOptionalDigest("governance_id", r.Create.GovernanceID); err != nil {
			return out, err
		}
		if c.PublicKey, err = decodeKey("public_key", r.Create.PublicKey); err != nil {
			return out, err
		}
		out.Create = c
	case RequestFact:
		if r.Fact == nil {
			return out, Errorf(KindDeserialization, "fact request without fact payload")
		}
		f := &ledger.FactRequest{}
		if f.SubjectID, err = decodeDigest("subject_id", r.Fact.SubjectID); err != nil {
			return out, err
		}
		if f.Payload, err = decodeJSONText("payload", r.Fact.Payload); err != nil {
			return out, err
		}
		out.Fact = f
	case RequestTransfer:
		if r.Transfer == nil {
			return out, Errorf(KindDeserialization, "transfer request without transfer payload")
		}
		t := &ledger.TransferRequest{}
		if t.SubjectID, err = decodeDigest("subject_id", r.Transfer.SubjectID); err != nil {
			return out, err
		}
		if t.PublicKey, err = decodeKey("public_key", r.Transfer.PublicKey); err != nil {
			return out, err
		}
		out.Transfer = t
	case RequestEOL:
		if r.EOL == nil {
			return out, Errorf(KindDeserialization, "eol request without eol payload")
		}
		e := &ledger.EOLRequest{}
		if e.SubjectID, err = decodeDigest("subject_id", r.EOL.SubjectID); err != nil {
			return out, err
		}
		out.EOL = e
	default:
		return out, Errorf(KindDeserialization, "unknown event request kind %q", r.Kind)
	}
	return out, nil
}

func decodeSignedEventRequest(r SignedEventRequest) (ledger.SignedEventRequest, error) {
	content, err := decodeEventRequest(r.Request)
	if err != nil {
		return ledger.SignedEventRequest{}, err
	}
	sig, err := decodeSignature(r.Signature)
	if err != nil {
		return ledger.SignedEventRequest{}, err
	}
	return ledger.SignedEventRequest{Content: content, Signature: sig}, nil
}

// Encoding: engine values to caller strings.

func encodeSignature(s ledger.Signature) Signature {
	return Signature{
		Signer:      s.Signer.String(),
		Timestamp:   s.Timestamp,
		Value:       s.Value.String(),
		ContentHash: s.ContentHash.String(),
	}
}

func encodeSignatures(sigs []ledger.Signature) []Signature {
	out := make([]Signature, len(sigs))
	for i, s := range sigs {
		out[i] = encodeSignature(s)
	}
	return out
}

func encodeEventRequest(r ledger.EventRequest) EventRequest {
	out := EventRequest{Kind: string(r.Kind)}
	switch {
	case r.Create != nil:
		out.Create = &CreateRequest{
			GovernanceID: r.Create.GovernanceID.String(),
			SchemaID:     r.Create.SchemaID,
			Namespace:    r.Create.Namespace,
			Name:         r.Create.Name,
			PublicKey:    r.Create.PublicKey.String(),
		}
	case r.Fact != nil:
		out.Fact = &FactRequest{SubjectID: r.Fact.SubjectID.String(), Payload: string(r.Fact.Payload)}
	case r.Transfer != nil:
		out.Transfer = &TransferRequest{SubjectID: r.Transfer.SubjectID.String(), PublicKey: r.Transfer.PublicKey.String()}
	case r.EOL != nil:
		out.EOL = &EOLRequest{SubjectID: r.EOL.SubjectID.String()}
	}
	return out
}

func encodeSignedEventRequest(r ledger.SignedEventRequest) SignedEventRequest {
	return SignedEventRequest{Request: encodeEventRequest(r.Content), Signature: encodeSignature(r.Signature)}
}

func encodeRequest(r *ledger.Request) Request {
	return Request{
		ID:           r.ID.String(),
		SubjectID:    r.SubjectID.String(),
		SN:           r.SN,
		EventRequest: encodeSignedEventRequest(r.EventRequest),
		State:        string(r.State),
		Success:      r.Success,
		Error:        r.Error,
	}
}

func encodeSignedEvent(e *ledger.SignedEvent) SignedEvent {
	c := e.Content
	return SignedEvent{
		Event: Event{
			SubjectID:     c.SubjectID.String(),
			EventRequest:  encodeSignedEventRequest(c.EventRequest),
			SN:            c.SN,
			GovVersion:    c.GovVersion,
			Patch:         string(c.Patch),
			StateHash:     c.StateHash.String(),
			EvalSuccess:   c.EvalSuccess,
			ApprRequired:  c.ApprRequired,
			Approved:      c.Approved,
			HashPrevEvent: c.HashPrevEvent.String(),
			Evaluators:    encodeSignatures(c.Evaluators),
			Approvers:     encodeSignatures(c.Approvers),
		},
		Signature: encodeSignature(e.Signature),
	}
}

func encodeSubject(s *ledger.Subject) SubjectData {
	return SubjectData{
		SubjectID:    s.SubjectID.String(),
		GovernanceID: s.GovernanceID.String(),
		SN:           s.SN,
		PublicKey:    s.PublicKey.String(),
		Namespace:    s.Namespace,
		Name:         s.Name,
		SchemaID:     s.SchemaID,
		Owner:        s.Owner.String(),
		Creator:      s.Creator.String(),
		Properties:   string(s.Properties),
		Active:       s.Active,
	}
}

func encodeProof(p *ledger.ValidationProof) ValidationProof {
	return ValidationProof{
		SubjectID:                p.SubjectID.String(),
		SchemaID:                 p.SchemaID,
		Namespace:                p.Namespace,
		Name:                     p.Name,
		SubjectPublicKey:         p.SubjectPublicKey.String(),
		GovernanceID:             p.GovernanceID.String(),
		GenesisGovernanceVersion: p.GenesisGovernanceVersion,
		SN:                       p.SN,
		PrevEventHash:            p.PrevEventHash.String(),
		EventHash:                p.EventHash.String(),
		GovernanceVersion:        p.GovernanceVersion,
	}
}

func encodeApproval(a *ledger.Approval) Approval {
	ar := a.Request.Content
	out := Approval{
		ID:        a.ID.String(),
		SubjectID: a.SubjectID.String(),
		RequestID: a.RequestID.String(),
		Request: ApprovalRequest{
			EventRequest:  encodeSignedEventRequest(ar.EventRequest),
			SN:            ar.SN,
			GovVersion:    ar.GovVersion,
			Patch:         string(ar.Patch),
			StateHash:     ar.StateHash.String(),
			HashPrevEvent: ar.HashPrevEvent.String(),
			GovID:         ar.GovID.String(),
		},
		RequestSignature: encodeSignature(a.Request.Signature),
		State:            string(a.State),
	}
	if a.Response != nil {
		out.Response = &ApprovalResponse{
			ApprReqHash: a.Response.Content.ApprReqHash.String(),
			Approved:    a.Response.Content.Approved,
		}
		sig := encodeSignature(a.Response.Signature)
		out.ResponseSignature = &sig
	}
	return out
}

func encodeProviders(sp ledger.SubjectProviders) SubjectAndProviders {
	providers := make([]string, len(sp.Providers))
	for i, p := range sp.Providers {
		providers[i] = p.String()
	}
	return SubjectAndProviders{SubjectID: sp.SubjectID.String(), Providers: providers}
}

func encodeQuorum(q ledger.Quorum) Quorum {
	kind := q.Kind
	if kind == "" {
		kind = ledger.QuorumMajority
	}
	return Quorum{Kind: string(kind), Fixed: q.Fixed, Percentage: q.Percentage}
}

func encodePolicy(p ledger.Policy) Policy {
	return Policy{
		ID:       p.ID,
		Approve:  Validation{Quorum: encodeQuorum(p.Approve.Quorum)},
		Evaluate: Validation{Quorum: encodeQuorum(p.Evaluate.Quorum)},
		Validate: Validation{Quorum: encodeQuorum(p.Validate.Quorum)},
	}
}
