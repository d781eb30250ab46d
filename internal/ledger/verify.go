package ledger

import (
	"context"

	"github.com/roach88/ledgerbridge/internal/id"
)

// ChainReport describes a verified event chain.
type ChainReport struct {
	SubjectID id.DigestID `json:"subject_id"`
	Events    uint64      `json:"events"`
	Head      id.DigestID `json:"head"`
}

// VerifyChain walks every event of a subject from sn 0 and checks that
// each one is signed over its content, sits at the expected sn and links
// to the digest of its predecessor. The last digest must match the
// subject's recorded head.
func (a *API) VerifyChain(ctx context.Context, subjectID id.DigestID) (*ChainReport, error) {
	return submit(ctx, a.node, "verify_chain", func(ctx context.Context) (*ChainReport, error) {
		subj, err := a.node.store.subject(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		sid := subjectID.String()

		var prev id.DigestID
		for sn := uint64(0); sn <= subj.SN; sn++ {
			ev, err := a.node.store.event(ctx, subjectID, sn)
			if err != nil {
				return nil, err
			}
			if ev.Content.SN != sn || ev.Content.SubjectID != subjectID {
				return nil, newError(CodeBrokenChain, sid, "event %d is stored out of place", sn)
			}
			if ev.Content.HashPrevEvent != prev {
				return nil, newError(CodeBrokenChain, sid, "event %d does not link to its predecessor", sn)
			}
			if err := VerifySignature(ev.Signature, ev.Content); err != nil {
				return nil, &Error{Code: CodeBrokenChain, SubjectID: sid, Message: "event signature", Err: err}
			}
			prev, err = id.DeriveCanonical(a.node.cfg.Digest, ev)
			if err != nil {
				return nil, &Error{Code: CodeInvalidRequest, SubjectID: sid, Message: "hash event", Err: err}
			}
		}
		if prev != subj.LastEvent {
			return nil, newError(CodeBrokenChain, sid, "head %s does not match last event", subj.LastEvent)
		}
		return &ChainReport{SubjectID: subjectID, Events: subj.SN + 1, Head: prev}, nil
	})
}
