package ledger

import (
	"context"

	"github.com/roach88/ledgerbridge/internal/id"
)

// NotificationKind names an engine event a caller can observe.
type NotificationKind string

const (
	NotifyNewSubject         NotificationKind = "new_subject"
	NotifyNewEvent           NotificationKind = "new_event"
	NotifyStateUpdated       NotificationKind = "state_updated"
	NotifyApprovalReceived   NotificationKind = "approval_received"
	NotifyApprovalObsoleted  NotificationKind = "approval_obsoleted"
	NotifyUnrecoverableError NotificationKind = "unrecoverable_error"
)

// Notification is emitted by the engine loop in the order events happen.
// Seq is strictly increasing per engine.
type Notification struct {
	Seq        int64            `json:"seq"`
	Kind       NotificationKind `json:"kind"`
	SubjectID  id.DigestID      `json:"subject_id,omitzero"`
	SN         uint64           `json:"sn"`
	ApprovalID id.DigestID      `json:"approval_id,omitzero"`
	Error      string           `json:"error,omitempty"`
}

// Next blocks until the next notification is available.
// It returns ErrStreamClosed once the engine has stopped and the stream is
// drained, or ctx.Err() if ctx ends first.
func (n *Node) Next(ctx context.Context) (Notification, error) {
	for {
		if note, ok := n.notifications.TryDequeue(); ok {
			return note, nil
		}
		if n.notifications.Drained() {
			return Notification{}, ErrStreamClosed
		}
		select {
		case <-ctx.Done():
			return Notification{}, ctx.Err()
		case <-n.notifications.Wait():
		}
	}
}

// emit is only called from the loop goroutine.
func (n *Node) emit(note Notification) {
	note.Seq = n.clock.Next()
	if !n.notifications.Enqueue(note) {
		n.logger.Warn("notification dropped after stream closed", "kind", note.Kind)
		return
	}
	n.logger.Debug("notification emitted", "seq", note.Seq, "kind", note.Kind, "subject", note.SubjectID.String(), "sn", note.SN)
}
