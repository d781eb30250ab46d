package bridge

import (
	"fmt"

	"github.com/roach88/ledgerbridge/internal/ledger"
)

// Notification kinds.
const (
	NotificationNewSubject         = string(ledger.NotifyNewSubject)
	NotificationNewEvent           = string(ledger.NotifyNewEvent)
	NotificationStateUpdated       = string(ledger.NotifyStateUpdated)
	NotificationApprovalReceived   = string(ledger.NotifyApprovalReceived)
	NotificationApprovalObsoleted  = string(ledger.NotifyApprovalObsoleted)
	NotificationUnrecoverableError = string(ledger.NotifyUnrecoverableError)
)

// Notification is an engine notification with string identifiers.
type Notification struct {
	Seq        int64  `json:"seq" yaml:"seq"`
	Kind       string `json:"kind" yaml:"kind"`
	SubjectID  string `json:"subject_id,omitempty" yaml:"subject_id,omitempty"`
	SN         uint64 `json:"sn" yaml:"sn"`
	ApprovalID string `json:"approval_id,omitempty" yaml:"approval_id,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

func EncodeNotification(n ledger.Notification) Notification {
	return Notification{
		Seq:        n.Seq,
		Kind:       string(n.Kind),
		SubjectID:  n.SubjectID.String(),
		SN:         n.SN,
		ApprovalID: n.ApprovalID.String(),
		Error:      n.Error,
	}
}

func (n Notification) String() string {
	switch n.Kind {
	case NotificationNewSubject:
		return fmt.Sprintf("%s subject=%s", n.Kind, n.SubjectID)
	case NotificationApprovalReceived, NotificationApprovalObsoleted:
		return fmt.Sprintf("%s approval=%s subject=%s sn=%d", n.Kind, n.ApprovalID, n.SubjectID, n.SN)
	case NotificationUnrecoverableError:
		return fmt.Sprintf("%s error=%q", n.Kind, n.Error)
	default:
		return fmt.Sprintf("%s subject=%s sn=%d", n.Kind, n.SubjectID, n.SN)
	}
}
