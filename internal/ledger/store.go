package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/storage"
)

// Collection names used by the engine.
const (
	CollectionSubject       = "subject"
	CollectionEvent         = "event"
	CollectionRequest       = "request"
	CollectionApproval      = "approval"
	CollectionPreauthorized = "preauthorized"
	CollectionKeys          = "keys"
)

// store is the engine's typed view over its collections. Values are JSON.
type store struct {
	subjects  *storage.Collection
	events    *storage.Collection
	requests  *storage.Collection
	approvals *storage.Collection
	preauth   *storage.Collection
	keys      *storage.Collection
}

func openStore(m *storage.Manager) (*store, error) {
	s := &store{}
	for name, dst := range map[string]**storage.Collection{
		CollectionSubject:       &s.subjects,
		CollectionEvent:         &s.events,
		CollectionRequest:       &s.requests,
		CollectionApproval:      &s.approvals,
		CollectionPreauthorized: &s.preauth,
		CollectionKeys:          &s.keys,
	} {
		c, err := m.Collection(name)
		if err != nil {
			return nil, fmt.Errorf("open collection %s: %w", name, err)
		}
		*dst = c
	}
	return s, nil
}

// eventKey orders events of one subject by sn.
func eventKey(subject id.DigestID, sn uint64) string {
	return fmt.Sprintf("%s/%020d", subject, sn)
}

func getJSON[T any](ctx context.Context, c *storage.Collection, what, key string) (*T, error) {
	raw, err := c.Get(ctx, key)
	if errors.Is(err, storage.ErrEntryNotFound) {
		return nil, notFound(what, key)
	}
	if err != nil {
		return nil, storageFailure("get "+what, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, storageFailure("decode "+what, err)
	}
	return &v, nil
}

func putJSON(ctx context.Context, c *storage.Collection, what, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", what, err)
	}
	if err := c.Put(ctx, key, raw); err != nil {
		return storageFailure("put "+what, err)
	}
	return nil
}

// Page selects a window of a listing. From is the first key included;
// a negative Quantity walks backwards; zero means no limit.
type Page struct {
	From     string
	Quantity int64
}

// scanJSON decodes the tuples of a scan window, keeping those accepted by keep.
func scanJSON[T any](ctx context.Context, c *storage.Collection, what, prefix string, page Page, keep func(*T) bool) ([]T, error) {
	reverse := page.Quantity < 0
	limit := page.Quantity
	if reverse {
		limit = -limit
	}

	var out []T
	for t, err := range c.Scan(ctx, reverse, prefix) {
		if err != nil {
			return nil, storageFailure("scan "+what, err)
		}
		if page.From != "" {
			if !reverse && t.Key < page.From {
				continue
			}
			if reverse && t.Key > page.From {
				continue
			}
		}
		var v T
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return nil, storageFailure("decode "+what, err)
		}
		if keep != nil && !keep(&v) {
			continue
		}
		out = append(out, v)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *store) subject(ctx context.Context, subjectID id.DigestID) (*Subject, error) {
	return getJSON[Subject](ctx, s.subjects, "subject", subjectID.String())
}

func (s *store) putSubject(ctx context.Context, subj *Subject) error {
	return putJSON(ctx, s.subjects, "subject", subj.SubjectID.String(), subj)
}

func (s *store) event(ctx context.Context, subjectID id.DigestID, sn uint64) (*SignedEvent, error) {
	return getJSON[SignedEvent](ctx, s.events, "event", eventKey(subjectID, sn))
}

func (s *store) putEvent(ctx context.Context, ev *SignedEvent) error {
	return putJSON(ctx, s.events, "event", eventKey(ev.Content.SubjectID, ev.Content.SN), ev)
}

func (s *store) request(ctx context.Context, requestID id.DigestID) (*Request, error) {
	return getJSON[Request](ctx, s.requests, "request", requestID.String())
}

func (s *store) putRequest(ctx context.Context, req *Request) error {
	return putJSON(ctx, s.requests, "request", req.ID.String(), req)
}

func (s *store) approval(ctx context.Context, approvalID id.DigestID) (*Approval, error) {
	return getJSON[Approval](ctx, s.approvals, "approval", approvalID.String())
}

func (s *store) putApproval(ctx context.Context, a *Approval) error {
	return putJSON(ctx, s.approvals, "approval", a.ID.String(), a)
}

// namespaceMatches treats namespaces as dot-separated paths; "" matches all.
func namespaceMatches(namespace, filter string) bool {
	return filter == "" || namespace == filter || strings.HasPrefix(namespace, filter+".")
}
