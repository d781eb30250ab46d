package bridge

import (
	"sync"

	"github.com/roach88/ledgerbridge/internal/ledger"
)

// Subject is a caller-side handle on one subject. Its snapshot is loaded
// lazily: a handle returned by SubjectBuilder.Build only knows its request
// id until Refresh finds the finished request.
//
// Thread-safety: safe for concurrent use.
type Subject struct {
	api       *API
	requestID string

	mu   sync.RWMutex
	data *SubjectData
}

func newSubject(api *API, data *SubjectData, requestID string) *Subject {
	return &Subject{api: api, data: data, requestID: requestID}
}

// Data returns the current snapshot, or false if it is not known yet.
func (s *Subject) Data() (SubjectData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return SubjectData{}, false
	}
	return *s.data, true
}

// SubjectID returns "" until the snapshot is known.
func (s *Subject) SubjectID() string {
	d, _ := s.Data()
	return d.SubjectID
}

// RequestID is the id of the create request, for handles built locally.
func (s *Subject) RequestID() string {
	return s.requestID
}

// Refresh reloads the snapshot when the engine holds a newer sn. For a
// handle still waiting on its create request it resolves the subject once
// the request has finished.
func (s *Subject) Refresh() error {
	current, known := s.Data()
	if !known {
		return s.resolve()
	}

	fresh, err := s.api.subjectData(current.SubjectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil || s.data.SN < fresh.SN || s.data.Active != fresh.Active {
		s.data = &fresh
	}
	return nil
}

func (s *Subject) resolve() error {
	if s.requestID == "" {
		return Errorf(KindNotFound, "subject has neither data nor request")
	}
	req, err := s.api.GetRequest(s.requestID)
	if err != nil {
		return err
	}
	switch ledger.RequestState(req.State) {
	case ledger.RequestProcessing:
		return nil
	case ledger.RequestError:
		return Errorf(KindExecutionError, "create request failed: %s", req.Error)
	}
	if req.SubjectID == "" {
		return Errorf(KindNotFound, "request %s has no subject", s.requestID)
	}
	fresh, err := s.api.subjectData(req.SubjectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = &fresh
	s.mu.Unlock()
	return nil
}

func (s *Subject) knownID() (string, error) {
	id := s.SubjectID()
	if id == "" {
		return "", Errorf(KindNotFound, "subject data not loaded")
	}
	return id, nil
}

// NewFactEvent submits a fact signed by the node key and returns the
// request id. payload must be a JSON object.
func (s *Subject) NewFactEvent(payload string) (string, error) {
	sid, err := s.knownID()
	if err != nil {
		return "", err
	}
	content, err := decodeEventRequest(EventRequest{Kind: RequestFact, Fact: &FactRequest{SubjectID: sid, Payload: payload}})
	if err != nil {
		return "", err
	}
	return s.api.submit(content)
}

// EndLifeCycle submits an eol request signed by the node key.
func (s *Subject) EndLifeCycle() (string, error) {
	sid, err := s.knownID()
	if err != nil {
		return "", err
	}
	content, err := decodeEventRequest(EventRequest{Kind: RequestEOL, EOL: &EOLRequest{SubjectID: sid}})
	if err != nil {
		return "", err
	}
	return s.api.submit(content)
}

// Transfer hands the subject to publicKey.
func (s *Subject) Transfer(publicKey string) (string, error) {
	sid, err := s.knownID()
	if err != nil {
		return "", err
	}
	content, err := decodeEventRequest(EventRequest{Kind: RequestTransfer, Transfer: &TransferRequest{SubjectID: sid, PublicKey: publicKey}})
	if err != nil {
		return "", err
	}
	return s.api.submit(content)
}

// ExternalInvocation submits a request signed elsewhere.
func (s *Subject) ExternalInvocation(req SignedEventRequest) (string, error) {
	return s.api.ExternalRequest(req)
}

// ToGovernance returns a governance view of the subject.
func (s *Subject) ToGovernance() (*Governance, error) {
	return NewGovernance(s)
}
