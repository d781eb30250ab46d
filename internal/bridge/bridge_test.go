package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/runtime"
	"github.com/roach88/ledgerbridge/internal/storage"
	"github.com/roach88/ledgerbridge/internal/storage/memory"
)

const sensorCUE = "temperature: number & >=-50 & <=60\nunit: \"C\" | \"F\"\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startAPI runs a real engine on a memory backend behind the facade.
func startAPI(t *testing.T) (*API, *ledger.Node) {
	t.Helper()

	kp, err := keys.Generate(id.Ed25519)
	require.NoError(t, err)

	logger := discardLogger()
	node, engineAPI, err := ledger.Start(context.Background(), ledger.Config{Keys: kp, Logger: logger},
		storage.NewManager(memory.New(), logger))
	require.NoError(t, err)

	rt := runtime.New(runtime.WithLogger(logger))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = node.Shutdown(ctx)
		rt.Close()
	})
	return NewAPI(engineAPI, rt, kp, id.Blake2b256), node
}

// stubLedger fails every call it overrides with err and counts calls.
// Methods it does not override panic through the nil interface.
type stubLedger struct {
	Ledger
	err   error
	calls int
}

func (s *stubLedger) GetSubject(ctx context.Context, subjectID id.DigestID) (*ledger.Subject, error) {
	s.calls++
	return nil, s.err
}

func (s *stubLedger) GetRequest(ctx context.Context, requestID id.DigestID) (*ledger.Request, error) {
	s.calls++
	return nil, s.err
}

func newStubAPI(t *testing.T, err error) (*API, *stubLedger) {
	t.Helper()
	kp, kerr := keys.Generate(id.Ed25519)
	require.NoError(t, kerr)
	rt := runtime.New(runtime.WithLogger(discardLogger()))
	t.Cleanup(rt.Close)
	stub := &stubLedger{err: err}
	return NewAPI(stub, rt, kp, id.Blake2b256), stub
}

const validDigest = "IungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0"

func TestMalformedIdentifierFailsBeforeEngine(t *testing.T) {
	api, stub := newStubAPI(t, nil)

	for _, bad := range []string{"", "nonsense", "I" + "!!!", validDigest + "A"} {
		_, err := api.GetSubject(bad)
		require.Error(t, err, bad)
		assert.True(t, IsKind(err, KindMalformedIdentifier), bad)
		assert.ErrorIs(t, err, ErrMalformedIdentifier)

		_, err = api.GetRequest(bad)
		assert.ErrorIs(t, err, ErrMalformedIdentifier)
	}
	assert.Zero(t, stub.calls, "the engine must not be called for malformed input")

	_, err := api.GetSubjects("", "bad-from", 0)
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
	err = api.AddPreauthorizeSubject(validDigest, []string{"not-a-key"})
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestEngineErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", &ledger.Error{Code: ledger.CodeNotFound, Message: "subject missing"}, KindNotFound},
		{"storage", &ledger.Error{Code: ledger.CodeStorage, Message: "put", Err: &storage.Error{Op: "put", Detail: "disk full"}}, KindStorageError},
		{"raw backend error", &storage.Error{Op: "get", Detail: "io"}, KindStorageError},
		{"engine stopped", ledger.ErrStopped, KindNodeUnavailable},
		{"malformed", id.ErrMalformed, KindMalformedIdentifier},
		{"signature", &ledger.Error{Code: ledger.CodeInvalidSignature, Message: "bad"}, KindExecutionError},
		{"anything else", errors.New("boom"), KindExecutionError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, stub := newStubAPI(t, tt.err)
			_, err := api.GetSubject(validDigest)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err, "the cause stays reachable")
			assert.Equal(t, 1, stub.calls, "no retries")
		})
	}
}

func TestErrorSentinels(t *testing.T) {
	err := Errorf(KindNotFound, "subject %s", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, "NotFound: subject x", err.Error())
	assert.Equal(t, "NodeUnavailable", ErrNodeUnavailable.Error())

	wrapped := NewError(KindExecutionError, errors.New("inner"))
	assert.Equal(t, "ExecutionError: inner", wrapped.Error())
	assert.False(t, errors.Is(ErrNotFound, err), "a detailed error is not a sentinel")
}

func TestClosedRuntimeIsNodeUnavailable(t *testing.T) {
	api, stub := newStubAPI(t, nil)
	api.rt.Close()

	_, err := api.GetSubject(validDigest)
	assert.ErrorIs(t, err, ErrNodeUnavailable)
	assert.Zero(t, stub.calls)
}

func TestAddKeysRejectsUnknownDerivator(t *testing.T) {
	api, _ := newStubAPI(t, nil)
	_, err := api.AddKeys("rsa")
	assert.ErrorIs(t, err, ErrInvalidKeyDerivator)
}

func TestDecodeEventRequest(t *testing.T) {
	_, err := decodeEventRequest(EventRequest{Kind: "mint"})
	assert.ErrorIs(t, err, ErrDeserialization)

	_, err = decodeEventRequest(EventRequest{Kind: RequestFact})
	assert.ErrorIs(t, err, ErrDeserialization)

	_, err = decodeEventRequest(EventRequest{Kind: RequestFact, Fact: &FactRequest{SubjectID: validDigest, Payload: "{nope"}})
	assert.ErrorIs(t, err, ErrDeserialization)

	_, err = decodeEventRequest(EventRequest{Kind: RequestEOL, EOL: &EOLRequest{SubjectID: "x"}})
	assert.ErrorIs(t, err, ErrMalformedIdentifier)

	kp, kerr := keys.Generate(id.Secp256k1)
	require.NoError(t, kerr)
	req := EventRequest{Kind: RequestCreate, Create: &CreateRequest{SchemaID: "governance", Name: "g", PublicKey: kp.Public().String()}}
	decoded, err := decodeEventRequest(req)
	require.NoError(t, err)
	assert.True(t, decoded.Create.GovernanceID.IsZero())
	assert.Equal(t, req, encodeEventRequest(decoded))
}

func TestFacadeEndToEnd(t *testing.T) {
	api, node := startAPI(t)
	builder := NewSubjectBuilder(api)

	gov, err := builder.WithNamespace("plant").WithName("gov").Build("", ledger.GovernanceSchemaID)
	require.NoError(t, err)
	govData, ok := gov.Data()
	require.True(t, ok)
	assert.Equal(t, uint64(0), govData.SN)
	assert.Equal(t, api.Controller(), govData.Owner)

	payload := `{"members":[{"id":"` + api.Controller() + `","name":"node"}],` +
		`"policies":[{"id":"sensor","approve":{"quorum":"MAJORITY"},"evaluate":{"quorum":{"FIXED":1}},"validate":{"quorum":{"PERCENTAGE":0.5}}}],` +
		`"schemas":[{"id":"sensor","schema":` + strconv.Quote(sensorCUE) + `,"initial_value":{"temperature":20,"unit":"C"}}]}`
	reqID, err := gov.NewFactEvent(payload)
	require.NoError(t, err)

	req, err := api.GetRequest(reqID)
	require.NoError(t, err)
	require.Equal(t, "finished", req.State, req.Error)

	require.NoError(t, gov.Refresh())
	view, err := gov.ToGovernance()
	require.NoError(t, err)
	members, err := view.Members()
	require.NoError(t, err)
	assert.Equal(t, []string{api.Controller()}, members)
	policies, err := view.Policies()
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, Quorum{Kind: "FIXED", Fixed: 1}, policies[0].Evaluate.Quorum)
	schemas, err := view.Schemas()
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.JSONEq(t, `{"temperature":20,"unit":"C"}`, schemas[0].InitialValue)

	sensor, err := NewSubjectBuilder(api).WithNamespace("plant.north").WithName("t1").Build(gov.SubjectID(), "sensor")
	require.NoError(t, err)
	assert.NotEmpty(t, sensor.RequestID())
	_, err = sensor.ToGovernance()
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = sensor.NewFactEvent(`{"temperature":22}`)
	require.NoError(t, err)
	require.NoError(t, sensor.Refresh())
	data, _ := sensor.Data()
	assert.Equal(t, uint64(1), data.SN)
	assert.JSONEq(t, `{"temperature":22,"unit":"C"}`, data.Properties)

	events, err := api.GetEvents(sensor.SubjectID(), nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, RequestFact, events[1].Event.EventRequest.Request.Kind)
	assert.NotEmpty(t, events[1].Event.HashPrevEvent)

	ev, err := api.GetEvent(sensor.SubjectID(), 1)
	require.NoError(t, err)
	assert.Equal(t, events[1], ev)

	proof, err := api.GetValidationProof(sensor.SubjectID())
	require.NoError(t, err)
	assert.Equal(t, sensor.SubjectID(), proof.ValidationProof.SubjectID)
	require.Len(t, proof.Signatures, 1)
	assert.Equal(t, api.Controller(), proof.Signatures[0].Signer)

	all, err := api.GetSubjects("", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	govs, err := api.GetGovernances("plant", "", 0)
	require.NoError(t, err)
	assert.Len(t, govs, 1)
	byGov, err := api.GetSubjectsByGovernance(gov.SubjectID(), "", 0)
	require.NoError(t, err)
	require.Len(t, byGov, 1)
	assert.Equal(t, sensor.SubjectID(), byGov[0].SubjectID())

	_, err = api.GetEvent(sensor.SubjectID(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	report, err := api.VerifyChain(sensor.SubjectID())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Events)
	assert.Equal(t, sensor.SubjectID(), report.SubjectID)
	_, err = api.VerifyChain("not-an-id")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)

	// create x3, gov fact x2, sensor fact x2
	for range 3 + 2 + 3 + 2 {
		_, err := node.Next(context.Background())
		require.NoError(t, err)
	}
}

func TestFacadeSignedRequestsAndApprovals(t *testing.T) {
	api, _ := startAPI(t)

	gov, err := NewSubjectBuilder(api).WithName("gov").Build("", ledger.GovernanceSchemaID)
	require.NoError(t, err)

	// A request signed elsewhere needs the signer's key; use the facade's
	// own signer first.
	req := EventRequest{Kind: RequestFact, Fact: &FactRequest{SubjectID: gov.SubjectID(), Payload: `{"roles":[]}`}}
	sig, err := api.SignEventRequest(req)
	require.NoError(t, err)
	assert.Equal(t, api.Controller(), sig.Signer)

	rid, err := api.ExternalRequest(SignedEventRequest{Request: req, Signature: sig})
	require.NoError(t, err)
	stored, err := api.GetRequest(rid)
	require.NoError(t, err)
	assert.Equal(t, "finished", stored.State)
	assert.Equal(t, gov.SubjectID(), stored.SubjectID)

	// A fact from another key needs the owner's approval.
	other, err := keys.Generate(id.Ed25519)
	require.NoError(t, err)
	otherFact := EventRequest{Kind: RequestFact, Fact: &FactRequest{SubjectID: gov.SubjectID(), Payload: `{"roles":[]}`}}
	content, err := decodeEventRequest(otherFact)
	require.NoError(t, err)
	otherSig, err := ledger.Sign(other, id.Blake2b256, 7, content)
	require.NoError(t, err)

	rid, err = gov.ExternalInvocation(SignedEventRequest{Request: otherFact, Signature: encodeSignature(otherSig)})
	require.NoError(t, err)

	pending, err := api.GetPendingApprovals("", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ApprovalPending, pending[0].State)
	assert.Equal(t, rid, pending[0].RequestID)

	decided, err := api.ApprovalRequest(pending[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, ApprovalRejected, decided.State)
	require.NotNil(t, decided.Response)
	assert.False(t, decided.Response.Approved)
	require.NotNil(t, decided.ResponseSignature)

	got, err := api.GetApproval(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, decided, got)

	// Tampered content is refused before anything is stored.
	tampered := EventRequest{Kind: RequestFact, Fact: &FactRequest{SubjectID: gov.SubjectID(), Payload: `{"policies":[]}`}}
	_, err = api.ExternalRequest(SignedEventRequest{Request: tampered, Signature: sig})
	assert.ErrorIs(t, err, ErrExecution)
}

func TestFacadeKeysAndPreauthorization(t *testing.T) {
	api, _ := startAPI(t)

	key, err := api.AddKeys("secp256k1")
	require.NoError(t, err)
	parsed, err := id.ParseKeyID(key)
	require.NoError(t, err)
	assert.Equal(t, id.Secp256k1, parsed.Alg())

	require.NoError(t, api.AddPreauthorizeSubject(validDigest, []string{key, key}))
	list, err := api.GetAllowedSubjectsAndProviders("", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, SubjectAndProviders{SubjectID: validDigest, Providers: []string{key}}, list[0])
}

func TestNotificationEncoding(t *testing.T) {
	subject := id.MustParseDigestID(validDigest)
	n := EncodeNotification(ledger.Notification{Seq: 3, Kind: ledger.NotifyNewEvent, SubjectID: subject, SN: 2})
	assert.Equal(t, Notification{Seq: 3, Kind: "new_event", SubjectID: validDigest, SN: 2}, n)
	assert.Equal(t, "new_event subject="+validDigest+" sn=2", n.String())

	n = EncodeNotification(ledger.Notification{Kind: ledger.NotifyUnrecoverableError, Error: "disk"})
	assert.Equal(t, `unrecoverable_error error="disk"`, n.String())
	assert.Empty(t, n.SubjectID)
}
