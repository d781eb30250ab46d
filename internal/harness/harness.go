package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/node"
	"github.com/roach88/ledgerbridge/internal/runtime"
	"github.com/roach88/ledgerbridge/internal/storage"
	"github.com/roach88/ledgerbridge/internal/storage/memory"
	"github.com/roach88/ledgerbridge/internal/testutil"
)

// clockBase is the first signature timestamp minus one, in milliseconds.
const clockBase = 1_700_000_000_000

// Harness runs one scenario against one in-memory node.
type Harness struct {
	node    *node.Node
	api     *bridge.API
	clock   *testutil.DeterministicClock
	digest  id.DigestAlg
	signers map[string]keys.KeyPair
	logger  *slog.Logger

	// refs maps "$name" to subject ids.
	refs map[string]string
	// labels maps identifiers to trace labels; counters number new ones.
	labels   map[string]string
	counters map[string]int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh in-memory backend with deterministic keys
// and timestamps. Execution flow:
//  1. Start the node
//  2. Execute steps, checking expect clauses
//  3. Evaluate final_state assertions through the facade
//  4. Signal shutdown and drain the notification stream
//  5. Evaluate notification assertions
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	h, err := newHarness(scenario, logger)
	if err != nil {
		return nil, err
	}
	defer h.abort()

	result := NewResult()
	for i, step := range scenario.Steps {
		trace, err := h.executeStep(i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		result.AddStep(trace)
		for _, msg := range checkExpect(trace, step.Expect) {
			result.AddError(msg)
		}
		h.logger.Info("scenario step completed",
			"step", i,
			"action", step.Action,
			"request", trace.Request,
			"state", trace.State,
			"error", trace.Error,
		)
	}

	if err := h.collectState(result); err != nil {
		return nil, err
	}
	for _, a := range scenario.Assertions {
		if a.Type != AssertFinalState {
			continue
		}
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError(err.Error())
		}
	}

	if err := h.drain(result); err != nil {
		return nil, err
	}
	for _, a := range scenario.Assertions {
		if a.Type == AssertFinalState {
			continue
		}
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func newHarness(s *Scenario, logger *slog.Logger) (*Harness, error) {
	signers := make(map[string]keys.KeyPair, len(s.Keys))
	for name, secret := range s.Keys {
		kp, err := keys.FromSecretHex(id.Ed25519, secret)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", name, err)
		}
		signers[name] = kp
	}
	nodeKey, ok := signers[NodeSigner]
	if !ok {
		return nil, fmt.Errorf("scenario has no %s key", NodeSigner)
	}

	clock := testutil.NewDeterministicClock(clockBase, 1)
	digest := id.Blake2b256
	engine, lapi, err := ledger.Start(context.Background(), ledger.Config{
		Keys:   nodeKey,
		Digest: digest,
		Now:    clock.Now,
		Logger: logger,
	}, storage.NewManager(memory.New(), logger))
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	rt := runtime.New(runtime.WithLogger(logger))
	api := bridge.NewAPI(lapi, rt, nodeKey, digest)

	h := &Harness{
		node:     node.New(engine, api, rt, node.WithLogger(logger)),
		api:      api,
		clock:    clock,
		digest:   digest,
		signers:  signers,
		logger:   logger,
		refs:     make(map[string]string),
		labels:   make(map[string]string),
		counters: make(map[string]int),
	}
	// Sorted so labels do not depend on map order.
	names := make([]string, 0, len(signers))
	for name := range signers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.labels[signers[name].Public().String()] = "@" + name
	}
	return h, nil
}

// abort releases the node if Run returned before draining.
func (h *Harness) abort() {
	if h.node.Active() {
		_ = h.node.ShutdownGracefully()
	}
}

func (h *Harness) executeStep(index int, step Step) (StepTrace, error) {
	trace := StepTrace{Index: index, Action: step.Action}
	signer := step.Signer
	if signer == "" {
		signer = NodeSigner
	}
	args, err := h.resolveArgs(step.Args)
	if err != nil {
		return trace, err
	}

	if step.Action == ActionApprove {
		return h.approve(trace, args)
	}

	req, err := h.eventRequest(step.Action, signer, args)
	if err != nil {
		return trace, err
	}
	signed, err := bridge.SignWith(h.signers[signer], h.digest, h.clock.Now(), req)
	if err != nil {
		return trace, err
	}

	requestID, err := h.api.ExternalRequest(signed)
	if err != nil {
		trace.Error = string(bridge.KindOf(err))
		return trace, nil
	}
	r, err := h.api.GetRequest(requestID)
	if err != nil {
		return trace, fmt.Errorf("read back request: %w", err)
	}

	if step.As != "" && r.SubjectID != "" {
		h.refs["$"+step.As] = r.SubjectID
		h.labels[r.SubjectID] = "$" + step.As
	}
	trace.Request = h.label("request", r.ID)
	trace.Subject = h.label("subject", r.SubjectID)
	trace.SN = r.SN
	trace.State = r.State
	trace.Success = r.Success
	return trace, nil
}

func (h *Harness) eventRequest(action, signer string, args map[string]any) (bridge.EventRequest, error) {
	str := func(key string) string {
		s, _ := args[key].(string)
		return s
	}
	switch action {
	case ActionCreate:
		publicKey := str("public_key")
		if publicKey == "" {
			publicKey = h.signers[signer].Public().String()
		}
		return bridge.EventRequest{Kind: bridge.RequestCreate, Create: &bridge.CreateRequest{
			GovernanceID: str("governance"),
			SchemaID:     str("schema_id"),
			Namespace:    str("namespace"),
			Name:         str("name"),
			PublicKey:    publicKey,
		}}, nil
	case ActionFact:
		payload, err := json.Marshal(args["payload"])
		if err != nil {
			return bridge.EventRequest{}, fmt.Errorf("encode payload: %w", err)
		}
		return bridge.EventRequest{Kind: bridge.RequestFact, Fact: &bridge.FactRequest{
			SubjectID: str("subject"),
			Payload:   string(payload),
		}}, nil
	case ActionTransfer:
		return bridge.EventRequest{Kind: bridge.RequestTransfer, Transfer: &bridge.TransferRequest{
			SubjectID: str("subject"),
			PublicKey: str("public_key"),
		}}, nil
	case ActionEOL:
		return bridge.EventRequest{Kind: bridge.RequestEOL, EOL: &bridge.EOLRequest{SubjectID: str("subject")}}, nil
	default:
		return bridge.EventRequest{}, fmt.Errorf("unknown action %q", action)
	}
}

// approve answers the oldest pending approval of args["subject"].
func (h *Harness) approve(trace StepTrace, args map[string]any) (StepTrace, error) {
	subjectID, _ := args["subject"].(string)
	accept := true
	if v, ok := args["accept"].(bool); ok {
		accept = v
	}

	pending, err := h.api.GetPendingApprovals("", 0)
	if err != nil {
		trace.Error = string(bridge.KindOf(err))
		return trace, nil
	}
	var target *bridge.Approval
	for i := range pending {
		if pending[i].SubjectID == subjectID {
			target = &pending[i]
			break
		}
	}
	if target == nil {
		trace.Subject = h.label("subject", subjectID)
		trace.Error = string(bridge.KindNotFound)
		return trace, nil
	}

	a, err := h.api.ApprovalRequest(target.ID, accept)
	if err != nil {
		trace.Error = string(bridge.KindOf(err))
		return trace, nil
	}
	trace.Request = h.label("request", a.RequestID)
	trace.Subject = h.label("subject", a.SubjectID)
	trace.Approval = h.label("approval", a.ID)
	trace.SN = a.Request.SN
	trace.State = a.State
	trace.Success = a.State == bridge.ApprovalAccepted
	return trace, nil
}

// resolveArgs replaces "$name" and "@name" references, recursively.
func (h *Harness) resolveArgs(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		r, err := h.resolveValue(v)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", k, err)
		}
		out[k] = r
	}
	return out, nil
}

func (h *Harness) resolveValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		switch {
		case strings.HasPrefix(val, "$"):
			return h.resolveSubject(val)
		case strings.HasPrefix(val, "@"):
			kp, ok := h.signers[val[1:]]
			if !ok {
				return nil, fmt.Errorf("unknown signer %s", val)
			}
			return kp.Public().String(), nil
		}
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			r, err := h.resolveValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		return h.resolveArgs(val)
	default:
		return val, nil
	}
}

func (h *Harness) resolveSubject(ref string) (string, error) {
	subjectID, ok := h.refs[ref]
	if !ok {
		return "", fmt.Errorf("unbound subject reference %s", ref)
	}
	return subjectID, nil
}

// label returns the stable trace label for an identifier, numbering new
// ones per prefix.
func (h *Harness) label(prefix, value string) string {
	if value == "" {
		return ""
	}
	if l, ok := h.labels[value]; ok {
		return l
	}
	h.counters[prefix]++
	l := fmt.Sprintf("%s#%d", prefix, h.counters[prefix])
	h.labels[value] = l
	return l
}

// collectState records the final properties of every bound subject.
func (h *Harness) collectState(result *Result) error {
	for ref, subjectID := range h.refs {
		s, err := h.api.GetSubject(subjectID)
		if err != nil {
			return fmt.Errorf("read subject %s: %w", ref, err)
		}
		data, ok := s.Data()
		if !ok {
			return fmt.Errorf("read subject %s: no data", ref)
		}
		var props any
		if err := json.Unmarshal([]byte(data.Properties), &props); err != nil {
			return fmt.Errorf("decode subject %s: %w", ref, err)
		}
		result.State[ref] = map[string]any{
			"properties": props,
			"sn":         data.SN,
			"active":     data.Active,
		}
	}
	return nil
}

// drain stops the engine and records every notification it emitted.
func (h *Harness) drain(result *Result) error {
	if err := h.node.ShutdownSignal().Shutdown(); err != nil {
		return fmt.Errorf("signal shutdown: %w", err)
	}
	return h.node.HandleNotifications(node.HandlerFunc(func(n bridge.Notification) {
		result.AddNotification(NotificationTrace{
			Seq:      n.Seq,
			Kind:     n.Kind,
			Subject:  h.label("subject", n.SubjectID),
			SN:       n.SN,
			Approval: h.label("approval", n.ApprovalID),
		})
	}))
}

// checkExpect compares a step outcome with its expect clause.
func checkExpect(trace StepTrace, expect *Expect) []string {
	if expect == nil {
		return nil
	}
	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("steps[%d] %s: expected %s %v, got %v", trace.Index, trace.Action, field, want, got))
	}
	if expect.State != "" && expect.State != trace.State {
		mismatch("state", expect.State, trace.State)
	}
	if expect.Success != nil && *expect.Success != trace.Success {
		mismatch("success", *expect.Success, trace.Success)
	}
	if expect.SN != nil && *expect.SN != trace.SN {
		mismatch("sn", *expect.SN, trace.SN)
	}
	if expect.Error != trace.Error {
		mismatch("error", expect.Error, trace.Error)
	}
	return errs
}
