package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// governanceCUE constrains governance properties.
const governanceCUE = `
#validation: quorum: "MAJORITY" | {FIXED: int & >0} | {PERCENTAGE: number & >0 & <=1}

members: [...{id: string & !="", name: string}]
policies: [...{id: string, approve: #validation, evaluate: #validation, validate: #validation}]
roles: [...{who: _, namespace: string, role: string, schema: _}]
schemas: [...{id: string & !="" & !="governance", schema: _, initial_value: {...}}]
`

// schemaValidator compiles CUE definitions once and checks JSON states
// against them. It is owned by the loop goroutine and not safe for
// concurrent use.
type schemaValidator struct {
	ctx   *cue.Context
	cache map[string]cue.Value
}

func newSchemaValidator() *schemaValidator {
	return &schemaValidator{ctx: cuecontext.New(), cache: make(map[string]cue.Value)}
}

func (v *schemaValidator) compile(src string) (cue.Value, error) {
	if val, ok := v.cache[src]; ok {
		return val, nil
	}
	val := v.ctx.CompileString(src)
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile schema: %w", formatCUEError(err))
	}
	v.cache[src] = val
	return val, nil
}

// Validate unifies state with the CUE source. An empty source only
// requires state to be a JSON object.
func (v *schemaValidator) Validate(src string, state json.RawMessage) error {
	if !isJSONObject(state) {
		return newError(CodeSchemaViolation, "", "state must be a JSON object")
	}
	if strings.TrimSpace(src) == "" {
		return nil
	}

	schema, err := v.compile(src)
	if err != nil {
		return &Error{Code: CodeSchemaViolation, Message: "invalid schema", Err: err}
	}
	data := v.ctx.CompileBytes(state)
	if err := data.Err(); err != nil {
		return &Error{Code: CodeSchemaViolation, Message: "state is not valid JSON", Err: err}
	}
	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return &Error{Code: CodeSchemaViolation, Message: "state does not satisfy schema", Err: formatCUEError(err)}
	}
	return nil
}

// ValidateGovernance checks governance properties.
func (v *schemaValidator) ValidateGovernance(state json.RawMessage) error {
	if err := v.Validate(governanceCUE, state); err != nil {
		return err
	}
	if _, err := ParseGovernance(state); err != nil {
		return &Error{Code: CodeSchemaViolation, Message: "invalid governance", Err: err}
	}
	return nil
}

// formatCUEError keeps the first error message with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	msg := first.Error()
	if positions := errors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		msg = fmt.Sprintf("%s (%s)", msg, positions[0])
	}
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}
	return fmt.Errorf("%s", msg)
}
