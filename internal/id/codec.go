package id

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is matched by every parse failure (errors.Is).
var ErrMalformed = errors.New("malformed identifier")

// MalformedError describes why a string is not a canonical identifier.
type MalformedError struct {
	Kind   string // "digest", "key" or "signature"
	Input  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s identifier %q: %s", e.Kind, truncate(e.Input, 32), e.Reason)
}

// Unwrap lets errors.Is(err, ErrMalformed) succeed.
func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// payloadEncoding rejects padding and non-zero trailing bits.
// It still skips CR/LF, which the re-encode check in parse catches.
var payloadEncoding = base64.RawURLEncoding.Strict()

// derivation binds an algorithm to its textual code and payload size.
type derivation struct {
	code string
	size int
	name string
}

func malformed(kind, input, reason string) error {
	return &MalformedError{Kind: kind, Input: input, Reason: reason}
}

// parse splits s into its algorithm and payload using the given table.
// Codes inside one table never prefix each other, so at most one entry matches.
func parse[A comparable](kind, s string, table map[A]derivation) (A, []byte, error) {
	var zero A
	if s == "" {
		return zero, nil, malformed(kind, s, "empty string")
	}

	for alg, d := range table {
		if !strings.HasPrefix(s, d.code) {
			continue
		}
		encoded := s[len(d.code):]
		payload, err := payloadEncoding.DecodeString(encoded)
		if err != nil {
			return zero, nil, malformed(kind, s, "invalid base64 payload")
		}
		if len(payload) != d.size {
			return zero, nil, malformed(kind, s,
				fmt.Sprintf("%s payload must be %d bytes, got %d", d.name, d.size, len(payload)))
		}
		if d.code+payloadEncoding.EncodeToString(payload) != s {
			return zero, nil, malformed(kind, s, "non-canonical encoding")
		}
		return alg, payload, nil
	}

	return zero, nil, malformed(kind, s, "unknown derivation code")
}

func format(d derivation, payload string) string {
	if payload == "" {
		return ""
	}
	return d.code + payloadEncoding.EncodeToString([]byte(payload))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
