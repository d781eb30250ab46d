package id

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"null", nil, "null"},
		{"float", 1.5, "1.5"},
		{"float integral", 2.0, "2"},
		{"large float", 1e21, "1e+21"},
		{"small float", 1e-7, "1e-7"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"no html escape", "<a&b>", `"<a&b>"`},
		{"control char", "a\x01", `"a\u0001"`},
		{"line separator kept", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before U+FB01.
	obj := map[string]any{"\ufb01": 1, "\U0001F600": 2}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\ufb01\":1}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	result, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalStruct(t *testing.T) {
	type payload struct {
		Name    string   `json:"name"`
		Subject DigestID `json:"subject"`
		Count   int      `json:"count"`
	}

	result, err := MarshalCanonical(payload{Name: "x", Subject: MustParseDigestID(sha256ABC), Count: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"name":"x","subject":"`+sha256ABC+`"}`, string(result))
}

func TestMarshalCanonicalRawMessageStable(t *testing.T) {
	a, err := MarshalCanonical(json.RawMessage(`{"b":[true,null,"x"], "a":1}`))
	require.NoError(t, err)
	b, err := MarshalCanonical(map[string]any{"a": 1, "b": []any{true, nil, "x"}})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	d, err := DeriveCanonical(SHA2_256, json.RawMessage(a))
	require.NoError(t, err)
	assert.Equal(t, "I7KjPsxq3RTPh6y9MdNLVXf48eaxwR4flS-hkfqd3frE", d.String())
}
