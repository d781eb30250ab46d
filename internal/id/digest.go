package id

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DigestAlg selects the hash function behind a DigestID.
type DigestAlg uint8

const (
	Blake2b256 DigestAlg = iota + 1
	Blake2b512
	SHA2_256
	SHA2_512
	SHA3_256
	SHA3_512
)

var digestDerivations = map[DigestAlg]derivation{
	Blake2b256: {code: "F", size: 32, name: "blake2b256"},
	Blake2b512: {code: "0F", size: 64, name: "blake2b512"},
	SHA2_256:   {code: "I", size: 32, name: "sha2_256"},
	SHA2_512:   {code: "0I", size: 64, name: "sha2_512"},
	SHA3_256:   {code: "H", size: 32, name: "sha3_256"},
	SHA3_512:   {code: "0H", size: 64, name: "sha3_512"},
}

// String returns the settings name of the algorithm (e.g. "sha2_256").
func (a DigestAlg) String() string {
	if d, ok := digestDerivations[a]; ok {
		return d.name
	}
	return fmt.Sprintf("DigestAlg(%d)", uint8(a))
}

// ParseDigestAlg resolves a settings name such as "blake2b256" or "SHA3_512".
func ParseDigestAlg(name string) (DigestAlg, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for alg, d := range digestDerivations {
		if d.name == n {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("unknown digest derivator %q", name)
}

// Sum hashes data with the algorithm.
func (a DigestAlg) Sum(data []byte) ([]byte, error) {
	switch a {
	case Blake2b256:
		s := blake2b.Sum256(data)
		return s[:], nil
	case Blake2b512:
		s := blake2b.Sum512(data)
		return s[:], nil
	case SHA2_256:
		s := sha256.Sum256(data)
		return s[:], nil
	case SHA2_512:
		s := sha512.Sum512(data)
		return s[:], nil
	case SHA3_256:
		s := sha3.Sum256(data)
		return s[:], nil
	case SHA3_512:
		s := sha3.Sum512(data)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %d", uint8(a))
	}
}

// DigestID is a content-addressed hash tagged with its algorithm.
// The zero value is the empty identifier.
type DigestID struct {
	alg DigestAlg
	sum string
}

// NewDigestID wraps an existing hash value.
func NewDigestID(alg DigestAlg, sum []byte) (DigestID, error) {
	d, ok := digestDerivations[alg]
	if !ok {
		return DigestID{}, fmt.Errorf("unsupported digest algorithm %d", uint8(alg))
	}
	if len(sum) != d.size {
		return DigestID{}, fmt.Errorf("%s digest must be %d bytes, got %d", d.name, d.size, len(sum))
	}
	return DigestID{alg: alg, sum: string(sum)}, nil
}

// Derive hashes data and returns its identifier.
func Derive(alg DigestAlg, data []byte) (DigestID, error) {
	sum, err := alg.Sum(data)
	if err != nil {
		return DigestID{}, err
	}
	return DigestID{alg: alg, sum: string(sum)}, nil
}

// DeriveCanonical hashes the canonical JSON form of v.
func DeriveCanonical(alg DigestAlg, v any) (DigestID, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return DigestID{}, fmt.Errorf("derive digest: %w", err)
	}
	return Derive(alg, data)
}

// ParseDigestID decodes the canonical textual form.
func ParseDigestID(s string) (DigestID, error) {
	alg, payload, err := parse("digest", s, digestDerivations)
	if err != nil {
		return DigestID{}, err
	}
	return DigestID{alg: alg, sum: string(payload)}, nil
}

// MustParseDigestID panics on malformed input. Use only in tests.
func MustParseDigestID(s string) DigestID {
	d, err := ParseDigestID(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d DigestID) Alg() DigestAlg { return d.alg }
func (d DigestID) Bytes() []byte  { return []byte(d.sum) }
func (d DigestID) IsZero() bool   { return d.sum == "" }

func (d DigestID) String() string {
	return format(digestDerivations[d.alg], d.sum)
}

func (d DigestID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the empty string as the zero identifier so that
// optional fields round-trip through JSON.
func (d *DigestID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = DigestID{}
		return nil
	}
	parsed, err := ParseDigestID(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
