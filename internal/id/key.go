package id

import (
	"fmt"
	"strings"
)

// KeyAlg selects the signature scheme of a key or signature.
type KeyAlg uint8

const (
	Ed25519 KeyAlg = iota + 1
	Secp256k1
)

var keyDerivations = map[KeyAlg]derivation{
	Ed25519:   {code: "E", size: 32, name: "ed25519"},
	Secp256k1: {code: "S", size: 33, name: "secp256k1"},
}

var signatureDerivations = map[KeyAlg]derivation{
	Ed25519:   {code: "SE", size: 64, name: "ed25519"},
	Secp256k1: {code: "SS", size: 65, name: "secp256k1"},
}

func (a KeyAlg) String() string {
	if d, ok := keyDerivations[a]; ok {
		return d.name
	}
	return fmt.Sprintf("KeyAlg(%d)", uint8(a))
}

// ParseKeyAlg resolves "ed25519" or "secp256k1" (case-insensitive).
func ParseKeyAlg(name string) (KeyAlg, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for alg, d := range keyDerivations {
		if d.name == n {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("unknown key derivator %q", name)
}

// KeyID is a public key tagged with its scheme.
type KeyID struct {
	alg KeyAlg
	key string
}

// NewKeyID wraps raw public key bytes.
func NewKeyID(alg KeyAlg, public []byte) (KeyID, error) {
	d, ok := keyDerivations[alg]
	if !ok {
		return KeyID{}, fmt.Errorf("unsupported key algorithm %d", uint8(alg))
	}
	if len(public) != d.size {
		return KeyID{}, fmt.Errorf("%s public key must be %d bytes, got %d", d.name, d.size, len(public))
	}
	return KeyID{alg: alg, key: string(public)}, nil
}

// ParseKeyID decodes the canonical textual form. Failures match ErrMalformed.
func ParseKeyID(s string) (KeyID, error) {
	alg, payload, err := parse("key", s, keyDerivations)
	if err != nil {
		return KeyID{}, err
	}
	return KeyID{alg: alg, key: string(payload)}, nil
}

// MustParseKeyID panics on malformed input. Use only in tests.
func MustParseKeyID(s string) KeyID {
	k, err := ParseKeyID(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (k KeyID) Alg() KeyAlg    { return k.alg }
func (k KeyID) Bytes() []byte  { return []byte(k.key) }
func (k KeyID) IsZero() bool   { return k.key == "" }
func (k KeyID) String() string { return format(keyDerivations[k.alg], k.key) }

func (k KeyID) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *KeyID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = KeyID{}
		return nil
	}
	parsed, err := ParseKeyID(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SignatureID is a signature value tagged with the scheme that produced it.
type SignatureID struct {
	alg KeyAlg
	sig string
}

// NewSignatureID wraps raw signature bytes.
func NewSignatureID(alg KeyAlg, sig []byte) (SignatureID, error) {
	d, ok := signatureDerivations[alg]
	if !ok {
		return SignatureID{}, fmt.Errorf("unsupported signature algorithm %d", uint8(alg))
	}
	if len(sig) != d.size {
		return SignatureID{}, fmt.Errorf("%s signature must be %d bytes, got %d", d.name, d.size, len(sig))
	}
	return SignatureID{alg: alg, sig: string(sig)}, nil
}

// ParseSignatureID decodes the canonical textual form. Failures match
// ErrMalformed.
func ParseSignatureID(s string) (SignatureID, error) {
	alg, payload, err := parse("signature", s, signatureDerivations)
	if err != nil {
		return SignatureID{}, err
	}
	return SignatureID{alg: alg, sig: string(payload)}, nil
}

// MustParseSignatureID panics on malformed input. Use only in tests.
func MustParseSignatureID(s string) SignatureID {
	sig, err := ParseSignatureID(s)
	if err != nil {
		panic(err)
	}
	return sig
}

func (s SignatureID) Alg() KeyAlg    { return s.alg }
func (s SignatureID) Bytes() []byte  { return []byte(s.sig) }
func (s SignatureID) IsZero() bool   { return s.sig == "" }
func (s SignatureID) String() string { return format(signatureDerivations[s.alg], s.sig) }

func (s SignatureID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SignatureID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = SignatureID{}
		return nil
	}
	parsed, err := ParseSignatureID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
