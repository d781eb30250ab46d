// Package keys holds node and user key material and produces SignatureIDs.
//
// Two schemes are supported: Ed25519 (stdlib crypto/ed25519) and secp256k1
// (firefly-signer key pairs over btcec). secp256k1 signatures are the 65-byte
// compact R||S||V form over the Keccak-256 hash of the message, which is what
// firefly-signer's SignDirect produces.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/roach88/ledgerbridge/internal/id"
)

// ErrInvalidSignature is returned by Verify when the signature does not match.
var ErrInvalidSignature = errors.New("invalid signature")

// KeyPair signs messages on behalf of a single public key.
type KeyPair interface {
	Alg() id.KeyAlg
	Public() id.KeyID
	Sign(msg []byte) (id.SignatureID, error)
	// SecretHex returns the private key as hex, in the form FromSecretHex accepts.
	SecretHex() string
}

// Generate creates a fresh random key pair.
func Generate(alg id.KeyAlg) (KeyPair, error) {
	switch alg {
	case id.Ed25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return newEd25519(priv)
	case id.Secp256k1:
		return generateSecp256k1()
	default:
		return nil, fmt.Errorf("unsupported key derivator %v", alg)
	}
}

// FromSecretHex rebuilds a key pair from its hex-encoded 32-byte secret.
func FromSecretHex(alg id.KeyAlg, secret string) (KeyPair, error) {
	raw, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	switch alg {
	case id.Ed25519:
		return newEd25519(ed25519.NewKeyFromSeed(raw))
	case id.Secp256k1:
		return secp256k1FromBytes(raw)
	default:
		return nil, fmt.Errorf("unsupported key derivator %v", alg)
	}
}

// Verify checks sig over msg against the public key.
func Verify(key id.KeyID, msg []byte, sig id.SignatureID) error {
	if key.IsZero() || sig.IsZero() {
		return ErrInvalidSignature
	}
	if key.Alg() != sig.Alg() {
		return fmt.Errorf("%w: %s signature for %s key", ErrInvalidSignature, sig.Alg(), key.Alg())
	}
	switch key.Alg() {
	case id.Ed25519:
		if !ed25519.Verify(ed25519.PublicKey(key.Bytes()), msg, sig.Bytes()) {
			return ErrInvalidSignature
		}
		return nil
	case id.Secp256k1:
		return verifySecp256k1(key.Bytes(), msg, sig.Bytes())
	default:
		return fmt.Errorf("unsupported key algorithm %v", key.Alg())
	}
}

type ed25519Pair struct {
	priv   ed25519.PrivateKey
	public id.KeyID
}

func newEd25519(priv ed25519.PrivateKey) (*ed25519Pair, error) {
	public, err := id.NewKeyID(id.Ed25519, priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &ed25519Pair{priv: priv, public: public}, nil
}

func (k *ed25519Pair) Alg() id.KeyAlg    { return id.Ed25519 }
func (k *ed25519Pair) Public() id.KeyID  { return k.public }
func (k *ed25519Pair) SecretHex() string { return hex.EncodeToString(k.priv.Seed()) }

func (k *ed25519Pair) Sign(msg []byte) (id.SignatureID, error) {
	return id.NewSignatureID(id.Ed25519, ed25519.Sign(k.priv, msg))
}
