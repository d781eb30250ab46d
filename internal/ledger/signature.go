package ledger

import (
	"fmt"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

// Sign produces a Signature over the canonical JSON of content.
// The signed message is the text form of the content digest.
func Sign(kp keys.KeyPair, alg id.DigestAlg, timestamp uint64, content any) (Signature, error) {
	hash, err := id.DeriveCanonical(alg, content)
	if err != nil {
		return Signature{}, fmt.Errorf("hash content: %w", err)
	}
	value, err := kp.Sign([]byte(hash.String()))
	if err != nil {
		return Signature{}, fmt.Errorf("sign content: %w", err)
	}
	return Signature{
		Signer:      kp.Public(),
		Timestamp:   timestamp,
		Value:       value,
		ContentHash: hash,
	}, nil
}

// VerifySignature checks that sig was produced by sig.Signer over content.
// The digest algorithm is taken from sig.ContentHash.
func VerifySignature(sig Signature, content any) error {
	if sig.ContentHash.IsZero() {
		return newError(CodeInvalidSignature, "", "signature has no content hash")
	}
	hash, err := id.DeriveCanonical(sig.ContentHash.Alg(), content)
	if err != nil {
		return newError(CodeInvalidRequest, "", "hash content: %v", err)
	}
	if hash != sig.ContentHash {
		return newError(CodeInvalidSignature, "", "content hash mismatch")
	}
	if err := keys.Verify(sig.Signer, []byte(hash.String()), sig.Value); err != nil {
		return &Error{Code: CodeInvalidSignature, Message: "signature does not verify", Err: err}
	}
	return nil
}
