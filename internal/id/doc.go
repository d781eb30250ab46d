// Package id implements the canonical identifier codec.
//
// Every cryptographic value that crosses the bridge boundary travels as a
// string of the form <derivation code><payload>, where the payload is the raw
// value encoded with unpadded URL-safe base64. Three value types exist:
//
//   - DigestID: content-addressed hash (subjects, events, requests, approvals)
//   - KeyID: public key of a signer
//   - SignatureID: signature produced by a KeyID
//
// # Canonical Form
//
// A value has exactly one textual form. Parsing rejects padding, non-zero
// trailing bits, wrong payload lengths, unknown codes and anything whose
// re-encoding differs from the input, so Parse(x.String()) == x holds for
// every valid x and no two strings decode to the same value.
//
// # Derivation Codes
//
//	Digest:    F  Blake2b-256   0F Blake2b-512
//	           I  SHA2-256      0I SHA2-512
//	           H  SHA3-256      0H SHA3-512
//	Key:       E  Ed25519       S  secp256k1 (compressed)
//	Signature: SE Ed25519       SS secp256k1 (R||S||V)
//
// Content hashes over structured data use MarshalCanonical (RFC 8785 key
// ordering, NFC strings) so that the same logical value always hashes the
// same way.
package id
