package keys

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"golang.org/x/crypto/sha3"

	"github.com/roach88/ledgerbridge/internal/id"
)

type secp256k1Pair struct {
	kp     *secp256k1.KeyPair
	public id.KeyID
}

func generateSecp256k1() (*secp256k1Pair, error) {
	kp, err := secp256k1.GenerateSecp256k1KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return wrapSecp256k1(kp)
}

func secp256k1FromBytes(raw []byte) (*secp256k1Pair, error) {
	kp, err := secp256k1.NewSecp256k1KeyPair(raw)
	if err != nil {
		return nil, fmt.Errorf("load secp256k1 key: %w", err)
	}
	return wrapSecp256k1(kp)
}

func wrapSecp256k1(kp *secp256k1.KeyPair) (*secp256k1Pair, error) {
	public, err := id.NewKeyID(id.Secp256k1, kp.PublicKey.SerializeCompressed())
	if err != nil {
		return nil, err
	}
	return &secp256k1Pair{kp: kp, public: public}, nil
}

func (k *secp256k1Pair) Alg() id.KeyAlg   { return id.Secp256k1 }
func (k *secp256k1Pair) Public() id.KeyID { return k.public }

func (k *secp256k1Pair) SecretHex() string {
	return hex.EncodeToString(k.kp.PrivateKey.Serialize())
}

func (k *secp256k1Pair) Sign(msg []byte) (id.SignatureID, error) {
	sig, err := k.kp.SignDirect(msg)
	if err != nil {
		return id.SignatureID{}, fmt.Errorf("secp256k1 sign: %w", err)
	}
	return id.NewSignatureID(id.Secp256k1, sig.CompactRSV())
}

func verifySecp256k1(public, msg, compact []byte) error {
	pub, err := btcec.ParsePubKey(public)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := secp256k1.DecodeCompactRSV(context.Background(), compact)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig.R.Bytes()); overflow {
		return ErrInvalidSignature
	}
	if overflow := s.SetByteSlice(sig.S.Bytes()); overflow {
		return ErrInvalidSignature
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write(msg)
	if !ecdsa.NewSignature(&r, &s).Verify(hash.Sum(nil), pub) {
		return ErrInvalidSignature
	}
	return nil
}
