package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Keypair is an Ed25519 signing key and its public address.
type Keypair struct {
	private ed25519.PrivateKey
}

// GenerateKeypair creates a keypair from the system random source.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// KeypairFromSeed derives a keypair deterministically from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidPrivateKey, SeedSize, len(seed))
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromBytes loads a 64-byte private key (seed followed by public key).
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	kp, err := KeypairFromSeed(b[:SeedSize])
	if err != nil {
		return nil, err
	}
	pub := kp.Pubkey()
	for i := 0; i < PublicKeySize; i++ {
		if pub[i] != b[SeedSize+i] {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
		}
	}
	return kp, nil
}

// Pubkey returns the keypair's address.
func (kp *Keypair) Pubkey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], kp.private.Public().(ed25519.PublicKey))
	return pk
}

// Bytes returns the 64-byte private key.
func (kp *Keypair) Bytes() []byte {
	out := make([]byte, PrivateKeySize)
	copy(out, kp.private)
	return out
}

// Sign signs message with the keypair.
func (kp *Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(kp.private, message))
	return sig
}

// VerifySignature verifies a single Ed25519 signature.
// Returns false if the public key or signature have invalid lengths.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// SignTransaction signs msg with the keypairs of every required signer.
// Keypairs for keys that are not required signers are ignored.
func SignTransaction(msg *types.Message, signers ...*Keypair) (*types.Transaction, error) {
	byKey := make(map[types.Pubkey]*Keypair, len(signers))
	for _, kp := range signers {
		byKey[kp.Pubkey()] = kp
	}

	payload := msg.Serialize()
	required := msg.Signers()
	tx := &types.Transaction{
		Signatures: make([]types.Signature, len(required)),
		Message:    *msg,
	}
	for i, pk := range required {
		kp, ok := byKey[pk]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSigner, pk)
		}
		tx.Signatures[i] = kp.Sign(payload)
	}
	return tx, nil
}

// VerifyTransaction verifies all signatures of a transaction against the
// serialized message and the leading signer keys.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingMessage
	}

	numSignatures := len(tx.Signatures)
	if numSignatures == 0 {
		return ErrNoSignatures
	}

	numRequired := int(tx.Message.Header.NumRequiredSignatures)
	if numSignatures != numRequired {
		return fmt.Errorf("%w: expected %d signatures, got %d",
			ErrSignatureCountMismatch, numRequired, numSignatures)
	}

	accountKeys := tx.Message.AccountKeys
	if len(accountKeys) < numSignatures {
		return fmt.Errorf("%w: not enough account keys for signatures",
			ErrInvalidSignerIndex)
	}

	messageBytes := tx.Message.Serialize()
	for i := 0; i < numSignatures; i++ {
		pubkey := accountKeys[i]
		signature := tx.Signatures[i]

		if !ed25519.Verify(pubkey[:], messageBytes, signature[:]) {
			return &TransactionVerificationError{
				SignatureIndex: i,
				SignerPubkey:   pubkey.String(),
				Err:            ErrVerificationFailed,
			}
		}
	}

	return nil
}
