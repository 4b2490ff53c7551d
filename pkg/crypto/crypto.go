// Package crypto provides the signing, verification and hashing primitives
// of the ledger.
//
// Signatures are Ed25519 over the serialized transaction message. Content
// hashes use BLAKE3.
//
//	kp, _ := crypto.GenerateKeypair()
//	tx, _ := crypto.SignTransaction(msg, kp)
//	err := crypto.VerifyTransaction(tx)
package crypto

import (
	"errors"
	"strconv"
)

// Signature and key sizes for Ed25519.
const (
	// PublicKeySize is the size of an Ed25519 public key in bytes.
	PublicKeySize = 32

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = 64

	// PrivateKeySize is the size of an Ed25519 private key in bytes.
	PrivateKeySize = 64

	// SeedSize is the size of an Ed25519 seed in bytes.
	SeedSize = 32
)

// HashSize is the size of a BLAKE3 digest in bytes.
const HashSize = 32

// Common errors returned by the crypto package.
var (
	// ErrInvalidPublicKey is returned when a public key has an invalid format.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidSignature is returned when a signature has an invalid format.
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrInvalidPrivateKey is returned when private key material is malformed.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrVerificationFailed is returned when signature verification fails.
	ErrVerificationFailed = errors.New("crypto: signature verification failed")

	// ErrNoSignatures is returned when a transaction has no signatures.
	ErrNoSignatures = errors.New("crypto: transaction has no signatures")

	// ErrSignatureCountMismatch is returned when the number of signatures
	// does not match the expected number of signers.
	ErrSignatureCountMismatch = errors.New("crypto: signature count mismatch")

	// ErrMissingMessage is returned when a transaction is nil.
	ErrMissingMessage = errors.New("crypto: missing transaction message")

	// ErrInvalidSignerIndex is returned when a signer index is out of bounds.
	ErrInvalidSignerIndex = errors.New("crypto: invalid signer index")

	// ErrMissingSigner is returned when signing without a keypair for a required signer.
	ErrMissingSigner = errors.New("crypto: missing keypair for required signer")
)

// TransactionVerificationError contains details about a transaction
// signature verification failure.
type TransactionVerificationError struct {
	SignatureIndex int
	SignerPubkey   string
	Err            error
}

// Error implements the error interface.
func (e *TransactionVerificationError) Error() string {
	return "crypto: transaction signature " + strconv.Itoa(e.SignatureIndex) +
		" from " + e.SignerPubkey + " failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransactionVerificationError) Unwrap() error {
	return e.Err
}
