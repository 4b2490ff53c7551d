package crypto

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// WriteKeypairFile stores kp in the solana-keygen format: a JSON array of
// the 64 private key bytes. The file is created with mode 0600.
func WriteKeypairFile(path string, kp *Keypair) error {
	key := solana.PrivateKey(kp.Bytes())
	if types.Pubkey(key.PublicKey()) != kp.Pubkey() {
		return fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
	}

	values := make([]uint, len(key))
	for i, b := range key {
		values[i] = uint(b)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	return nil
}

// ReadKeypairFile loads a solana-keygen keypair file.
func ReadKeypairFile(path string) (*Keypair, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return KeypairFromPrivateKey(key)
}

// KeypairFromPrivateKey converts a solana-go private key.
func KeypairFromPrivateKey(key solana.PrivateKey) (*Keypair, error) {
	return KeypairFromBytes(key)
}
