package types

import (
	"bytes"
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Account is the host-level record for one address: a lamport balance,
// an opaque data buffer and the program that owns it.
type Account struct {
	Lamports   Lamports
	Data       []byte
	Owner      Pubkey
	Executable bool
	RentEpoch  Epoch
}

// NewAccount creates a data-less account.
func NewAccount(lamports Lamports, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Owner:    owner,
	}
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// IsEmpty returns true if the account has zero lamports and no data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Equal reports whether two accounts have identical contents.
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		a.RentEpoch == b.RentEpoch &&
		bytes.Equal(a.Data, b.Data)
}

// Hash computes the account leaf hash used by the state root.
// Format: blake3(lamports || rent_epoch || data || executable || owner || pubkey)
func (a *Account) Hash(pubkey Pubkey) Hash {
	h := blake3.New()

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(a.Lamports))
	h.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], uint64(a.RentEpoch))
	h.Write(u64[:])

	h.Write(a.Data)
	if a.Executable {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write(a.Owner[:])
	h.Write(pubkey[:])

	var result Hash
	copy(result[:], h.Sum(nil))
	return result
}

// AccountMeta describes an account in an instruction.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// AccountDelta represents a change to an account.
type AccountDelta struct {
	Pubkey     Pubkey
	OldAccount *Account // nil if new account
	NewAccount *Account // nil if deleted
}

// IsCreation returns true if this is a new account.
func (d *AccountDelta) IsCreation() bool {
	return d.OldAccount == nil && d.NewAccount != nil
}

// IsDeletion returns true if this account was deleted.
func (d *AccountDelta) IsDeletion() bool {
	return d.OldAccount != nil && d.NewAccount == nil
}
