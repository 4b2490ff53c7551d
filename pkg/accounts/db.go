// Package accounts persists ledger accounts and computes the state root.
package accounts

import (
	"errors"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// ErrStopIteration may be returned by a ForEach callback to end the walk
// early without an error.
var ErrStopIteration = errors.New("stop iteration")

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// Apply writes a batch of deltas atomically. A delta with a nil
	// NewAccount, or an empty one, deletes the key.
	Apply(deltas []types.AccountDelta) error

	// ForEach calls fn for every account in ascending pubkey order.
	ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// Close closes the database.
	Close() error
}

// isRemoval reports whether a delta deletes its key.
func isRemoval(d *types.AccountDelta) bool {
	return d.NewAccount == nil || d.NewAccount.IsEmpty()
}
