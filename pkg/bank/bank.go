// Package bank is the transactional boundary of the ledger. It loads the
// accounts a transaction names, runs each instruction against working
// copies and commits the copies only when every instruction succeeds.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fortiblox/x1-tokenledger/pkg/accounts"
	"github.com/fortiblox/x1-tokenledger/pkg/metrics"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Bank errors
var (
	// ErrAirdropTargetOwned indicates the airdrop target is not a system account.
	ErrAirdropTargetOwned = errors.New("airdrop target is owned by a program")

	// ErrLamportOverflow indicates a credit would overflow a balance.
	ErrLamportOverflow = errors.New("lamport balance overflow")

	// ErrAccountNotFound is returned by the typed readers for missing keys.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotTokenAccount is returned by the typed readers when the account
	// is not owned by the token program.
	ErrNotTokenAccount = errors.New("account is not owned by the token program")
)

// Bank executes transactions against an account store.
type Bank struct {
	mu sync.Mutex

	db       accounts.AccountsDB
	registry *ProgramRegistry
	rent     sysvar.Rent

	verifySignatures bool
	logger           zerolog.Logger
	metrics          *metrics.Metrics
}

// Option configures a Bank.
type Option func(*Bank)

// WithRent sets the rent parameters exposed through the rent sysvar.
func WithRent(rent sysvar.Rent) Option {
	return func(b *Bank) { b.rent = rent }
}

// WithSignatureVerification toggles ed25519 verification of incoming
// transactions. It is on by default.
func WithSignatureVerification(enabled bool) Option {
	return func(b *Bank) { b.verifySignatures = enabled }
}

// WithLogger sets the bank logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bank) { b.logger = logger }
}

// WithMetrics records transaction, instruction and airdrop counters in m
// and exposes the account count as a gauge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bank) { b.metrics = m }
}

// WithRegistry replaces the default program registry.
func WithRegistry(registry *ProgramRegistry) Option {
	return func(b *Bank) { b.registry = registry }
}

// New creates a bank over db and installs the native mint if the store
// does not hold it yet.
func New(db accounts.AccountsDB, opts ...Option) (*Bank, error) {
	b := &Bank{
		db:               db,
		rent:             sysvar.DefaultRent(),
		verifySignatures: true,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = NewProgramRegistry()
		RegisterNativePrograms(b.registry, b.rent)
	}
	if err := b.installNativeMint(); err != nil {
		return nil, fmt.Errorf("install native mint: %w", err)
	}
	if err := b.metrics.TrackAccounts(db.GetAccountsCount); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return b, nil
}

func (b *Bank) installNativeMint() error {
	if b.db.HasAccount(types.NativeMintID) {
		return nil
	}
	mint := &token.Mint{Decimals: token.NativeDecimals, IsInitialized: true}
	account := &types.Account{
		Lamports: types.Lamports(b.rent.MinimumBalance(token.MintSize)),
		Data:     mint.Serialize(),
		Owner:    types.TokenProgramID,
	}
	b.logger.Info().Str("mint", types.NativeMintID.String()).Msg("installing native mint")
	return b.db.SetAccount(types.NativeMintID, account)
}

// Registry returns the program registry.
func (b *Bank) Registry() *ProgramRegistry {
	return b.registry
}

// Rent returns the rent parameters of the bank.
func (b *Bank) Rent() sysvar.Rent {
	return b.rent
}

// GetAccount returns the stored account at pubkey, or nil if none exists.
// The rent sysvar is synthesized.
func (b *Bank) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	if pubkey == types.SysvarRentID {
		return b.rent.Account(), nil
	}
	return b.db.GetAccount(pubkey)
}

// GetMint decodes the mint stored at pubkey.
func (b *Bank) GetMint(pubkey types.Pubkey) (*token.Mint, error) {
	account, err := b.tokenOwned(pubkey)
	if err != nil {
		return nil, err
	}
	return token.DeserializeMint(account.Data)
}

// GetTokenAccount decodes the token account stored at pubkey.
func (b *Bank) GetTokenAccount(pubkey types.Pubkey) (*token.Account, error) {
	account, err := b.tokenOwned(pubkey)
	if err != nil {
		return nil, err
	}
	return token.DeserializeAccount(account.Data)
}

func (b *Bank) tokenOwned(pubkey types.Pubkey) (*types.Account, error) {
	account, err := b.db.GetAccount(pubkey)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	if account.Owner != types.TokenProgramID {
		return nil, fmt.Errorf("%w: %s", ErrNotTokenAccount, pubkey)
	}
	return account, nil
}

// StateRoot returns the Merkle root over all stored accounts.
func (b *Bank) StateRoot() (types.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return accounts.StateRoot(b.db)
}

// Airdrop credits lamports to a system-owned account outside any program.
func (b *Bank) Airdrop(ctx context.Context, pubkey types.Pubkey, lamports uint64) (*types.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	account, err := b.db.GetAccount(pubkey)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = types.NewAccount(0, types.SystemProgramID)
	}
	if account.Owner != types.SystemProgramID {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrAirdropTargetOwned, pubkey, account.Owner)
	}
	sum, carry := bits.Add64(uint64(account.Lamports), lamports, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: %s", ErrLamportOverflow, pubkey)
	}
	account.Lamports = types.Lamports(sum)
	if err := b.db.SetAccount(pubkey, account); err != nil {
		return nil, err
	}

	b.metrics.RecordAirdrop(lamports)
	b.logger.Debug().
		Str("pubkey", pubkey.String()).
		Uint64("lamports", lamports).
		Uint64("balance", sum).
		Msg("airdrop")
	return account, nil
}
