package bank

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-tokenledger/pkg/accounts"
	"github.com/fortiblox/x1-tokenledger/pkg/crypto"
	"github.com/fortiblox/x1-tokenledger/pkg/metrics"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/system"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

const payerFunds = 10_000_000_000

type harness struct {
	t     *testing.T
	bank  *Bank
	db    accounts.AccountsDB
	payer *crypto.Keypair
}

func keypair(t *testing.T, seed string) *crypto.Keypair {
	t.Helper()
	s := sha256.Sum256([]byte(seed))
	kp, err := crypto.KeypairFromSeed(s[:])
	require.NoError(t, err)
	return kp
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db := accounts.NewMemoryDB()
	b, err := New(db, opts...)
	require.NoError(t, err)
	h := &harness{t: t, bank: b, db: db, payer: keypair(t, "payer")}
	_, err = b.Airdrop(context.Background(), h.payer.Pubkey(), payerFunds)
	require.NoError(t, err)
	return h
}

func (h *harness) process(signers []*crypto.Keypair, ixs ...*types.Instruction) *TransactionResult {
	h.t.Helper()
	result, err := h.bank.ProcessInstructions(context.Background(), h.payer, signers, ixs...)
	require.NoError(h.t, err)
	return result
}

func (h *harness) mustProcess(signers []*crypto.Keypair, ixs ...*types.Instruction) *TransactionResult {
	h.t.Helper()
	result := h.process(signers, ixs...)
	require.NoError(h.t, result.Err, "logs: %v", result.Logs)
	return result
}

func (h *harness) createMint(seed string, authority types.Pubkey, decimals uint8, freeze token.COption) types.Pubkey {
	h.t.Helper()
	mint := keypair(h.t, seed)
	h.mustProcess([]*crypto.Keypair{mint},
		system.NewCreateAccountInstruction(h.payer.Pubkey(), mint.Pubkey(),
			h.bank.Rent().MinimumBalance(token.MintSize), token.MintSize, types.TokenProgramID),
		token.NewInitializeMintInstruction(mint.Pubkey(), decimals, authority, freeze),
	)
	return mint.Pubkey()
}

func (h *harness) createTokenAccount(seed string, mint, owner types.Pubkey, extraLamports uint64) types.Pubkey {
	h.t.Helper()
	acct := keypair(h.t, seed)
	h.mustProcess([]*crypto.Keypair{acct},
		system.NewCreateAccountInstruction(h.payer.Pubkey(), acct.Pubkey(),
			h.bank.Rent().MinimumBalance(token.AccountSize)+extraLamports, token.AccountSize, types.TokenProgramID),
		token.NewInitializeAccountInstruction(acct.Pubkey(), mint, owner),
	)
	return acct.Pubkey()
}

func (h *harness) tokenAccount(pk types.Pubkey) *token.Account {
	h.t.Helper()
	acct, err := h.bank.GetTokenAccount(pk)
	require.NoError(h.t, err)
	return acct
}

func (h *harness) lamports(pk types.Pubkey) uint64 {
	h.t.Helper()
	acct, err := h.db.GetAccount(pk)
	require.NoError(h.t, err)
	if acct == nil {
		return 0
	}
	return uint64(acct.Lamports)
}

func TestNew_InstallsNativeMint(t *testing.T) {
	db := accounts.NewMemoryDB()
	b, err := New(db)
	require.NoError(t, err)

	mint, err := b.GetMint(types.NativeMintID)
	require.NoError(t, err)
	assert.Equal(t, uint8(token.NativeDecimals), mint.Decimals)
	assert.False(t, mint.MintAuthority.IsSome)
	assert.False(t, mint.FreezeAuthority.IsSome)
	assert.Zero(t, mint.Supply)

	before, err := b.StateRoot()
	require.NoError(t, err)
	_, err = New(db)
	require.NoError(t, err)
	after, err := b.StateRoot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAirdrop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	target := keypair(t, "target").Pubkey()

	acct, err := h.bank.Airdrop(ctx, target, 500)
	require.NoError(t, err)
	assert.Equal(t, types.Lamports(500), acct.Lamports)
	assert.Equal(t, uint64(500), h.lamports(target))

	_, err = h.bank.Airdrop(ctx, target, math.MaxUint64)
	assert.ErrorIs(t, err, ErrLamportOverflow)
	assert.Equal(t, uint64(500), h.lamports(target))

	_, err = h.bank.Airdrop(ctx, types.NativeMintID, 1)
	assert.ErrorIs(t, err, ErrAirdropTargetOwned)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.bank.Airdrop(cancelled, target, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenLifecycle(t *testing.T) {
	h := newHarness(t)
	authority := keypair(t, "authority")
	alice, bob := keypair(t, "alice"), keypair(t, "bob")

	mint := h.createMint("mint", authority.Pubkey(), 6, token.COption{})
	aliceAcct := h.createTokenAccount("alice-acct", mint, alice.Pubkey(), 0)
	bobAcct := h.createTokenAccount("bob-acct", mint, bob.Pubkey(), 0)

	result := h.mustProcess([]*crypto.Keypair{authority},
		token.NewMintToInstruction(mint, aliceAcct, authority.Pubkey(), 1_000))
	assert.Contains(t, result.Logs, "Program Token Program invoke")
	assert.Contains(t, result.Logs, "Instruction: MintTo")
	assert.Len(t, result.Deltas, 2)
	assert.Equal(t, -1, result.InstructionIndex)

	h.mustProcess([]*crypto.Keypair{alice},
		token.NewTransferInstruction(aliceAcct, bobAcct, alice.Pubkey(), 300),
		token.NewTransferCheckedInstruction(aliceAcct, mint, bobAcct, alice.Pubkey(), 50, 6),
	)
	h.mustProcess([]*crypto.Keypair{bob},
		token.NewBurnInstruction(bobAcct, mint, bob.Pubkey(), 100))

	assert.Equal(t, uint64(650), h.tokenAccount(aliceAcct).Amount)
	assert.Equal(t, uint64(250), h.tokenAccount(bobAcct).Amount)
	m, err := h.bank.GetMint(mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), m.Supply)

	h.mustProcess([]*crypto.Keypair{bob},
		token.NewTransferInstruction(bobAcct, aliceAcct, bob.Pubkey(), 250),
		token.NewCloseAccountInstruction(bobAcct, bob.Pubkey(), bob.Pubkey()),
	)
	assert.False(t, h.db.HasAccount(bobAcct), "closed accounts are removed")
	assert.Equal(t, h.bank.Rent().MinimumBalance(token.AccountSize), h.lamports(bob.Pubkey()))
}

func TestFailedTransactionRollsBack(t *testing.T) {
	h := newHarness(t)
	authority := keypair(t, "authority")
	alice, bob := keypair(t, "alice"), keypair(t, "bob")

	mint := h.createMint("mint", authority.Pubkey(), 2, token.COption{})
	aliceAcct := h.createTokenAccount("alice-acct", mint, alice.Pubkey(), 0)
	bobAcct := h.createTokenAccount("bob-acct", mint, bob.Pubkey(), 0)
	h.mustProcess([]*crypto.Keypair{authority},
		token.NewMintToInstruction(mint, aliceAcct, authority.Pubkey(), 100))

	rootBefore, err := h.bank.StateRoot()
	require.NoError(t, err)
	countBefore := h.db.GetAccountsCount()

	result := h.process([]*crypto.Keypair{alice},
		token.NewTransferInstruction(aliceAcct, bobAcct, alice.Pubkey(), 60),
		token.NewTransferInstruction(aliceAcct, bobAcct, alice.Pubkey(), 60),
	)
	require.Error(t, result.Err)
	assert.False(t, result.Succeeded())
	assert.Equal(t, 1, result.InstructionIndex)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, token.ErrInsufficientFunds.Code(), *result.ErrorCode)
	assert.ErrorIs(t, result.Err, token.ErrInsufficientFunds)
	assert.Empty(t, result.Deltas)

	var ixErr *InstructionError
	require.True(t, errors.As(result.Err, &ixErr))
	assert.Equal(t, 1, ixErr.Index)
	assert.Equal(t, types.TokenProgramID, ixErr.ProgramID)

	rootAfter, err := h.bank.StateRoot()
	require.NoError(t, err)
	assert.Equal(t, rootBefore, rootAfter)
	assert.Equal(t, countBefore, h.db.GetAccountsCount())
	assert.Equal(t, uint64(100), h.tokenAccount(aliceAcct).Amount)
}

func TestFailedCreateLeavesNoAccount(t *testing.T) {
	h := newHarness(t)
	acct := keypair(t, "orphan")
	forged := keypair(t, "forged-mint").Pubkey()
	payerBefore := h.lamports(h.payer.Pubkey())

	result := h.process([]*crypto.Keypair{acct},
		system.NewCreateAccountInstruction(h.payer.Pubkey(), acct.Pubkey(),
			h.bank.Rent().MinimumBalance(token.AccountSize), token.AccountSize, types.TokenProgramID),
		token.NewInitializeAccountInstruction(acct.Pubkey(), forged, h.payer.Pubkey()),
	)
	assert.ErrorIs(t, result.Err, token.ErrInvalidMint)
	assert.Equal(t, 1, result.InstructionIndex)
	assert.False(t, h.db.HasAccount(acct.Pubkey()))
	assert.Equal(t, payerBefore, h.lamports(h.payer.Pubkey()))
}

func TestWrappedNative(t *testing.T) {
	h := newHarness(t)
	alice := keypair(t, "alice")
	reserve := h.bank.Rent().MinimumBalance(token.AccountSize)

	wrapped := h.createTokenAccount("wrapped", types.NativeMintID, alice.Pubkey(), 5_000)
	acct := h.tokenAccount(wrapped)
	assert.Equal(t, uint64(5_000), acct.Amount)
	require.True(t, acct.IsNative.IsSome)
	assert.Equal(t, reserve, acct.IsNative.Value)

	h.mustProcess(nil,
		system.NewTransferInstruction(h.payer.Pubkey(), wrapped, 2_000),
		token.NewSyncNativeInstruction(wrapped),
	)
	assert.Equal(t, uint64(7_000), h.tokenAccount(wrapped).Amount)

	h.mustProcess([]*crypto.Keypair{alice},
		token.NewCloseAccountInstruction(wrapped, alice.Pubkey(), alice.Pubkey()))
	assert.False(t, h.db.HasAccount(wrapped))
	assert.Equal(t, reserve+7_000, h.lamports(alice.Pubkey()))
}

func TestWrappedNativeTransferMovesLamports(t *testing.T) {
	h := newHarness(t)
	alice, bob := keypair(t, "alice"), keypair(t, "bob")
	reserve := h.bank.Rent().MinimumBalance(token.AccountSize)

	a := h.createTokenAccount("wrapped-a", types.NativeMintID, alice.Pubkey(), 5_000)
	b := h.createTokenAccount("wrapped-b", types.NativeMintID, bob.Pubkey(), 0)

	h.mustProcess([]*crypto.Keypair{alice},
		token.NewTransferInstruction(a, b, alice.Pubkey(), 5_000))
	assert.Equal(t, reserve, h.lamports(a))
	assert.Equal(t, reserve+5_000, h.lamports(b))

	h.mustProcess(nil,
		token.NewSyncNativeInstruction(a),
		token.NewSyncNativeInstruction(b),
	)
	assert.Equal(t, uint64(0), h.tokenAccount(a).Amount)
	assert.Equal(t, uint64(5_000), h.tokenAccount(b).Amount)
}

func TestSignatureVerification(t *testing.T) {
	h := newHarness(t)
	to := keypair(t, "to").Pubkey()

	msg, err := types.NewMessage(h.payer.Pubkey(), types.ZeroHash,
		system.NewTransferInstruction(h.payer.Pubkey(), to, 10))
	require.NoError(t, err)
	tx, err := crypto.SignTransaction(msg, h.payer)
	require.NoError(t, err)
	tx.Signatures[0][0] ^= 0xff

	result, err := h.bank.ProcessTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, ErrSignatureVerification)
	assert.Nil(t, result.ErrorCode)
	assert.Equal(t, uint64(0), h.lamports(to))

	unchecked, err := New(h.db, WithSignatureVerification(false))
	require.NoError(t, err)
	result, err = unchecked.ProcessTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, uint64(10), h.lamports(to))
}

func TestProcessTransaction_Rejections(t *testing.T) {
	h := newHarness(t, WithSignatureVerification(false))
	ctx := context.Background()

	_, err := h.bank.ProcessTransaction(ctx, nil)
	assert.ErrorIs(t, err, ErrNilTransaction)

	empty := &types.Transaction{Message: types.Message{AccountKeys: []types.Pubkey{h.payer.Pubkey()}}}
	result, err := h.bank.ProcessTransaction(ctx, empty)
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, ErrNoInstructions)

	payer := h.payer.Pubkey()
	dup := &types.Transaction{Message: types.Message{
		Header:       types.MessageHeader{NumRequiredSignatures: 1},
		AccountKeys:  []types.Pubkey{payer, payer, types.SystemProgramID},
		Instructions: []types.CompiledInstruction{{ProgramIDIndex: 2, AccountIndices: []uint8{0, 1}, Data: []byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}}},
	}}
	result, err = h.bank.ProcessTransaction(ctx, dup)
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, ErrDuplicateAccountKey)

	unknown := keypair(t, "unknown-program").Pubkey()
	result = h.process(nil, &types.Instruction{ProgramID: unknown, Accounts: []types.AccountMeta{{Pubkey: payer, IsWritable: true}}})
	assert.ErrorIs(t, result.Err, ErrProgramNotFound)
	assert.Equal(t, 0, result.InstructionIndex)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	msg, err := types.NewMessage(payer, types.ZeroHash, system.NewTransferInstruction(payer, unknown, 1))
	require.NoError(t, err)
	_, err = h.bank.ProcessTransaction(cancelled, &types.Transaction{Message: *msg})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOwnershipAudit(t *testing.T) {
	rogueID := keypair(t, "rogue-program").Pubkey()
	var behaviour func(ctx *syscall.ExecutionContext) error

	registry := NewProgramRegistry()
	RegisterNativePrograms(registry, sysvar.DefaultRent())
	registry.RegisterProgram(rogueID, "Rogue", ProgramExecutorFunc(func(ctx *syscall.ExecutionContext, _ *types.Instruction) error {
		return behaviour(ctx)
	}))
	h := newHarness(t, WithRegistry(registry))
	mint := h.createMint("mint", h.payer.Pubkey(), 0, token.COption{})
	victim := keypair(t, "victim").Pubkey()
	_, err := h.bank.Airdrop(context.Background(), victim, 1_000)
	require.NoError(t, err)

	rogue := func(accounts ...types.AccountMeta) *types.Instruction {
		return &types.Instruction{ProgramID: rogueID, Accounts: accounts}
	}
	w := func(pk types.Pubkey) types.AccountMeta { return types.AccountMeta{Pubkey: pk, IsWritable: true} }

	cases := []struct {
		name      string
		behaviour func(ctx *syscall.ExecutionContext) error
		ix        *types.Instruction
		want      error
	}{
		{
			name: "data of foreign account",
			behaviour: func(ctx *syscall.ExecutionContext) error {
				ctx.Accounts[0].Data[0] ^= 1
				return nil
			},
			ix:   rogue(w(mint)),
			want: ErrExternalAccountModified,
		},
		{
			name: "debit of foreign account",
			behaviour: func(ctx *syscall.ExecutionContext) error {
				*ctx.Accounts[0].Lamports -= 10
				*ctx.Accounts[1].Lamports += 10
				return nil
			},
			ix:   rogue(w(victim), w(h.payer.Pubkey())),
			want: ErrExternalAccountModified,
		},
		{
			name: "owner reassignment",
			behaviour: func(ctx *syscall.ExecutionContext) error {
				ctx.Accounts[0].Owner = ctx.ProgramID
				return nil
			},
			ix:   rogue(w(victim)),
			want: ErrExternalAccountModified,
		},
		{
			name: "lamports from nowhere",
			behaviour: func(ctx *syscall.ExecutionContext) error {
				*ctx.Accounts[0].Lamports += 1
				return nil
			},
			ix:   rogue(w(victim)),
			want: ErrUnbalancedInstruction,
		},
		{
			name: "read-only account",
			behaviour: func(ctx *syscall.ExecutionContext) error {
				*ctx.Accounts[0].Lamports += 1
				*ctx.Accounts[1].Lamports -= 1
				return nil
			},
			ix:   rogue(types.AccountMeta{Pubkey: victim}, w(h.payer.Pubkey())),
			want: ErrExternalAccountModified,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before, err := h.bank.StateRoot()
			require.NoError(t, err)

			behaviour = tc.behaviour
			result := h.process(nil, tc.ix)
			assert.ErrorIs(t, result.Err, tc.want)
			assert.Nil(t, result.ErrorCode)

			after, err := h.bank.StateRoot()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestProgramRegistry(t *testing.T) {
	registry := NewProgramRegistry()
	RegisterNativePrograms(registry, sysvar.DefaultRent())

	assert.Equal(t, 2, registry.Count())
	assert.True(t, registry.HasProgram(types.TokenProgramID))
	assert.Equal(t, "System Program", registry.GetProgramName(types.SystemProgramID))

	other := keypair(t, "other").Pubkey()
	registry.RegisterProgram(other, "", ProgramExecutorFunc(func(*syscall.ExecutionContext, *types.Instruction) error { return nil }))
	assert.Equal(t, other.String(), registry.GetProgramName(other))

	ids := registry.ListPrograms()
	require.Len(t, ids, 3)
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1].Less(ids[i]))
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	h := newHarness(t, WithMetrics(m))
	authority := keypair(t, "authority")
	alice := keypair(t, "alice")

	mint := h.createMint("mint", authority.Pubkey(), 0, token.COption{})
	acct := h.createTokenAccount("acct", mint, alice.Pubkey(), 0)
	result := h.process([]*crypto.Keypair{alice},
		token.NewTransferInstruction(acct, acct, alice.Pubkey(), 0),
		token.NewBurnInstruction(acct, mint, alice.Pubkey(), 1),
	)
	require.Error(t, result.Err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransactionsProcessed.WithLabelValues(metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsProcessed.WithLabelValues(metrics.StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionErrors.WithLabelValues("2")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstructionsExecuted.WithLabelValues("System Program")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.InstructionsExecuted.WithLabelValues("Token Program")))
	assert.Equal(t, float64(payerFunds), testutil.ToFloat64(m.AirdropLamports))

	_, err := New(h.db, WithMetrics(m))
	assert.Error(t, err, "a registry tracks one store")
}
