package bank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fortiblox/x1-tokenledger/pkg/crypto"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Executor errors
var (
	// ErrNilTransaction indicates ProcessTransaction was called without a transaction.
	ErrNilTransaction = errors.New("nil transaction")

	// ErrNoInstructions indicates the transaction carries no instructions.
	ErrNoInstructions = errors.New("transaction has no instructions")

	// ErrSignatureVerification indicates a transaction signature did not verify.
	ErrSignatureVerification = errors.New("transaction signature verification failed")

	// ErrDuplicateAccountKey indicates a message lists the same key twice.
	ErrDuplicateAccountKey = errors.New("account key loaded twice")

	// ErrInvalidInstruction indicates a compiled instruction references
	// keys outside the message.
	ErrInvalidInstruction = errors.New("invalid compiled instruction")

	// ErrExternalAccountModified indicates a program changed an account it
	// may not change: data or owner of an account it does not own, lamports
	// debited from such an account, or any change to a read-only account.
	ErrExternalAccountModified = errors.New("program modified an account it does not own")

	// ErrUnbalancedInstruction indicates an instruction created or destroyed lamports.
	ErrUnbalancedInstruction = errors.New("instruction changed the total lamport balance")
)

// ProcessTransaction executes tx atomically. Transaction failures are
// reported in the result and leave the store untouched. The returned error
// is reserved for host faults: a nil transaction, a cancelled context or a
// storage error.
func (b *Bank) ProcessTransaction(ctx context.Context, tx *types.Transaction) (*TransactionResult, error) {
	start := time.Now()
	result, err := b.processTransaction(ctx, tx)
	if err == nil {
		b.metrics.RecordTransaction(!result.Succeeded(), result.ErrorCode, time.Since(start))
	}
	return result, err
}

func (b *Bank) processTransaction(ctx context.Context, tx *types.Transaction) (*TransactionResult, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := newResult(tx)

	if len(tx.Message.Instructions) == 0 {
		return b.fail(result, ErrNoInstructions), nil
	}
	if b.verifySignatures {
		if err := crypto.VerifyTransaction(tx); err != nil {
			return b.fail(result, fmt.Errorf("%w: %v", ErrSignatureVerification, err)), nil
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	infos, originals, err := b.loadAccounts(&tx.Message)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccountKey) {
			return b.fail(result, err), nil
		}
		return nil, err
	}

	for i := range tx.Message.Instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.executeInstruction(&tx.Message, i, infos, result); err != nil {
			result.InstructionIndex = i
			return b.fail(result, err), nil
		}
	}

	deltas := collectDeltas(tx.Message.AccountKeys, infos, originals)
	if err := b.db.Apply(deltas); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	result.Deltas = deltas

	b.logger.Debug().
		Str("signature", result.Signature.String()).
		Int("instructions", len(tx.Message.Instructions)).
		Int("deltas", len(deltas)).
		Msg("transaction committed")
	return result, nil
}

func (b *Bank) fail(result *TransactionResult, err error) *TransactionResult {
	result.Err = err
	if code, ok := token.ErrorCode(err); ok {
		result.ErrorCode = &code
	}

	event := b.logger.Warn().
		Str("signature", result.Signature.String()).
		Int("instruction", result.InstructionIndex).
		Err(err)
	if result.ErrorCode != nil {
		event = event.Uint32("code", *result.ErrorCode)
	}
	event.Msg("transaction failed")
	return result
}

// loadAccounts builds one working copy per message key. Every instruction
// position that names a key shares that key's copy.
func (b *Bank) loadAccounts(msg *types.Message) ([]*syscall.AccountInfo, []*types.Account, error) {
	infos := make([]*syscall.AccountInfo, len(msg.AccountKeys))
	originals := make([]*types.Account, len(msg.AccountKeys))
	seen := make(map[types.Pubkey]struct{}, len(msg.AccountKeys))

	for i, pubkey := range msg.AccountKeys {
		if _, dup := seen[pubkey]; dup {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateAccountKey, pubkey)
		}
		seen[pubkey] = struct{}{}

		writable := msg.IsWritable(i)
		var account *types.Account
		if pubkey == types.SysvarRentID {
			account = b.rent.Account()
			writable = false
		} else {
			stored, err := b.db.GetAccount(pubkey)
			if err != nil {
				return nil, nil, fmt.Errorf("load %s: %w", pubkey, err)
			}
			account = stored
		}
		if account == nil {
			account = types.NewAccount(0, types.SystemProgramID)
		}

		originals[i] = account
		infos[i] = syscall.NewAccountInfo(pubkey, account, msg.IsSigner(i), writable)
	}
	return infos, originals, nil
}

// accountState is the pre-instruction view used to audit a program.
type accountState struct {
	info     *syscall.AccountInfo
	lamports uint64
	owner    types.Pubkey
	data     []byte
}

func (b *Bank) executeInstruction(msg *types.Message, index int, infos []*syscall.AccountInfo, result *TransactionResult) error {
	compiled := &msg.Instructions[index]
	instruction, err := msg.Decompile(compiled)
	if err != nil {
		return &InstructionError{Index: index, Err: fmt.Errorf("%w: %v", ErrInvalidInstruction, err)}
	}
	programID := instruction.ProgramID
	name := b.registry.GetProgramName(programID)

	program, ok := b.registry.GetProgram(programID)
	if !ok {
		return &InstructionError{Index: index, ProgramID: programID, Err: fmt.Errorf("%w: %s", ErrProgramNotFound, programID)}
	}

	ixAccounts := make([]*syscall.AccountInfo, len(compiled.AccountIndices))
	var before []accountState
	audited := make(map[types.Pubkey]struct{}, len(compiled.AccountIndices))
	for i, idx := range compiled.AccountIndices {
		info := infos[idx]
		ixAccounts[i] = info
		if _, ok := audited[info.Pubkey]; ok {
			continue
		}
		audited[info.Pubkey] = struct{}{}
		before = append(before, accountState{
			info:     info,
			lamports: *info.Lamports,
			owner:    info.Owner,
			data:     bytes.Clone(info.Data),
		})
	}

	b.metrics.RecordInstruction(name)
	execCtx := syscall.NewExecutionContext(programID, ixAccounts, instruction.Data)
	result.Logs = append(result.Logs, fmt.Sprintf("Program %s invoke", name))
	err = program.Execute(execCtx, instruction)
	result.Logs = append(result.Logs, execCtx.GetLogs()...)
	if err == nil {
		err = auditInstruction(programID, before)
	}
	if err != nil {
		result.Logs = append(result.Logs, fmt.Sprintf("Program %s failed: %v", name, err))
		return &InstructionError{Index: index, ProgramID: programID, Err: err}
	}
	result.Logs = append(result.Logs, fmt.Sprintf("Program %s success", name))
	return nil
}

// auditInstruction enforces the ownership rules on every account an
// instruction touched and checks that lamports were conserved.
func auditInstruction(programID types.Pubkey, before []accountState) error {
	preTotal, postTotal := new(big.Int), new(big.Int)
	for _, pre := range before {
		info := pre.info
		post := *info.Lamports
		preTotal.Add(preTotal, new(big.Int).SetUint64(pre.lamports))
		postTotal.Add(postTotal, new(big.Int).SetUint64(post))

		dataChanged := !bytes.Equal(pre.data, info.Data)
		ownerChanged := pre.owner != info.Owner
		if !info.IsWritable && (dataChanged || ownerChanged || post != pre.lamports) {
			return fmt.Errorf("%w: %s is read-only", ErrExternalAccountModified, info.Pubkey)
		}
		if pre.owner == programID {
			continue
		}
		switch {
		case dataChanged:
			return fmt.Errorf("%w: data of %s", ErrExternalAccountModified, info.Pubkey)
		case ownerChanged:
			return fmt.Errorf("%w: owner of %s", ErrExternalAccountModified, info.Pubkey)
		case post < pre.lamports:
			return fmt.Errorf("%w: debit from %s", ErrExternalAccountModified, info.Pubkey)
		}
	}
	if preTotal.Cmp(postTotal) != 0 {
		return fmt.Errorf("%w: %s before, %s after", ErrUnbalancedInstruction, preTotal, postTotal)
	}
	return nil
}

// collectDeltas returns a delta for every writable account whose contents
// changed. Accounts left with no lamports become deletions.
func collectDeltas(keys []types.Pubkey, infos []*syscall.AccountInfo, originals []*types.Account) []types.AccountDelta {
	deltas := make([]types.AccountDelta, 0, len(keys))
	for i, info := range infos {
		if !info.IsWritable {
			continue
		}
		updated := info.ToAccount()
		if updated.Equal(originals[i]) {
			continue
		}
		delta := types.AccountDelta{Pubkey: keys[i], NewAccount: updated}
		if !originals[i].IsEmpty() {
			delta.OldAccount = originals[i]
		}
		if updated.Lamports == 0 {
			delta.NewAccount = nil
		}
		deltas = append(deltas, delta)
	}
	return deltas
}

// ProcessInstructions compiles ixs into a message paid by payer, signs it
// with payer and signers, and processes it.
func (b *Bank) ProcessInstructions(ctx context.Context, payer *crypto.Keypair, signers []*crypto.Keypair, ixs ...*types.Instruction) (*TransactionResult, error) {
	msg, err := types.NewMessage(payer.Pubkey(), types.ZeroHash, ixs...)
	if err != nil {
		return nil, fmt.Errorf("compile message: %w", err)
	}
	tx, err := crypto.SignTransaction(msg, append([]*crypto.Keypair{payer}, signers...)...)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return b.ProcessTransaction(ctx, tx)
}
