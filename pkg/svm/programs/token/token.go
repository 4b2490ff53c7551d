// Package token implements the fungible token program of the ledger.
//
// The program owns two fixed-length record kinds:
//   - Mint: a token type with its supply, decimals and authorities
//   - Account: a balance of one mint held by one owner
//
// Every instruction runs synchronously on the account list supplied by the
// host. A handler either mutates the account buffers and returns nil, or
// returns the first failing check; the host discards all mutations of a
// failed transaction.
package token

import (
	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// TokenProgram is the token instruction processor.
type TokenProgram struct {
	// ProgramID is the key that must own every mint and token account.
	ProgramID types.Pubkey
}

// New creates a TokenProgram at the well-known token program address.
func New() *TokenProgram {
	return NewWithProgramID(types.TokenProgramID)
}

// NewWithProgramID creates a TokenProgram deployed at programID.
func NewWithProgramID(programID types.Pubkey) *TokenProgram {
	return &TokenProgram{ProgramID: programID}
}

// GetProgramID returns the program's public key.
func (p *TokenProgram) GetProgramID() types.Pubkey {
	return p.ProgramID
}

// Execute decodes and processes one token instruction.
func (p *TokenProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	decoded, err := Unpack(instruction.Data)
	if err != nil {
		return err
	}

	switch inst := decoded.(type) {
	case *InitializeMintInstruction:
		ctx.Logf("Instruction: InitializeMint")
		return p.handleInitializeMint(ctx, inst)
	case *InitializeAccountInstruction:
		ctx.Logf("Instruction: InitializeAccount")
		return p.handleInitializeAccount(ctx)
	case *TransferInstruction:
		ctx.Logf("Instruction: Transfer")
		return p.handleTransfer(ctx, inst.Amount, nil)
	case *TransferCheckedInstruction:
		ctx.Logf("Instruction: TransferChecked")
		return p.handleTransfer(ctx, inst.Amount, &inst.Decimals)
	case *ApproveInstruction:
		ctx.Logf("Instruction: Approve")
		return p.handleApprove(ctx, inst)
	case *RevokeInstruction:
		ctx.Logf("Instruction: Revoke")
		return p.handleRevoke(ctx)
	case *SetAuthorityInstruction:
		ctx.Logf("Instruction: SetAuthority")
		return p.handleSetAuthority(ctx, inst)
	case *MintToInstruction:
		ctx.Logf("Instruction: MintTo")
		return p.handleMintTo(ctx, inst)
	case *BurnInstruction:
		ctx.Logf("Instruction: Burn")
		return p.handleBurn(ctx, inst)
	case *CloseAccountInstruction:
		ctx.Logf("Instruction: CloseAccount")
		return p.handleCloseAccount(ctx)
	case *FreezeAccountInstruction:
		ctx.Logf("Instruction: FreezeAccount")
		return p.handleSetFrozen(ctx, true)
	case *ThawAccountInstruction:
		ctx.Logf("Instruction: ThawAccount")
		return p.handleSetFrozen(ctx, false)
	case *SyncNativeInstruction:
		ctx.Logf("Instruction: SyncNative")
		return p.handleSyncNative(ctx)
	default:
		return ErrInvalidInstruction
	}
}

// IsTokenProgram reports whether pubkey is the well-known token program.
func IsTokenProgram(pubkey types.Pubkey) bool {
	return pubkey == types.TokenProgramID
}
