// Package system implements the subset of the system program the ledger
// needs to allocate rent-exempt record buffers and move lamports.
//
// All accounts are owned by the system program until assigned to another
// program.
package system

import (
	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// SystemProgram implements the system program.
type SystemProgram struct {
	// ProgramID is the system program's public key.
	ProgramID types.Pubkey

	// Rent prices new accounts.
	Rent sysvar.Rent
}

// New creates a SystemProgram that prices accounts with rent.
func New(rent sysvar.Rent) *SystemProgram {
	return &SystemProgram{
		ProgramID: types.SystemProgramID,
		Rent:      rent,
	}
}

// GetProgramID returns the system program's public key.
func (p *SystemProgram) GetProgramID() types.Pubkey {
	return p.ProgramID
}

// Execute decodes and processes one system instruction.
// The first 4 bytes of the data are a little-endian discriminator.
func (p *SystemProgram) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	decoded, err := decode(instruction.Data)
	if err != nil {
		return err
	}

	switch inst := decoded.(type) {
	case *CreateAccountInstruction:
		return p.handleCreateAccount(ctx, inst)
	case *AssignInstruction:
		return p.handleAssign(ctx, inst)
	case *TransferInstruction:
		return p.handleTransfer(ctx, inst)
	case *AllocateInstruction:
		return p.handleAllocate(ctx, inst)
	default:
		return ErrInvalidInstructionData
	}
}

// IsSystemProgram checks if a pubkey is the system program.
func IsSystemProgram(pubkey types.Pubkey) bool {
	return pubkey == types.SystemProgramID
}
