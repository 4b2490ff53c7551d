package system

import (
	"fmt"
	"math/bits"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
)

// MaxAccountDataSize is the largest buffer Allocate and CreateAccount hand out.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

func accountsAt(ctx *syscall.ExecutionContext, name string, n int) ([]*syscall.AccountInfo, error) {
	if ctx.AccountCount() < n {
		return nil, fmt.Errorf("%w: %s requires %d accounts, got %d",
			ErrNotEnoughAccountKeys, name, n, ctx.AccountCount())
	}
	return ctx.Accounts[:n], nil
}

func requireSignerWritable(acc *syscall.AccountInfo, role string) error {
	if !acc.IsSigner {
		return fmt.Errorf("%w: %s %s", ErrAccountNotSigner, role, acc.Pubkey)
	}
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s %s", ErrAccountNotWritable, role, acc.Pubkey)
	}
	return nil
}

// move debits from and credits to with overflow checking.
func move(from, to *syscall.AccountInfo, lamports uint64) error {
	if *from.Lamports < lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, lamports, *from.Lamports)
	}
	credited, carry := bits.Add64(*to.Lamports, lamports, 0)
	if carry != 0 {
		return ErrLamportOverflow
	}
	*from.Lamports -= lamports
	*to.Lamports = credited
	return nil
}

func (p *SystemProgram) handleCreateAccount(ctx *syscall.ExecutionContext, inst *CreateAccountInstruction) error {
	accs, err := accountsAt(ctx, "CreateAccount", 2)
	if err != nil {
		return err
	}
	fundingAcc, newAcc := accs[0], accs[1]

	if err := requireSignerWritable(fundingAcc, "funding account"); err != nil {
		return err
	}
	if err := requireSignerWritable(newAcc, "new account"); err != nil {
		return err
	}
	if fundingAcc.Pubkey == newAcc.Pubkey {
		return fmt.Errorf("%w: funding and new account are the same", ErrAccountAlreadyExists)
	}
	if *newAcc.Lamports > 0 || len(newAcc.Data) > 0 || newAcc.Owner != p.ProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, newAcc.Pubkey)
	}
	if inst.Space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	minimum := p.Rent.MinimumBalance(inst.Space)
	if inst.Lamports < minimum {
		return fmt.Errorf("%w: need %d lamports for %d bytes", ErrAccountNotRentExempt, minimum, inst.Space)
	}
	if fundingAcc.Owner != p.ProgramID {
		return fmt.Errorf("%w: funding account is owned by %s", ErrInvalidAccountOwner, fundingAcc.Owner)
	}

	if err := move(fundingAcc, newAcc, inst.Lamports); err != nil {
		return err
	}
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner

	ctx.Logf("CreateAccount: %s space=%d owner=%s", newAcc.Pubkey, inst.Space, inst.Owner)
	return nil
}

func (p *SystemProgram) handleAssign(ctx *syscall.ExecutionContext, inst *AssignInstruction) error {
	accs, err := accountsAt(ctx, "Assign", 1)
	if err != nil {
		return err
	}
	acc := accs[0]

	if err := requireSignerWritable(acc, "account"); err != nil {
		return err
	}
	if acc.Owner != p.ProgramID {
		return fmt.Errorf("%w: account must be owned by the system program", ErrInvalidAccountOwner)
	}

	acc.Owner = inst.Owner
	ctx.Logf("Assign: %s owner=%s", acc.Pubkey, inst.Owner)
	return nil
}

func (p *SystemProgram) handleTransfer(ctx *syscall.ExecutionContext, inst *TransferInstruction) error {
	accs, err := accountsAt(ctx, "Transfer", 2)
	if err != nil {
		return err
	}
	sourceAcc, destAcc := accs[0], accs[1]

	if err := requireSignerWritable(sourceAcc, "source"); err != nil {
		return err
	}
	if !destAcc.IsWritable {
		return fmt.Errorf("%w: destination %s", ErrAccountNotWritable, destAcc.Pubkey)
	}
	if sourceAcc.Owner != p.ProgramID || len(sourceAcc.Data) > 0 {
		return fmt.Errorf("%w: source must be a data-less system account", ErrInvalidAccountOwner)
	}
	if sourceAcc.Pubkey == destAcc.Pubkey {
		if *sourceAcc.Lamports < inst.Lamports {
			return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *sourceAcc.Lamports)
		}
		return nil
	}

	if err := move(sourceAcc, destAcc, inst.Lamports); err != nil {
		return err
	}
	ctx.Logf("Transfer: %d lamports %s -> %s", inst.Lamports, sourceAcc.Pubkey, destAcc.Pubkey)
	return nil
}

func (p *SystemProgram) handleAllocate(ctx *syscall.ExecutionContext, inst *AllocateInstruction) error {
	accs, err := accountsAt(ctx, "Allocate", 1)
	if err != nil {
		return err
	}
	acc := accs[0]

	if err := requireSignerWritable(acc, "account"); err != nil {
		return err
	}
	if len(acc.Data) > 0 || acc.Owner != p.ProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, acc.Pubkey)
	}
	if inst.Space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	acc.Data = make([]byte, inst.Space)
	ctx.Logf("Allocate: %s space=%d", acc.Pubkey, inst.Space)
	return nil
}
