package token

import (
	"fmt"
	"math/bits"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// authorityKind records which role authorized an account operation.
type authorityKind int

const (
	ownerAuthority authorityKind = iota
	delegateAuthority
)

// accountsAt returns the first n instruction accounts.
func accountsAt(ctx *syscall.ExecutionContext, name string, n int) ([]*syscall.AccountInfo, error) {
	if ctx.AccountCount() < n {
		return nil, fmt.Errorf("%w: %s requires %d accounts, got %d",
			ErrNotEnoughAccountKeys, name, n, ctx.AccountCount())
	}
	return ctx.Accounts[:n], nil
}

// checkProgramAccount requires the record's storage to be owned by this program.
func (p *TokenProgram) checkProgramAccount(acc *syscall.AccountInfo) error {
	if acc.Owner != p.ProgramID {
		return fmt.Errorf("%w: %s is owned by %s", ErrIncorrectProgramID, acc.Pubkey, acc.Owner)
	}
	return nil
}

func checkWritable(acc *syscall.AccountInfo) error {
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s is not writable", ErrInvalidOwner, acc.Pubkey)
	}
	return nil
}

// validateOwner requires authority to be expected and a signer.
func validateOwner(expected types.Pubkey, authority *syscall.AccountInfo) error {
	if authority.Pubkey != expected {
		return fmt.Errorf("%w: %s is not the authority", ErrInvalidOwner, authority.Pubkey)
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: %s did not sign", ErrInvalidOwner, authority.Pubkey)
	}
	return nil
}

// validateOptionalAuthority is validateOwner for authorities that may be
// absent. An absent authority fails with whenNone.
func validateOptionalAuthority(current COption, authority *syscall.AccountInfo, whenNone error) error {
	if !current.IsSome {
		return whenNone
	}
	return validateOwner(current.Value, authority)
}

// resolveAuthority decides whether authority may move amount out of
// account: as the signing owner, or as the signing delegate when amount
// is within the delegated allowance.
func resolveAuthority(account *Account, authority *syscall.AccountInfo, amount uint64) (authorityKind, error) {
	switch {
	case authority.Pubkey == account.Owner:
		if !authority.IsSigner {
			return 0, fmt.Errorf("%w: owner did not sign", ErrInvalidOwner)
		}
		return ownerAuthority, nil
	case account.Delegate.Is(authority.Pubkey):
		if !authority.IsSigner {
			return 0, fmt.Errorf("%w: delegate did not sign", ErrInvalidOwner)
		}
		if amount > account.DelegatedAmount {
			return 0, fmt.Errorf("%w: amount %d exceeds delegated amount %d",
				ErrInvalidOwner, amount, account.DelegatedAmount)
		}
		return delegateAuthority, nil
	default:
		return 0, fmt.Errorf("%w: %s is neither owner nor delegate", ErrInvalidOwner, authority.Pubkey)
	}
}

func checkNotFrozen(account *Account) error {
	if account.IsFrozen {
		return ErrAccountFrozen
	}
	return nil
}

// checkMint requires account to belong to the mint at mintKey.
func checkMint(account *Account, mintKey types.Pubkey) error {
	if account.Mint != mintKey {
		return fmt.Errorf("%w: account mint %s, expected %s", ErrMintMismatch, account.Mint, mintKey)
	}
	return nil
}

func checkDecimals(mint *Mint, decimals uint8) error {
	if mint.Decimals != decimals {
		return fmt.Errorf("%w: mint has %d decimals, instruction has %d",
			ErrMintDecimalsMismatch, mint.Decimals, decimals)
	}
	return nil
}

// readRent decodes the rent sysvar passed as an instruction account.
func readRent(acc *syscall.AccountInfo) (sysvar.Rent, error) {
	if acc.Pubkey != types.SysvarRentID {
		return sysvar.Rent{}, fmt.Errorf("%w: expected rent sysvar, got %s", ErrInvalidAccountData, acc.Pubkey)
	}
	rent, err := sysvar.DecodeRent(acc.Data)
	if err != nil {
		return sysvar.Rent{}, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return rent, nil
}

func checkRentExempt(rent sysvar.Rent, acc *syscall.AccountInfo) error {
	if !rent.IsExempt(types.Lamports(*acc.Lamports), uint64(len(acc.Data))) {
		return fmt.Errorf("%w: %d lamports, need %d",
			ErrNotRentExempt, *acc.Lamports, rent.MinimumBalance(uint64(len(acc.Data))))
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}
