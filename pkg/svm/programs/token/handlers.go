package token

import (
	"fmt"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// handleInitializeMint initializes a mint record.
func (p *TokenProgram) handleInitializeMint(ctx *syscall.ExecutionContext, inst *InitializeMintInstruction) error {
	accs, err := accountsAt(ctx, "InitializeMint", 2)
	if err != nil {
		return err
	}
	mintAcc, rentAcc := accs[0], accs[1]

	if err := p.checkProgramAccount(mintAcc); err != nil {
		return err
	}
	if err := checkWritable(mintAcc); err != nil {
		return err
	}

	mint, err := DeserializeMintUnchecked(mintAcc.Data)
	if err != nil {
		return err
	}
	if mint.IsInitialized {
		return ErrAlreadyInitialized
	}

	rent, err := readRent(rentAcc)
	if err != nil {
		return err
	}
	if err := checkRentExempt(rent, mintAcc); err != nil {
		return err
	}

	mint.MintAuthority = Some(inst.MintAuthority)
	mint.Supply = 0
	mint.Decimals = inst.Decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = inst.FreezeAuthority

	copy(mintAcc.Data, mint.Serialize())
	ctx.Logf("InitializeMint: mint=%s decimals=%d", mintAcc.Pubkey, inst.Decimals)
	return nil
}

// handleInitializeAccount initializes a token account for a mint and owner.
func (p *TokenProgram) handleInitializeAccount(ctx *syscall.ExecutionContext) error {
	accs, err := accountsAt(ctx, "InitializeAccount", 4)
	if err != nil {
		return err
	}
	tokenAcc, mintAcc, ownerAcc, rentAcc := accs[0], accs[1], accs[2], accs[3]

	if err := p.checkProgramAccount(tokenAcc); err != nil {
		return err
	}
	if err := checkWritable(tokenAcc); err != nil {
		return err
	}

	if mintAcc.Owner != p.ProgramID {
		return fmt.Errorf("%w: mint %s is not owned by the token program", ErrInvalidMint, mintAcc.Pubkey)
	}
	mint, err := DeserializeMintUnchecked(mintAcc.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !mint.IsInitialized {
		return fmt.Errorf("%w: mint %s is not initialized", ErrInvalidMint, mintAcc.Pubkey)
	}

	account, err := DeserializeAccountUnchecked(tokenAcc.Data)
	if err != nil {
		return err
	}
	if account.IsInitialized {
		return ErrAlreadyInitialized
	}

	rent, err := readRent(rentAcc)
	if err != nil {
		return err
	}
	if err := checkRentExempt(rent, tokenAcc); err != nil {
		return err
	}

	account.Mint = mintAcc.Pubkey
	account.Owner = ownerAcc.Pubkey
	account.Delegate = COption{}
	account.DelegatedAmount = 0
	account.IsFrozen = false
	account.IsInitialized = true

	if mintAcc.Pubkey == types.NativeMintID {
		reserve := rent.MinimumBalance(uint64(len(tokenAcc.Data)))
		amount, err := checkedSub(*tokenAcc.Lamports, reserve)
		if err != nil {
			return err
		}
		account.IsNative = COptionU64{IsSome: true, Value: reserve}
		account.Amount = amount
	} else {
		account.IsNative = COptionU64{}
		account.Amount = 0
	}

	copy(tokenAcc.Data, account.Serialize())
	ctx.Logf("InitializeAccount: account=%s mint=%s owner=%s", tokenAcc.Pubkey, mintAcc.Pubkey, ownerAcc.Pubkey)
	return nil
}

// handleTransfer moves tokens between two accounts of the same mint.
// When decimals is non-nil the instruction is TransferChecked and the
// account list carries the mint at position 1.
func (p *TokenProgram) handleTransfer(ctx *syscall.ExecutionContext, amount uint64, decimals *uint8) error {
	var srcAcc, dstAcc, authAcc, mintAcc *syscall.AccountInfo
	if decimals == nil {
		accs, err := accountsAt(ctx, "Transfer", 3)
		if err != nil {
			return err
		}
		srcAcc, dstAcc, authAcc = accs[0], accs[1], accs[2]
	} else {
		accs, err := accountsAt(ctx, "TransferChecked", 4)
		if err != nil {
			return err
		}
		srcAcc, mintAcc, dstAcc, authAcc = accs[0], accs[1], accs[2], accs[3]
	}

	if err := p.checkProgramAccount(srcAcc); err != nil {
		return err
	}
	if err := p.checkProgramAccount(dstAcc); err != nil {
		return err
	}
	if err := checkWritable(srcAcc); err != nil {
		return err
	}
	if err := checkWritable(dstAcc); err != nil {
		return err
	}

	source, err := DeserializeAccount(srcAcc.Data)
	if err != nil {
		return err
	}
	if err := checkNotFrozen(source); err != nil {
		return err
	}
	dest, err := DeserializeAccount(dstAcc.Data)
	if err != nil {
		return err
	}
	if err := checkNotFrozen(dest); err != nil {
		return err
	}
	if err := checkMint(dest, source.Mint); err != nil {
		return err
	}

	if mintAcc != nil {
		if err := checkMint(source, mintAcc.Pubkey); err != nil {
			return err
		}
		if err := p.checkProgramAccount(mintAcc); err != nil {
			return err
		}
		mint, err := DeserializeMintUnchecked(mintAcc.Data)
		if err != nil {
			return err
		}
		if !mint.IsInitialized {
			return ErrInvalidMint
		}
		if err := checkDecimals(mint, *decimals); err != nil {
			return err
		}
	}

	kind, err := resolveAuthority(source, authAcc, amount)
	if err != nil {
		return err
	}

	if srcAcc.Pubkey == dstAcc.Pubkey {
		ctx.Logf("Transfer: self-transfer of %d, no-op", amount)
		return nil
	}

	if source.Amount < amount {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFunds, source.Amount, amount)
	}
	if source.Amount, err = checkedSub(source.Amount, amount); err != nil {
		return err
	}
	if dest.Amount, err = checkedAdd(dest.Amount, amount); err != nil {
		return err
	}

	if kind == delegateAuthority {
		if source.DelegatedAmount, err = checkedSub(source.DelegatedAmount, amount); err != nil {
			return err
		}
		if source.DelegatedAmount == 0 {
			source.Delegate = COption{}
		}
	}

	// Wrapped native balances are backed by lamports, which move with the amount.
	if source.IsNativeAccount() {
		srcLamports, err := checkedSub(*srcAcc.Lamports, amount)
		if err != nil {
			return err
		}
		dstLamports, err := checkedAdd(*dstAcc.Lamports, amount)
		if err != nil {
			return err
		}
		*srcAcc.Lamports = srcLamports
		*dstAcc.Lamports = dstLamports
	}

	copy(srcAcc.Data, source.Serialize())
	copy(dstAcc.Data, dest.Serialize())
	ctx.Logf("Transfer: %d from %s to %s", amount, srcAcc.Pubkey, dstAcc.Pubkey)
	return nil
}

// handleApprove sets or replaces the account's delegate.
func (p *TokenProgram) handleApprove(ctx *syscall.ExecutionContext, inst *ApproveInstruction) error {
	accs, err := accountsAt(ctx, "Approve", 3)
	if err != nil {
		return err
	}
	srcAcc, delegateAcc, ownerAcc := accs[0], accs[1], accs[2]

	if err := p.checkProgramAccount(srcAcc); err != nil {
		return err
	}
	if err := checkWritable(srcAcc); err != nil {
		return err
	}

	source, err := DeserializeAccount(srcAcc.Data)
	if err != nil {
		return err
	}
	if err := checkNotFrozen(source); err != nil {
		return err
	}
	if err := validateOwner(source.Owner, ownerAcc); err != nil {
		return err
	}

	source.Delegate = Some(delegateAcc.Pubkey)
	source.DelegatedAmount = inst.Amount

	copy(srcAcc.Data, source.Serialize())
	ctx.Logf("Approve: delegate=%s amount=%d", delegateAcc.Pubkey, inst.Amount)
	return nil
}

// handleRevoke clears the account's delegate.
func (p *TokenProgram) handleRevoke(ctx *syscall.ExecutionContext) error {
	accs, err := accountsAt(ctx, "Revoke", 2)
	if err != nil {
		return err
	}
	srcAcc, ownerAcc := accs[0], accs[1]

	if err := p.checkProgramAccount(srcAcc); err != nil {
		return err
	}
	if err := checkWritable(srcAcc); err != nil {
		return err
	}

	source, err := DeserializeAccount(srcAcc.Data)
	if err != nil {
		return err
	}
	if err := checkNotFrozen(source); err != nil {
		return err
	}
	if err := validateOwner(source.Owner, ownerAcc); err != nil {
		return err
	}

	source.Delegate = COption{}
	source.DelegatedAmount = 0

	copy(srcAcc.Data, source.Serialize())
	ctx.Logf("Revoke: account=%s", srcAcc.Pubkey)
	return nil
}

// handleMintTo creates tokens in a destination account.
func (p *TokenProgram) handleMintTo(ctx *syscall.ExecutionContext, inst *MintToInstruction) error {
	accs, err := accountsAt(ctx, "MintTo", 3)
	if err != nil {
		return err
	}
	mintAcc, dstAcc, authAcc := accs[0], accs[1], accs[2]

	if err := p.checkProgramAccount(mintAcc); err != nil {
		return err
	}
	if err := p.checkProgramAccount(dstAcc); err != nil {
		return err
	}
	if err := checkWritable(mintAcc); err != nil {
		return err
	}
	if err := checkWritable(dstAcc); err != nil {
		return err
	}

	mint, err := DeserializeMintUnchecked(mintAcc.Data)
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return fmt.Errorf("%w: mint %s is not initialized", ErrInvalidMint, mintAcc.Pubkey)
	}
	noAuthority := fmt.Errorf("%w: mint authority is disabled", ErrInvalidMint)
	if err := validateOptionalAuthority(mint.MintAuthority, authAcc, noAuthority); err != nil {
		return err
	}

	dest, err := DeserializeAccount(dstAcc.Data)
	if err != nil {
		return err
	}
	if err := checkMint(dest, mintAcc.Pubkey); err != nil {
		return err
	}

	if mint.Supply, err = checkedAdd(mint.Supply, inst.Amount); err != nil {
		return err
	}
	if dest.Amount, err = checkedAdd(dest.Amount, inst.Amount); err != nil {
		return err
	}

	copy(mintAcc.Data, mint.Serialize())
	copy(dstAcc.Data, dest.Serialize())
	ctx.Logf("MintTo: %d to %s, supply=%d", inst.Amount, dstAcc.Pubkey, mint.Supply)
	return nil
}

// handleBurn destroys tokens held by an account.
func (p *TokenProgram) handleBurn(ctx *syscall.ExecutionContext, inst *BurnInstruction) error {
	accs, err := accountsAt(ctx, "Burn", 3)
	if err != nil {
		return err
	}
	tokenAcc, mintAcc, ownerAcc := accs[0], accs[1], accs[2]

	if err := p.checkProgramAccount(tokenAcc); err != nil {
		return err
	}
	if err := p.checkProgramAccount(mintAcc); err != nil {
		return err
	}
	if err := checkWritable(tokenAcc); err != nil {
		return err
	}
	if err := checkWritable(mintAcc); err != nil {
		return err
	}

	account, err := DeserializeAccount(tokenAcc.Data)
	if err != nil {
		return err
	}
	if err := checkNotFrozen(account); err != nil {
		return err
	}

	mint, err := DeserializeMintUnchecked(mintAcc.Data)
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return fmt.Errorf("%w: mint %s is not initialized", ErrInvalidMint, mintAcc.Pubkey)
	}
	if err := checkMint(account, mintAcc.Pubkey); err != nil {
		return err
	}
	if err := validateOwner(account.Owner, ownerAcc); err != nil {
		return err
	}

	if account.Amount < inst.Amount {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFunds, account.Amount, inst.Amount)
	}
	if account.Amount, err = checkedSub(account.Amount, inst.Amount); err != nil {
		return err
	}
	if mint.Supply, err = checkedSub(mint.Supply, inst.Amount); err != nil {
		return err
	}

	copy(tokenAcc.Data, account.Serialize())
	copy(mintAcc.Data, mint.Serialize())
	ctx.Logf("Burn: %d from %s, supply=%d", inst.Amount, tokenAcc.Pubkey, mint.Supply)
	return nil
}

// handleCloseAccount moves all lamports to the destination, hands the
// account back to the system program and zeroes its data.
func (p *TokenProgram) handleCloseAccount(ctx *syscall.ExecutionContext) error {
	accs, err := accountsAt(ctx, "CloseAccount", 3)
	if err != nil {
		return err
	}
	srcAcc, dstAcc, ownerAcc := accs[0], accs[1], accs[2]

	if srcAcc.Pubkey == dstAcc.Pubkey {
		return fmt.Errorf("%w: cannot close an account into itself", ErrInvalidAccountData)
	}
	if err := p.checkProgramAccount(srcAcc); err != nil {
		return err
	}
	if err := checkWritable(srcAcc); err != nil {
		return err
	}
	if err := checkWritable(dstAcc); err != nil {
		return err
	}

	source, err := DeserializeAccount(srcAcc.Data)
	if err != nil {
		return err
	}
	if !source.IsNativeAccount() && source.Amount != 0 {
		return fmt.Errorf("%w: non-native account still holds %d", ErrInvalidState, source.Amount)
	}
	if err := validateOwner(source.Owner, ownerAcc); err != nil {
		return err
	}

	credited, err := checkedAdd(*dstAcc.Lamports, *srcAcc.Lamports)
	if err != nil {
		return err
	}
	ctx.Logf("CloseAccount: %s, %d lamports to %s", srcAcc.Pubkey, *srcAcc.Lamports, dstAcc.Pubkey)

	*dstAcc.Lamports = credited
	*srcAcc.Lamports = 0
	srcAcc.Owner = types.SystemProgramID
	clear(srcAcc.Data)
	return nil
}

// handleSetFrozen implements FreezeAccount (freeze=true) and ThawAccount.
func (p *TokenProgram) handleSetFrozen(ctx *syscall.ExecutionContext, freeze bool) error {
	name := "ThawAccount"
	if freeze {
		name = "FreezeAccount"
	}
	accs, err := accountsAt(ctx, name, 3)
	if err != nil {
		return err
	}
	tokenAcc, mintAcc, authAcc := accs[0], accs[1], accs[2]

	if err := p.checkProgramAccount(tokenAcc); err != nil {
		return err
	}
	if err := p.checkProgramAccount(mintAcc); err != nil {
		return err
	}
	if err := checkWritable(tokenAcc); err != nil {
		return err
	}

	account, err := DeserializeAccount(tokenAcc.Data)
	if err != nil {
		return err
	}
	if account.IsFrozen == freeze {
		return fmt.Errorf("%w: account frozen=%t", ErrInvalidState, account.IsFrozen)
	}
	if account.IsNativeAccount() {
		return ErrNonNativeNotSupported
	}
	if err := checkMint(account, mintAcc.Pubkey); err != nil {
		return err
	}

	mint, err := DeserializeMintUnchecked(mintAcc.Data)
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return fmt.Errorf("%w: mint %s is not initialized", ErrInvalidMint, mintAcc.Pubkey)
	}
	if err := validateOptionalAuthority(mint.FreezeAuthority, authAcc, ErrMintCannotFreeze); err != nil {
		return err
	}

	account.IsFrozen = freeze
	copy(tokenAcc.Data, account.Serialize())
	ctx.Logf("%s: account=%s", name, tokenAcc.Pubkey)
	return nil
}

// handleSyncNative recomputes a wrapped-native balance from lamports.
// The balance may only grow.
func (p *TokenProgram) handleSyncNative(ctx *syscall.ExecutionContext) error {
	accs, err := accountsAt(ctx, "SyncNative", 1)
	if err != nil {
		return err
	}
	nativeAcc := accs[0]

	if err := p.checkProgramAccount(nativeAcc); err != nil {
		return err
	}
	if err := checkWritable(nativeAcc); err != nil {
		return err
	}

	account, err := DeserializeAccount(nativeAcc.Data)
	if err != nil {
		return err
	}
	if !account.IsNativeAccount() {
		return ErrNonNativeNotSupported
	}

	amount, err := checkedSub(*nativeAcc.Lamports, account.IsNative.Value)
	if err != nil {
		return err
	}
	if amount < account.Amount {
		return fmt.Errorf("%w: synced amount %d below recorded %d", ErrInvalidState, amount, account.Amount)
	}

	account.Amount = amount
	copy(nativeAcc.Data, account.Serialize())
	ctx.Logf("SyncNative: account=%s amount=%d", nativeAcc.Pubkey, amount)
	return nil
}

// handleSetAuthority changes a mint's mint or freeze authority, or an
// account's owner.
func (p *TokenProgram) handleSetAuthority(ctx *syscall.ExecutionContext, inst *SetAuthorityInstruction) error {
	accs, err := accountsAt(ctx, "SetAuthority", 2)
	if err != nil {
		return err
	}
	ownedAcc, authAcc := accs[0], accs[1]

	if err := p.checkProgramAccount(ownedAcc); err != nil {
		return err
	}
	if err := checkWritable(ownedAcc); err != nil {
		return err
	}

	switch inst.AuthorityType {
	case AuthorityMintTokens, AuthorityFreezeAccount:
		mint, err := DeserializeMintUnchecked(ownedAcc.Data)
		if err != nil {
			return err
		}
		if !mint.IsInitialized {
			return fmt.Errorf("%w: mint %s is not initialized", ErrInvalidMint, ownedAcc.Pubkey)
		}
		if inst.AuthorityType == AuthorityMintTokens {
			noAuthority := fmt.Errorf("%w: mint authority is disabled", ErrInvalidMint)
			if err := validateOptionalAuthority(mint.MintAuthority, authAcc, noAuthority); err != nil {
				return err
			}
			mint.MintAuthority = inst.NewAuthority
		} else {
			if err := validateOptionalAuthority(mint.FreezeAuthority, authAcc, ErrMintCannotFreeze); err != nil {
				return err
			}
			mint.FreezeAuthority = inst.NewAuthority
		}
		copy(ownedAcc.Data, mint.Serialize())

	case AuthorityAccountOwner:
		account, err := DeserializeAccount(ownedAcc.Data)
		if err != nil {
			return err
		}
		if err := checkNotFrozen(account); err != nil {
			return err
		}
		if err := validateOwner(account.Owner, authAcc); err != nil {
			return err
		}
		if !inst.NewAuthority.IsSome {
			return fmt.Errorf("%w: account owner cannot be removed", ErrInvalidInstruction)
		}
		account.Owner = inst.NewAuthority.Value
		account.Delegate = COption{}
		account.DelegatedAmount = 0
		copy(ownedAcc.Data, account.Serialize())

	default:
		return fmt.Errorf("%w: %s authority is not supported", ErrInvalidInstruction, inst.AuthorityType)
	}

	ctx.Logf("SetAuthority: %s on %s", inst.AuthorityType, ownedAcc.Pubkey)
	return nil
}
