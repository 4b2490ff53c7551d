package token

import (
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

func writable(pk types.Pubkey) types.AccountMeta {
	return types.AccountMeta{Pubkey: pk, IsWritable: true}
}

func readonly(pk types.Pubkey) types.AccountMeta {
	return types.AccountMeta{Pubkey: pk}
}

func signer(pk types.Pubkey) types.AccountMeta {
	return types.AccountMeta{Pubkey: pk, IsSigner: true}
}

func newInstruction(inst Instruction, accounts ...types.AccountMeta) *types.Instruction {
	return &types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts:  accounts,
		Data:      inst.Encode(),
	}
}

// NewInitializeMintInstruction builds an InitializeMint instruction.
func NewInitializeMintInstruction(mint types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority COption) *types.Instruction {
	return newInstruction(
		&InitializeMintInstruction{Decimals: decimals, MintAuthority: mintAuthority, FreezeAuthority: freezeAuthority},
		writable(mint), readonly(types.SysvarRentID),
	)
}

// NewInitializeAccountInstruction builds an InitializeAccount instruction.
func NewInitializeAccountInstruction(account, mint, owner types.Pubkey) *types.Instruction {
	return newInstruction(&InitializeAccountInstruction{},
		writable(account), readonly(mint), readonly(owner), readonly(types.SysvarRentID))
}

// NewTransferInstruction builds a Transfer signed by authority, the owner or delegate.
func NewTransferInstruction(source, destination, authority types.Pubkey, amount uint64) *types.Instruction {
	return newInstruction(&TransferInstruction{Amount: amount},
		writable(source), writable(destination), signer(authority))
}

// NewTransferCheckedInstruction builds a TransferChecked instruction.
func NewTransferCheckedInstruction(source, mint, destination, authority types.Pubkey, amount uint64, decimals uint8) *types.Instruction {
	return newInstruction(&TransferCheckedInstruction{Amount: amount, Decimals: decimals},
		writable(source), readonly(mint), writable(destination), signer(authority))
}

// NewApproveInstruction builds an Approve instruction.
func NewApproveInstruction(source, delegate, owner types.Pubkey, amount uint64) *types.Instruction {
	return newInstruction(&ApproveInstruction{Amount: amount},
		writable(source), readonly(delegate), signer(owner))
}

// NewRevokeInstruction builds a Revoke instruction.
func NewRevokeInstruction(source, owner types.Pubkey) *types.Instruction {
	return newInstruction(&RevokeInstruction{}, writable(source), signer(owner))
}

// NewSetAuthorityInstruction builds a SetAuthority instruction.
func NewSetAuthorityInstruction(owned, currentAuthority types.Pubkey, authorityType AuthorityType, newAuthority COption) *types.Instruction {
	return newInstruction(&SetAuthorityInstruction{AuthorityType: authorityType, NewAuthority: newAuthority},
		writable(owned), signer(currentAuthority))
}

// NewMintToInstruction builds a MintTo instruction.
func NewMintToInstruction(mint, destination, authority types.Pubkey, amount uint64) *types.Instruction {
	return newInstruction(&MintToInstruction{Amount: amount},
		writable(mint), writable(destination), signer(authority))
}

// NewBurnInstruction builds a Burn instruction.
func NewBurnInstruction(account, mint, owner types.Pubkey, amount uint64) *types.Instruction {
	return newInstruction(&BurnInstruction{Amount: amount},
		writable(account), writable(mint), signer(owner))
}

// NewCloseAccountInstruction builds a CloseAccount instruction.
func NewCloseAccountInstruction(account, destination, owner types.Pubkey) *types.Instruction {
	return newInstruction(&CloseAccountInstruction{},
		writable(account), writable(destination), signer(owner))
}

// NewFreezeAccountInstruction builds a FreezeAccount instruction.
func NewFreezeAccountInstruction(account, mint, authority types.Pubkey) *types.Instruction {
	return newInstruction(&FreezeAccountInstruction{},
		writable(account), readonly(mint), signer(authority))
}

// NewThawAccountInstruction builds a ThawAccount instruction.
func NewThawAccountInstruction(account, mint, authority types.Pubkey) *types.Instruction {
	return newInstruction(&ThawAccountInstruction{},
		writable(account), readonly(mint), signer(authority))
}

// NewSyncNativeInstruction builds a SyncNative instruction.
func NewSyncNativeInstruction(account types.Pubkey) *types.Instruction {
	return newInstruction(&SyncNativeInstruction{}, writable(account))
}
