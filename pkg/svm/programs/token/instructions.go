package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Instruction tags (first byte of instruction data).
const (
	InstructionInitializeMint    uint8 = 0
	InstructionInitializeAccount uint8 = 1
	InstructionTransfer          uint8 = 3
	InstructionApprove           uint8 = 4
	InstructionRevoke            uint8 = 5
	InstructionSetAuthority      uint8 = 6
	InstructionMintTo            uint8 = 7
	InstructionBurn              uint8 = 8
	InstructionCloseAccount      uint8 = 9
	InstructionFreezeAccount     uint8 = 10
	InstructionThawAccount       uint8 = 11
	InstructionTransferChecked   uint8 = 12
	InstructionSyncNative        uint8 = 17
)

// AuthorityType selects the authority changed by SetAuthority.
type AuthorityType uint8

// Authority types.
const (
	AuthorityMintTokens    AuthorityType = 0
	AuthorityFreezeAccount AuthorityType = 1
	AuthorityAccountOwner  AuthorityType = 2
	AuthorityCloseAccount  AuthorityType = 3
)

// String returns the authority type name.
func (a AuthorityType) String() string {
	switch a {
	case AuthorityMintTokens:
		return "MintTokens"
	case AuthorityFreezeAccount:
		return "FreezeAccount"
	case AuthorityAccountOwner:
		return "AccountOwner"
	case AuthorityCloseAccount:
		return "CloseAccount"
	default:
		return fmt.Sprintf("AuthorityType(%d)", uint8(a))
	}
}

// ParseAuthorityType maps a name or number to an AuthorityType.
func ParseAuthorityType(s string) (AuthorityType, error) {
	for a := AuthorityMintTokens; a <= AuthorityCloseAccount; a++ {
		if s == a.String() || s == fmt.Sprint(uint8(a)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown authority type %q", ErrInvalidInstruction, s)
}

// Instruction is a decoded token instruction.
type Instruction interface {
	// Tag returns the wire discriminant.
	Tag() uint8
	// Encode returns the full instruction data, tag included.
	Encode() []byte
}

// Unpack decodes instruction data into its typed instruction.
// Trailing bytes after a complete payload are ignored.
func Unpack(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction data", ErrInvalidInstruction)
	}
	tag, payload := data[0], data[1:]

	var inst interface {
		Instruction
		Decode([]byte) error
	}
	switch tag {
	case InstructionInitializeMint:
		inst = &InitializeMintInstruction{}
	case InstructionInitializeAccount:
		inst = &InitializeAccountInstruction{}
	case InstructionTransfer:
		inst = &TransferInstruction{}
	case InstructionTransferChecked:
		inst = &TransferCheckedInstruction{}
	case InstructionApprove:
		inst = &ApproveInstruction{}
	case InstructionRevoke:
		inst = &RevokeInstruction{}
	case InstructionSetAuthority:
		inst = &SetAuthorityInstruction{}
	case InstructionMintTo:
		inst = &MintToInstruction{}
	case InstructionBurn:
		inst = &BurnInstruction{}
	case InstructionCloseAccount:
		inst = &CloseAccountInstruction{}
	case InstructionFreezeAccount:
		inst = &FreezeAccountInstruction{}
	case InstructionThawAccount:
		inst = &ThawAccountInstruction{}
	case InstructionSyncNative:
		inst = &SyncNativeInstruction{}
	default:
		return nil, fmt.Errorf("%w: unknown instruction tag %d", ErrInvalidInstruction, tag)
	}
	if err := inst.Decode(payload); err != nil {
		return nil, err
	}
	return inst, nil
}

// InitializeMintInstruction initializes a mint.
// Accounts:
//
//	[0] mint (writable)
//	[1] rent sysvar
type InitializeMintInstruction struct {
	Decimals        uint8
	MintAuthority   types.Pubkey
	FreezeAuthority COption
}

// Tag implements Instruction.
func (inst *InitializeMintInstruction) Tag() uint8 { return InstructionInitializeMint }

// Decode decodes decimals (1) + mint_authority (32) + option<freeze_authority> (1 or 33).
func (inst *InitializeMintInstruction) Decode(data []byte) error {
	if len(data) < 33 {
		return fmt.Errorf("%w: InitializeMint requires at least 34 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Decimals = data[0]
	copy(inst.MintAuthority[:], data[1:33])

	var err error
	inst.FreezeAuthority, _, err = decodeOptionalKey(data[33:])
	return err
}

// Encode implements Instruction.
func (inst *InitializeMintInstruction) Encode() []byte {
	data := []byte{InstructionInitializeMint, inst.Decimals}
	data = append(data, inst.MintAuthority[:]...)
	return appendOptionalKey(data, inst.FreezeAuthority)
}

// InitializeAccountInstruction initializes a token account.
// Accounts:
//
//	[0] account (writable)
//	[1] mint
//	[2] owner
//	[3] rent sysvar
type InitializeAccountInstruction struct{}

// Tag implements Instruction.
func (inst *InitializeAccountInstruction) Tag() uint8 { return InstructionInitializeAccount }

// Decode accepts any payload.
func (inst *InitializeAccountInstruction) Decode([]byte) error { return nil }

// Encode implements Instruction.
func (inst *InitializeAccountInstruction) Encode() []byte {
	return []byte{InstructionInitializeAccount}
}

// TransferInstruction moves tokens between accounts of the same mint.
// Accounts:
//
//	[0] source (writable)
//	[1] destination (writable)
//	[2] owner or delegate (signer)
type TransferInstruction struct {
	Amount uint64
}

// Tag implements Instruction.
func (inst *TransferInstruction) Tag() uint8 { return InstructionTransfer }

// Decode implements Instruction.
func (inst *TransferInstruction) Decode(data []byte) error {
	amount, err := decodeAmount("Transfer", data)
	inst.Amount = amount
	return err
}

// Encode implements Instruction.
func (inst *TransferInstruction) Encode() []byte {
	return encodeAmount(InstructionTransfer, inst.Amount)
}

// TransferCheckedInstruction is Transfer plus an assertion on the mint's decimals.
// Accounts:
//
//	[0] source (writable)
//	[1] mint
//	[2] destination (writable)
//	[3] owner or delegate (signer)
type TransferCheckedInstruction struct {
	Amount   uint64
	Decimals uint8
}

// Tag implements Instruction.
func (inst *TransferCheckedInstruction) Tag() uint8 { return InstructionTransferChecked }

// Decode implements Instruction.
func (inst *TransferCheckedInstruction) Decode(data []byte) error {
	if len(data) < 9 {
		return fmt.Errorf("%w: TransferChecked requires 9 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data[0:8])
	inst.Decimals = data[8]
	return nil
}

// Encode implements Instruction.
func (inst *TransferCheckedInstruction) Encode() []byte {
	return append(encodeAmount(InstructionTransferChecked, inst.Amount), inst.Decimals)
}

// ApproveInstruction sets a delegate allowed to move up to Amount.
// Accounts:
//
//	[0] source (writable)
//	[1] delegate
//	[2] owner (signer)
type ApproveInstruction struct {
	Amount uint64
}

// Tag implements Instruction.
func (inst *ApproveInstruction) Tag() uint8 { return InstructionApprove }

// Decode implements Instruction.
func (inst *ApproveInstruction) Decode(data []byte) error {
	amount, err := decodeAmount("Approve", data)
	inst.Amount = amount
	return err
}

// Encode implements Instruction.
func (inst *ApproveInstruction) Encode() []byte {
	return encodeAmount(InstructionApprove, inst.Amount)
}

// RevokeInstruction clears the delegate.
// Accounts:
//
//	[0] source (writable)
//	[1] owner (signer)
type RevokeInstruction struct{}

// Tag implements Instruction.
func (inst *RevokeInstruction) Tag() uint8 { return InstructionRevoke }

// Decode accepts any payload.
func (inst *RevokeInstruction) Decode([]byte) error { return nil }

// Encode implements Instruction.
func (inst *RevokeInstruction) Encode() []byte { return []byte{InstructionRevoke} }

// SetAuthorityInstruction changes or disables an authority.
// Accounts:
//
//	[0] mint or account (writable)
//	[1] current authority (signer)
type SetAuthorityInstruction struct {
	AuthorityType AuthorityType
	NewAuthority  COption
}

// Tag implements Instruction.
func (inst *SetAuthorityInstruction) Tag() uint8 { return InstructionSetAuthority }

// Decode decodes authority_type (1) + option<new_authority> (1 or 33).
func (inst *SetAuthorityInstruction) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: SetAuthority requires an authority type", ErrInvalidInstructionData)
	}
	if data[0] > uint8(AuthorityCloseAccount) {
		return fmt.Errorf("%w: unknown authority type %d", ErrInvalidInstruction, data[0])
	}
	inst.AuthorityType = AuthorityType(data[0])

	var err error
	inst.NewAuthority, _, err = decodeOptionalKey(data[1:])
	return err
}

// Encode implements Instruction.
func (inst *SetAuthorityInstruction) Encode() []byte {
	return appendOptionalKey([]byte{InstructionSetAuthority, uint8(inst.AuthorityType)}, inst.NewAuthority)
}

// MintToInstruction creates new tokens.
// Accounts:
//
//	[0] mint (writable)
//	[1] destination (writable)
//	[2] mint authority (signer)
type MintToInstruction struct {
	Amount uint64
}

// Tag implements Instruction.
func (inst *MintToInstruction) Tag() uint8 { return InstructionMintTo }

// Decode implements Instruction.
func (inst *MintToInstruction) Decode(data []byte) error {
	amount, err := decodeAmount("MintTo", data)
	inst.Amount = amount
	return err
}

// Encode implements Instruction.
func (inst *MintToInstruction) Encode() []byte {
	return encodeAmount(InstructionMintTo, inst.Amount)
}

// BurnInstruction destroys tokens held by an account.
// Accounts:
//
//	[0] account (writable)
//	[1] mint (writable)
//	[2] owner (signer)
type BurnInstruction struct {
	Amount uint64
}

// Tag implements Instruction.
func (inst *BurnInstruction) Tag() uint8 { return InstructionBurn }

// Decode implements Instruction.
func (inst *BurnInstruction) Decode(data []byte) error {
	amount, err := decodeAmount("Burn", data)
	inst.Amount = amount
	return err
}

// Encode implements Instruction.
func (inst *BurnInstruction) Encode() []byte {
	return encodeAmount(InstructionBurn, inst.Amount)
}

// CloseAccountInstruction closes an account and reclaims its lamports.
// Accounts:
//
//	[0] account (writable)
//	[1] destination (writable)
//	[2] owner (signer)
type CloseAccountInstruction struct{}

// Tag implements Instruction.
func (inst *CloseAccountInstruction) Tag() uint8 { return InstructionCloseAccount }

// Decode accepts any payload.
func (inst *CloseAccountInstruction) Decode([]byte) error { return nil }

// Encode implements Instruction.
func (inst *CloseAccountInstruction) Encode() []byte { return []byte{InstructionCloseAccount} }

// FreezeAccountInstruction freezes an account.
// Accounts:
//
//	[0] account (writable)
//	[1] mint
//	[2] freeze authority (signer)
type FreezeAccountInstruction struct{}

// Tag implements Instruction.
func (inst *FreezeAccountInstruction) Tag() uint8 { return InstructionFreezeAccount }

// Decode accepts any payload.
func (inst *FreezeAccountInstruction) Decode([]byte) error { return nil }

// Encode implements Instruction.
func (inst *FreezeAccountInstruction) Encode() []byte { return []byte{InstructionFreezeAccount} }

// ThawAccountInstruction thaws a frozen account.
// Accounts:
//
//	[0] account (writable)
//	[1] mint
//	[2] freeze authority (signer)
type ThawAccountInstruction struct{}

// Tag implements Instruction.
func (inst *ThawAccountInstruction) Tag() uint8 { return InstructionThawAccount }

// Decode accepts any payload.
func (inst *ThawAccountInstruction) Decode([]byte) error { return nil }

// Encode implements Instruction.
func (inst *ThawAccountInstruction) Encode() []byte { return []byte{InstructionThawAccount} }

// SyncNativeInstruction recomputes a wrapped-native balance from lamports.
// Accounts:
//
//	[0] native account (writable)
type SyncNativeInstruction struct{}

// Tag implements Instruction.
func (inst *SyncNativeInstruction) Tag() uint8 { return InstructionSyncNative }

// Decode accepts any payload.
func (inst *SyncNativeInstruction) Decode([]byte) error { return nil }

// Encode implements Instruction.
func (inst *SyncNativeInstruction) Encode() []byte { return []byte{InstructionSyncNative} }

func decodeAmount(name string, data []byte) (uint64, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: %s requires 8 bytes, got %d", ErrInvalidInstructionData, name, len(data))
	}
	return binary.LittleEndian.Uint64(data[0:8]), nil
}

func encodeAmount(tag uint8, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return data
}

// decodeOptionalKey reads a 1-byte option flag followed by a key when the
// flag is 1. Any other flag, or a missing flag, is invalid.
func decodeOptionalKey(data []byte) (COption, []byte, error) {
	if len(data) < 1 {
		return COption{}, nil, fmt.Errorf("%w: missing option flag", ErrInvalidInstructionData)
	}
	switch data[0] {
	case 0:
		return COption{}, data[1:], nil
	case 1:
		if len(data) < 33 {
			return COption{}, nil, fmt.Errorf("%w: truncated optional key", ErrInvalidInstructionData)
		}
		var pk types.Pubkey
		copy(pk[:], data[1:33])
		return Some(pk), data[33:], nil
	default:
		return COption{}, nil, fmt.Errorf("%w: invalid option flag %d", ErrInvalidInstruction, data[0])
	}
}

func appendOptionalKey(data []byte, opt COption) []byte {
	if !opt.IsSome {
		return append(data, 0)
	}
	data = append(data, 1)
	return append(data, opt.Value[:]...)
}
