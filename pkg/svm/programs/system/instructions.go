package system

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Instruction discriminators (first 4 bytes of instruction data, little-endian).
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// CreateAccountInstruction funds, allocates and assigns a new account.
// Accounts:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
type CreateAccountInstruction struct {
	Lamports uint64
	Space    uint64
	Owner    types.Pubkey
}

// UnmarshalWithDecoder reads lamports (8) + space (8) + owner (32).
func (inst *CreateAccountInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	if inst.Lamports, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if inst.Space, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	return readPubkey(decoder, &inst.Owner)
}

// MarshalWithEncoder writes the discriminator and payload.
func (inst *CreateAccountInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionCreateAccount, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.Lamports, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(inst.Space, bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes(inst.Owner[:], false)
}

// AssignInstruction changes the owner of a system account.
// Accounts:
//
//	[0] account (signer, writable)
type AssignInstruction struct {
	Owner types.Pubkey
}

// UnmarshalWithDecoder reads owner (32).
func (inst *AssignInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	return readPubkey(decoder, &inst.Owner)
}

// MarshalWithEncoder writes the discriminator and payload.
func (inst *AssignInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionAssign, bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes(inst.Owner[:], false)
}

// TransferInstruction moves lamports between accounts.
// Accounts:
//
//	[0] source (signer, writable)
//	[1] destination (writable)
type TransferInstruction struct {
	Lamports uint64
}

// UnmarshalWithDecoder reads lamports (8).
func (inst *TransferInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	inst.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

// MarshalWithEncoder writes the discriminator and payload.
func (inst *TransferInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionTransfer, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint64(inst.Lamports, bin.LE)
}

// AllocateInstruction gives a data-less system account Space zero bytes.
// Accounts:
//
//	[0] account (signer, writable)
type AllocateInstruction struct {
	Space uint64
}

// UnmarshalWithDecoder reads space (8).
func (inst *AllocateInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	inst.Space, err = decoder.ReadUint64(bin.LE)
	return err
}

// MarshalWithEncoder writes the discriminator and payload.
func (inst *AllocateInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(InstructionAllocate, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint64(inst.Space, bin.LE)
}

func readPubkey(decoder *bin.Decoder, pk *types.Pubkey) error {
	b, err := decoder.ReadBytes(len(pk))
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

// instruction is implemented by every system instruction.
type instruction interface {
	MarshalWithEncoder(encoder *bin.Encoder) error
	UnmarshalWithDecoder(decoder *bin.Decoder) error
}

// decode reads the discriminator and payload of data.
func decode(data []byte) (instruction, error) {
	decoder := bin.NewBinDecoder(data)
	discriminator, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}

	var inst instruction
	switch discriminator {
	case InstructionCreateAccount:
		inst = &CreateAccountInstruction{}
	case InstructionAssign:
		inst = &AssignInstruction{}
	case InstructionTransfer:
		inst = &TransferInstruction{}
	case InstructionAllocate:
		inst = &AllocateInstruction{}
	default:
		return nil, fmt.Errorf("%w: unsupported instruction %d", ErrInvalidInstructionData, discriminator)
	}
	if err := inst.UnmarshalWithDecoder(decoder); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}
	return inst, nil
}

func encode(inst instruction) []byte {
	buf := new(bytes.Buffer)
	if err := inst.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic("system instruction encode into buffer: " + err.Error())
	}
	return buf.Bytes()
}

// NewCreateAccountInstruction builds a CreateAccount instruction.
func NewCreateAccountInstruction(from, to types.Pubkey, lamports, space uint64, owner types.Pubkey) *types.Instruction {
	return &types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsSigner: true, IsWritable: true},
		},
		Data: encode(&CreateAccountInstruction{Lamports: lamports, Space: space, Owner: owner}),
	}
}

// NewAssignInstruction builds an Assign instruction.
func NewAssignInstruction(account, owner types.Pubkey) *types.Instruction {
	return &types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{{Pubkey: account, IsSigner: true, IsWritable: true}},
		Data:      encode(&AssignInstruction{Owner: owner}),
	}
}

// NewTransferInstruction builds a lamport Transfer instruction.
func NewTransferInstruction(from, to types.Pubkey, lamports uint64) *types.Instruction {
	return &types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts: []types.AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: encode(&TransferInstruction{Lamports: lamports}),
	}
}

// NewAllocateInstruction builds an Allocate instruction.
func NewAllocateInstruction(account types.Pubkey, space uint64) *types.Instruction {
	return &types.Instruction{
		ProgramID: types.SystemProgramID,
		Accounts:  []types.AccountMeta{{Pubkey: account, IsSigner: true, IsWritable: true}},
		Data:      encode(&AllocateInstruction{Space: space}),
	}
}
