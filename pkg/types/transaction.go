package types

import (
	"errors"
	"fmt"
)

// ErrMessageTooShort is returned when wire data ends before a field is complete.
var ErrMessageTooShort = errors.New("message too short")

// Transaction represents a complete transaction with signatures.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// Message represents a transaction message (the part that gets signed).
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// MessageHeader contains counts for account types.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction is an instruction with account indices.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// Instruction is an expanded instruction with full account info.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// NewMessage compiles instructions into a legacy message. The payer is
// always the first key and a writable signer. Remaining keys are ordered
// writable signers, readonly signers, writable non-signers, then readonly
// non-signers, each group in first-seen order.
func NewMessage(payer Pubkey, blockhash Hash, instructions ...*Instruction) (*Message, error) {
	type keyFlags struct {
		signer   bool
		writable bool
	}
	order := []Pubkey{payer}
	flags := map[Pubkey]*keyFlags{payer: {signer: true, writable: true}}

	note := func(pk Pubkey, signer, writable bool) {
		f, ok := flags[pk]
		if !ok {
			f = &keyFlags{}
			flags[pk] = f
			order = append(order, pk)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			note(meta.Pubkey, meta.IsSigner, meta.IsWritable)
		}
		note(ix.ProgramID, false, false)
	}

	var groups [4][]Pubkey
	for _, pk := range order {
		f := flags[pk]
		switch {
		case f.signer && f.writable:
			groups[0] = append(groups[0], pk)
		case f.signer:
			groups[1] = append(groups[1], pk)
		case f.writable:
			groups[2] = append(groups[2], pk)
		default:
			groups[3] = append(groups[3], pk)
		}
	}

	keys := make([]Pubkey, 0, len(order))
	for _, g := range groups {
		keys = append(keys, g...)
	}
	if len(keys) > 256 {
		return nil, fmt.Errorf("too many account keys: %d", len(keys))
	}

	index := make(map[Pubkey]uint8, len(keys))
	for i, pk := range keys {
		index[pk] = uint8(i)
	}

	msg := &Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(len(groups[0]) + len(groups[1])),
			NumReadonlySignedAccounts:   uint8(len(groups[1])),
			NumReadonlyUnsignedAccounts: uint8(len(groups[3])),
		},
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
	}
	for _, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			AccountIndices: make([]uint8, len(ix.Accounts)),
			Data:           ix.Data,
		}
		for i, meta := range ix.Accounts {
			compiled.AccountIndices[i] = index[meta.Pubkey]
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}
	return msg, nil
}

// IsSigner reports whether the key at index i must sign the message.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the key at index i may be modified.
func (m *Message) IsWritable(i int) bool {
	numSigners := int(m.Header.NumRequiredSignatures)
	if i < numSigners {
		return i < numSigners-int(m.Header.NumReadonlySignedAccounts)
	}
	numUnsignedWritable := len(m.AccountKeys) - numSigners - int(m.Header.NumReadonlyUnsignedAccounts)
	return i-numSigners < numUnsignedWritable
}

// Signers returns the keys that must sign the message.
func (m *Message) Signers() []Pubkey {
	n := int(m.Header.NumRequiredSignatures)
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	return m.AccountKeys[:n]
}

// Decompile expands a compiled instruction using the message's keys and header.
func (m *Message) Decompile(compiled *CompiledInstruction) (*Instruction, error) {
	if int(compiled.ProgramIDIndex) >= len(m.AccountKeys) {
		return nil, fmt.Errorf("program ID index out of bounds: %d", compiled.ProgramIDIndex)
	}
	accounts := make([]AccountMeta, len(compiled.AccountIndices))
	for i, idx := range compiled.AccountIndices {
		if int(idx) >= len(m.AccountKeys) {
			return nil, fmt.Errorf("account index out of bounds: %d", idx)
		}
		accounts[i] = AccountMeta{
			Pubkey:     m.AccountKeys[idx],
			IsSigner:   m.IsSigner(int(idx)),
			IsWritable: m.IsWritable(int(idx)),
		}
	}
	return &Instruction{
		ProgramID: m.AccountKeys[compiled.ProgramIDIndex],
		Accounts:  accounts,
		Data:      compiled.Data,
	}, nil
}

// Serialize serializes the message for signing.
func (m *Message) Serialize() []byte {
	buf := make([]byte, 0, 256)

	buf = append(buf, m.Header.NumRequiredSignatures)
	buf = append(buf, m.Header.NumReadonlySignedAccounts)
	buf = append(buf, m.Header.NumReadonlyUnsignedAccounts)

	buf = appendCompactU16(buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, m.RecentBlockhash[:]...)

	buf = appendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = appendCompactU16(buf, len(ix.AccountIndices))
		buf = append(buf, ix.AccountIndices...)
		buf = appendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	return buf
}

// Serialize encodes the transaction in wire format: signatures then message.
func (tx *Transaction) Serialize() []byte {
	buf := appendCompactU16(nil, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf = append(buf, sig[:]...)
	}
	return append(buf, tx.Message.Serialize()...)
}

func appendCompactU16(buf []byte, val int) []byte {
	if val < 0x80 {
		return append(buf, byte(val))
	}
	if val < 0x4000 {
		return append(buf, byte(val&0x7f|0x80), byte(val>>7))
	}
	return append(buf, byte(val&0x7f|0x80), byte((val>>7)&0x7f|0x80), byte(val>>14))
}

// ParseCompactU16 parses a compact-u16 from a byte slice.
func ParseCompactU16(data []byte) (val uint16, bytesRead int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("%w: empty compact-u16", ErrMessageTooShort)
	}

	b0 := data[0]
	if b0 < 0x80 {
		return uint16(b0), 1, nil
	}

	if len(data) < 2 {
		return 0, 0, fmt.Errorf("%w: incomplete compact-u16", ErrMessageTooShort)
	}
	b1 := data[1]
	if b1 < 0x80 {
		return uint16(b0&0x7f) | uint16(b1)<<7, 2, nil
	}

	if len(data) < 3 {
		return 0, 0, fmt.Errorf("%w: incomplete compact-u16", ErrMessageTooShort)
	}
	b2 := data[2]
	return uint16(b0&0x7f) | uint16(b1&0x7f)<<7 | uint16(b2)<<14, 3, nil
}

// DeserializeTransaction deserializes a transaction from wire bytes.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	numSigs, offset, err := ParseCompactU16(data)
	if err != nil {
		return nil, fmt.Errorf("parse num signatures: %w", err)
	}

	sigs := make([]Signature, numSigs)
	for i := range sigs {
		if offset+64 > len(data) {
			return nil, fmt.Errorf("%w: truncated signature %d", ErrMessageTooShort, i)
		}
		copy(sigs[i][:], data[offset:offset+64])
		offset += 64
	}

	msg, err := deserializeMessage(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	return &Transaction{
		Signatures: sigs,
		Message:    *msg,
	}, nil
}

func deserializeMessage(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, ErrMessageTooShort
	}

	header := MessageHeader{
		NumRequiredSignatures:       data[0],
		NumReadonlySignedAccounts:   data[1],
		NumReadonlyUnsignedAccounts: data[2],
	}
	offset := 3

	numKeys, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse num account keys: %w", err)
	}
	offset += n

	keys := make([]Pubkey, numKeys)
	for i := range keys {
		if offset+32 > len(data) {
			return nil, fmt.Errorf("%w: truncated account key %d", ErrMessageTooShort, i)
		}
		copy(keys[i][:], data[offset:offset+32])
		offset += 32
	}

	if offset+32 > len(data) {
		return nil, fmt.Errorf("%w: truncated blockhash", ErrMessageTooShort)
	}
	var blockhash Hash
	copy(blockhash[:], data[offset:offset+32])
	offset += 32

	numIx, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse num instructions: %w", err)
	}
	offset += n

	instructions := make([]CompiledInstruction, numIx)
	for i := range instructions {
		ix, bytesRead, err := deserializeInstruction(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("parse instruction %d: %w", i, err)
		}
		instructions[i] = *ix
		offset += bytesRead
	}

	return &Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions:    instructions,
	}, nil
}

func deserializeInstruction(data []byte) (*CompiledInstruction, int, error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("%w: empty instruction", ErrMessageTooShort)
	}
	programIDIndex := data[0]
	offset := 1

	numAccounts, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("parse num accounts: %w", err)
	}
	offset += n

	if offset+int(numAccounts) > len(data) {
		return nil, 0, fmt.Errorf("%w: truncated account indices", ErrMessageTooShort)
	}
	accountIndices := make([]uint8, numAccounts)
	copy(accountIndices, data[offset:offset+int(numAccounts)])
	offset += int(numAccounts)

	dataLen, n, err := ParseCompactU16(data[offset:])
	if err != nil {
		return nil, 0, fmt.Errorf("parse data len: %w", err)
	}
	offset += n

	if offset+int(dataLen) > len(data) {
		return nil, 0, fmt.Errorf("%w: truncated instruction data", ErrMessageTooShort)
	}
	ixData := make([]byte, dataLen)
	copy(ixData, data[offset:offset+int(dataLen)])
	offset += int(dataLen)

	return &CompiledInstruction{
		ProgramIDIndex: programIDIndex,
		AccountIndices: accountIndices,
		Data:           ixData,
	}, offset, nil
}

// FeePayer returns the fee payer (first signer).
func (tx *Transaction) FeePayer() Pubkey {
	if len(tx.Message.AccountKeys) == 0 {
		return ZeroPubkey
	}
	return tx.Message.AccountKeys[0]
}

// ID returns the transaction signature (first signature).
func (tx *Transaction) ID() Signature {
	if len(tx.Signatures) == 0 {
		return ZeroSignature
	}
	return tx.Signatures[0]
}
