package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Record sizes.
const (
	// MintSize is the size of a serialized Mint (82 bytes).
	MintSize = 82

	// AccountSize is the size of a serialized Account (181 bytes).
	AccountSize = 181

	// NativeDecimals is the precision of the native mint.
	NativeDecimals = 9

	// coptionSize is a 4-byte tag followed by a 32-byte payload region.
	coptionSize = 36
)

// COption tag values.
const (
	coptionNone uint32 = 0
	coptionSome uint32 = 1
)

// COption is an optional public key.
type COption struct {
	IsSome bool
	Value  types.Pubkey
}

// Some returns a present optional key.
func Some(pk types.Pubkey) COption {
	return COption{IsSome: true, Value: pk}
}

// Is reports whether the option holds pk.
func (o COption) Is(pk types.Pubkey) bool {
	return o.IsSome && o.Value == pk
}

// COptionU64 is an optional amount. On the wire its payload is 8
// little-endian bytes left-justified in a 32-byte region.
type COptionU64 struct {
	IsSome bool
	Value  uint64
}

// Mint describes a token type.
// Layout (82 bytes total):
//   - mint_authority: COption<Pubkey> (36 bytes)
//   - supply: u64 (8 bytes)
//   - decimals: u8 (1 byte)
//   - is_initialized: bool (1 byte)
//   - freeze_authority: COption<Pubkey> (36 bytes)
type Mint struct {
	MintAuthority   COption
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority COption
}

// Account is a balance of one mint held by one owner.
// Layout (181 bytes total):
//   - mint: Pubkey (32 bytes)
//   - owner: Pubkey (32 bytes)
//   - amount: u64 (8 bytes)
//   - is_initialized: bool (1 byte)
//   - is_native: COption<u64> (36 bytes)
//   - delegate: COption<Pubkey> (36 bytes)
//   - delegated_amount: u64 (8 bytes)
//   - is_frozen: bool (1 byte)
//   - reserved (27 bytes, zero)
type Account struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	IsInitialized   bool
	IsNative        COptionU64
	Delegate        COption
	DelegatedAmount uint64
	IsFrozen        bool
}

// IsNativeAccount reports whether the account wraps native lamports.
func (a *Account) IsNativeAccount() bool {
	return a.IsNative.IsSome
}

// DeserializeMint decodes an initialized Mint.
func DeserializeMint(data []byte) (*Mint, error) {
	mint, err := DeserializeMintUnchecked(data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, ErrNotInitialized
	}
	return mint, nil
}

// DeserializeMintUnchecked decodes a Mint without requiring it to be
// initialized. Used when reading a record before its own initialization.
func DeserializeMintUnchecked(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint must be %d bytes, got %d",
			ErrInvalidAccountData, MintSize, len(data))
	}

	mint := &Mint{}
	var err error
	offset := 0

	if mint.MintAuthority, offset, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}

	mint.Supply = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	mint.Decimals = data[offset]
	offset++

	if mint.IsInitialized, err = decodeBool(data[offset]); err != nil {
		return nil, err
	}
	offset++

	if mint.FreezeAuthority, _, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}

	return mint, nil
}

// Serialize encodes the Mint into a new MintSize buffer.
func (m *Mint) Serialize() []byte {
	data := make([]byte, MintSize)
	offset := 0

	offset = encodeCOption(data, offset, m.MintAuthority)

	binary.LittleEndian.PutUint64(data[offset:offset+8], m.Supply)
	offset += 8

	data[offset] = m.Decimals
	offset++

	data[offset] = encodeBool(m.IsInitialized)
	offset++

	encodeCOption(data, offset, m.FreezeAuthority)

	return data
}

// DeserializeAccount decodes an initialized Account.
func DeserializeAccount(data []byte) (*Account, error) {
	account, err := DeserializeAccountUnchecked(data)
	if err != nil {
		return nil, err
	}
	if !account.IsInitialized {
		return nil, ErrNotInitialized
	}
	return account, nil
}

// DeserializeAccountUnchecked decodes an Account without requiring it to
// be initialized.
func DeserializeAccountUnchecked(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: account must be %d bytes, got %d",
			ErrInvalidAccountData, AccountSize, len(data))
	}

	account := &Account{}
	var err error

	copy(account.Mint[:], data[0:32])
	copy(account.Owner[:], data[32:64])
	account.Amount = binary.LittleEndian.Uint64(data[64:72])

	if account.IsInitialized, err = decodeBool(data[72]); err != nil {
		return nil, err
	}

	offset := 73
	if account.IsNative, offset, err = decodeCOptionU64(data, offset); err != nil {
		return nil, err
	}
	if account.Delegate, offset, err = decodeCOption(data, offset); err != nil {
		return nil, err
	}

	account.DelegatedAmount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	if account.IsFrozen, err = decodeBool(data[offset]); err != nil {
		return nil, err
	}

	return account, nil
}

// Serialize encodes the Account into a new AccountSize buffer.
func (a *Account) Serialize() []byte {
	data := make([]byte, AccountSize)

	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	data[72] = encodeBool(a.IsInitialized)

	offset := encodeCOptionU64(data, 73, a.IsNative)
	offset = encodeCOption(data, offset, a.Delegate)

	binary.LittleEndian.PutUint64(data[offset:offset+8], a.DelegatedAmount)
	offset += 8

	data[offset] = encodeBool(a.IsFrozen)

	return data
}

func decodeBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte %d", ErrInvalidAccountData, b)
	}
}

func encodeBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func decodeTag(data []byte, offset int) (bool, error) {
	switch tag := binary.LittleEndian.Uint32(data[offset : offset+4]); tag {
	case coptionNone:
		return false, nil
	case coptionSome:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid option tag %d at offset %d", ErrInvalidAccountData, tag, offset)
	}
}

func decodeCOption(data []byte, offset int) (COption, int, error) {
	isSome, err := decodeTag(data, offset)
	if err != nil {
		return COption{}, offset, err
	}
	opt := COption{IsSome: isSome}
	if isSome {
		copy(opt.Value[:], data[offset+4:offset+coptionSize])
	}
	return opt, offset + coptionSize, nil
}

func encodeCOption(data []byte, offset int, opt COption) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], coptionSome)
		copy(data[offset+4:offset+coptionSize], opt.Value[:])
	}
	return offset + coptionSize
}

func decodeCOptionU64(data []byte, offset int) (COptionU64, int, error) {
	isSome, err := decodeTag(data, offset)
	if err != nil {
		return COptionU64{}, offset, err
	}
	opt := COptionU64{IsSome: isSome}
	if isSome {
		opt.Value = binary.LittleEndian.Uint64(data[offset+4 : offset+12])
	}
	return opt, offset + coptionSize, nil
}

func encodeCOptionU64(data []byte, offset int, opt COptionU64) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], coptionSome)
		binary.LittleEndian.PutUint64(data[offset+4:offset+12], opt.Value)
	}
	return offset + coptionSize
}
