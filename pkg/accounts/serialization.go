package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Stored account layout, little-endian:
//
//	lamports:8 | data_len:4 | data | owner:32 | executable:1 | rent_epoch:8
const (
	serializationHeaderSize = 8 + 4
	serializationFooterSize = 32 + 1 + 8
	serializationMinSize    = serializationHeaderSize + serializationFooterSize
)

var (
	// ErrInvalidAccountData is returned when a stored account is malformed.
	ErrInvalidAccountData = errors.New("invalid stored account")

	// ErrNilAccount is returned when serializing a nil account.
	ErrNilAccount = errors.New("cannot serialize nil account")
)

// SerializedSize returns the encoded length of account.
func SerializedSize(account *types.Account) int {
	return serializationMinSize + len(account.Data)
}

// SerializeAccount encodes an account in the stored layout.
func SerializeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, ErrNilAccount
	}
	if len(account.Data) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: data of %d bytes", ErrInvalidAccountData, len(account.Data))
	}

	buf := make([]byte, SerializedSize(account))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(account.Lamports))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(account.Data)))
	offset := serializationHeaderSize + copy(buf[serializationHeaderSize:], account.Data)

	offset += copy(buf[offset:], account.Owner[:])
	if account.Executable {
		buf[offset] = 1
	}
	offset++
	binary.LittleEndian.PutUint64(buf[offset:], uint64(account.RentEpoch))

	return buf, nil
}

// DeserializeAccount decodes an account from the stored layout. The input
// must be exactly one encoded account.
func DeserializeAccount(data []byte) (*types.Account, error) {
	if len(data) < serializationMinSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrInvalidAccountData, serializationMinSize, len(data))
	}

	dataLen := int(binary.LittleEndian.Uint32(data[8:12]))
	if expected := serializationMinSize + dataLen; len(data) != expected {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAccountData, expected, len(data))
	}

	account := &types.Account{
		Lamports: types.Lamports(binary.LittleEndian.Uint64(data[0:8])),
	}
	offset := serializationHeaderSize
	if dataLen > 0 {
		account.Data = make([]byte, dataLen)
		copy(account.Data, data[offset:offset+dataLen])
		offset += dataLen
	}

	copy(account.Owner[:], data[offset:offset+32])
	offset += 32

	switch data[offset] {
	case 0:
	case 1:
		account.Executable = true
	default:
		return nil, fmt.Errorf("%w: executable flag %d", ErrInvalidAccountData, data[offset])
	}
	offset++

	account.RentEpoch = types.Epoch(binary.LittleEndian.Uint64(data[offset:]))
	return account, nil
}
