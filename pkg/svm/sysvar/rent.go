// Package sysvar implements the rent sysvar consumed by programs that
// create storage.
package sysvar

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Rent parameters.
const (
	// AccountStorageOverhead is the number of bytes charged per account on
	// top of its data length.
	AccountStorageOverhead = 128

	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50

	// RentSize is the bincode size of the sysvar data.
	RentSize = 17
)

// ErrInvalidRentData is returned when the sysvar account cannot be decoded.
var ErrInvalidRentData = errors.New("invalid rent sysvar data")

// Rent is the rent sysvar.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the rent parameters used when none are configured.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the lamports an account of dataLen bytes needs to be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytesCharged := dataLen + AccountStorageOverhead
	return uint64(float64(bytesCharged*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether balance covers the rent-exempt minimum for dataLen.
func (r Rent) IsExempt(balance types.Lamports, dataLen uint64) bool {
	return uint64(balance) >= r.MinimumBalance(dataLen)
}

// MarshalWithEncoder writes the bincode layout
// lamports_per_byte_year:u64 | exemption_threshold:f64 | burn_percent:u8.
func (r Rent) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(r.LamportsPerByteYear, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteFloat64(r.ExemptionThreshold, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint8(r.BurnPercent)
}

// UnmarshalWithDecoder reads the bincode layout written by MarshalWithEncoder.
func (r *Rent) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	if r.LamportsPerByteYear, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if r.ExemptionThreshold, err = decoder.ReadFloat64(bin.LE); err != nil {
		return err
	}
	r.BurnPercent, err = decoder.ReadUint8()
	return err
}

// Encode returns the sysvar account data.
func (r Rent) Encode() []byte {
	buf := new(bytes.Buffer)
	if err := r.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic("rent encode into buffer: " + err.Error())
	}
	return buf.Bytes()
}

// DecodeRent parses sysvar account data.
func DecodeRent(data []byte) (Rent, error) {
	if len(data) < RentSize {
		return Rent{}, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidRentData, RentSize, len(data))
	}
	var r Rent
	if err := r.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return Rent{}, fmt.Errorf("%w: %v", ErrInvalidRentData, err)
	}
	return r, nil
}

// Account builds the sysvar account the host exposes at types.SysvarRentID.
func (r Rent) Account() *types.Account {
	data := r.Encode()
	return &types.Account{
		Lamports: types.Lamports(r.MinimumBalance(uint64(len(data)))),
		Data:     data,
		Owner:    SysvarOwnerID,
	}
}

// SysvarOwnerID owns every sysvar account.
var SysvarOwnerID = types.MustPubkeyFromBase58("Sysvar1111111111111111111111111111111111111")
