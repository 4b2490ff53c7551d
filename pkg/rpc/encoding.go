package rpc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Encoding types for binary payloads.
const (
	EncodingBase58     = "base58"
	EncodingBase64     = "base64"
	EncodingBase64Zstd = "base64+zstd"
)

// ValidateEncoding checks that encoding names a supported payload encoding.
func ValidateEncoding(encoding string) error {
	switch encoding {
	case EncodingBase58, EncodingBase64, EncodingBase64Zstd:
		return nil
	}
	return fmt.Errorf("unsupported encoding: %s", encoding)
}

// EncodeData encodes account data for a response.
func EncodeData(data []byte, encoding string) (string, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Encode(data), nil
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case EncodingBase64Zstd:
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return "", err
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	}
	return "", ValidateEncoding(encoding)
}

// DecodeData decodes a request payload. base64+zstd is not accepted for
// transactions.
func DecodeData(s, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Decode(s)
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(s)
	}
	return nil, fmt.Errorf("unsupported encoding: %s", encoding)
}

// DecodePubkey decodes a base58 string to pubkey.
func DecodePubkey(s string) (types.Pubkey, error) {
	return types.PubkeyFromBase58(s)
}

// FormatAmount renders a raw amount with decimals places, trimming
// trailing fractional zeros.
func FormatAmount(amount uint64, decimals uint8) string {
	digits := strconv.FormatUint(amount, 10)
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
