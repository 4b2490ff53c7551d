package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpackEncodeRoundTrip(t *testing.T) {
	authority := testPubkey("authority")
	instructions := []Instruction{
		&InitializeMintInstruction{Decimals: 6, MintAuthority: authority, FreezeAuthority: Some(testPubkey("freeze"))},
		&InitializeMintInstruction{Decimals: 0, MintAuthority: authority},
		&InitializeAccountInstruction{},
		&TransferInstruction{Amount: 500},
		&TransferCheckedInstruction{Amount: 1 << 40, Decimals: 9},
		&ApproveInstruction{Amount: 7},
		&RevokeInstruction{},
		&SetAuthorityInstruction{AuthorityType: AuthorityAccountOwner, NewAuthority: Some(authority)},
		&SetAuthorityInstruction{AuthorityType: AuthorityFreezeAccount},
		&MintToInstruction{Amount: 1000},
		&BurnInstruction{Amount: 300},
		&CloseAccountInstruction{},
		&FreezeAccountInstruction{},
		&ThawAccountInstruction{},
		&SyncNativeInstruction{},
	}

	seen := map[uint8]bool{}
	for _, inst := range instructions {
		data := inst.Encode()
		require.NotEmpty(t, data)
		assert.Equal(t, inst.Tag(), data[0])
		seen[inst.Tag()] = true

		decoded, err := Unpack(data)
		require.NoError(t, err, "tag %d", inst.Tag())
		assert.Equal(t, inst, decoded)
	}
	assert.Len(t, seen, 13, "every operation has a distinct tag")
}

func TestUnpackWireShapes(t *testing.T) {
	data := (&TransferInstruction{Amount: 0x0807060504030201}).Encode()
	assert.Equal(t, []byte{3, 1, 2, 3, 4, 5, 6, 7, 8}, data)

	data = (&InitializeMintInstruction{Decimals: 2, MintAuthority: testPubkey("a")}).Encode()
	assert.Len(t, data, 35)
	assert.Equal(t, byte(0), data[34])

	data = (&SetAuthorityInstruction{AuthorityType: AuthorityMintTokens, NewAuthority: Some(testPubkey("b"))}).Encode()
	assert.Len(t, data, 35)
	assert.Equal(t, []byte{6, 0, 1}, data[:3])
}

func TestUnpackTrailingBytesIgnored(t *testing.T) {
	data := append((&BurnInstruction{Amount: 9}).Encode(), 0xff, 0xff)
	decoded, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, &BurnInstruction{Amount: 9}, decoded)
}

func TestUnpackErrors(t *testing.T) {
	key := testPubkey("k")
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidInstruction},
		{"unknown tag", []byte{2}, ErrInvalidInstruction},
		{"unknown high tag", []byte{200}, ErrInvalidInstruction},
		{"short transfer", []byte{InstructionTransfer, 1, 2, 3}, ErrInvalidInstructionData},
		{"transfer checked without decimals", append([]byte{InstructionTransferChecked}, make([]byte, 8)...), ErrInvalidInstructionData},
		{"short mint to", []byte{InstructionMintTo}, ErrInvalidInstructionData},
		{"short approve", []byte{InstructionApprove, 1}, ErrInvalidInstructionData},
		{"short burn", []byte{InstructionBurn, 1, 2, 3, 4, 5, 6, 7}, ErrInvalidInstructionData},
		{"initialize mint without authority", []byte{InstructionInitializeMint, 6}, ErrInvalidInstructionData},
		{"initialize mint without option flag", append([]byte{InstructionInitializeMint, 6}, key[:]...), ErrInvalidInstructionData},
		{"initialize mint bad option flag", append(append([]byte{InstructionInitializeMint, 6}, key[:]...), 2), ErrInvalidInstruction},
		{"initialize mint truncated freeze key", append(append([]byte{InstructionInitializeMint, 6}, key[:]...), 1, 9), ErrInvalidInstructionData},
		{"set authority empty", []byte{InstructionSetAuthority}, ErrInvalidInstructionData},
		{"set authority bad type", []byte{InstructionSetAuthority, 4, 0}, ErrInvalidInstruction},
		{"set authority missing option", []byte{InstructionSetAuthority, 0}, ErrInvalidInstructionData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unpack(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvalidInstructionDataCode(t *testing.T) {
	_, err := Unpack([]byte{InstructionTransfer, 1})
	code, ok := ErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x101), code)
}

func TestParseAuthorityType(t *testing.T) {
	a, err := ParseAuthorityType("AccountOwner")
	require.NoError(t, err)
	assert.Equal(t, AuthorityAccountOwner, a)

	a, err = ParseAuthorityType("1")
	require.NoError(t, err)
	assert.Equal(t, AuthorityFreezeAccount, a)

	_, err = ParseAuthorityType("Owner")
	assert.ErrorIs(t, err, ErrInvalidInstruction)
}
