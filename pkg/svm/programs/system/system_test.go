package system

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(sha256.Sum256([]byte(seed)))
}

type host struct {
	program  *SystemProgram
	accounts map[types.Pubkey]*syscall.AccountInfo
}

func newHost() *host {
	return &host{
		program:  New(sysvar.DefaultRent()),
		accounts: make(map[types.Pubkey]*syscall.AccountInfo),
	}
}

func (h *host) fund(pk types.Pubkey, lamports uint64) *syscall.AccountInfo {
	info := syscall.NewAccountInfo(pk, types.NewAccount(types.Lamports(lamports), types.SystemProgramID), false, false)
	h.accounts[pk] = info
	return info
}

func (h *host) exec(ix *types.Instruction) error {
	infos := make([]*syscall.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		info, ok := h.accounts[meta.Pubkey]
		if !ok {
			info = h.fund(meta.Pubkey, 0)
		}
		info.IsSigner = meta.IsSigner
		info.IsWritable = meta.IsWritable
		infos[i] = info
	}
	return h.program.Execute(syscall.NewExecutionContext(h.program.ProgramID, infos, ix.Data), ix)
}

func TestInstructionWireFormat(t *testing.T) {
	owner := testPubkey("owner")
	ix := NewCreateAccountInstruction(testPubkey("a"), testPubkey("b"), 100, 82, owner)
	require.Len(t, ix.Data, 52)
	assert.Equal(t, InstructionCreateAccount, binary.LittleEndian.Uint32(ix.Data[0:4]))
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(ix.Data[4:12]))
	assert.Equal(t, uint64(82), binary.LittleEndian.Uint64(ix.Data[12:20]))
	assert.Equal(t, owner[:], ix.Data[20:52])

	decoded, err := decode(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, &CreateAccountInstruction{Lamports: 100, Space: 82, Owner: owner}, decoded)

	ix = NewTransferInstruction(testPubkey("a"), testPubkey("b"), 7)
	assert.Equal(t, []byte{2, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0}, ix.Data)

	decoded, err = decode(NewAllocateInstruction(testPubkey("a"), 9).Data)
	require.NoError(t, err)
	assert.Equal(t, &AllocateInstruction{Space: 9}, decoded)
}

func TestDecodeErrors(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":           nil,
		"short tag":       {2, 0},
		"unsupported tag": {3, 0, 0, 0},
		"short transfer":  {2, 0, 0, 0, 1},
		"short assign":    append([]byte{1, 0, 0, 0}, make([]byte, 31)...),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decode(data)
			assert.ErrorIs(t, err, ErrInvalidInstructionData)
		})
	}
}

func TestCreateAccount(t *testing.T) {
	h := newHost()
	payer, fresh := testPubkey("payer"), testPubkey("fresh")
	owner := testPubkey("program")
	h.fund(payer, 10_000_000)
	minimum := h.program.Rent.MinimumBalance(82)

	require.NoError(t, h.exec(NewCreateAccountInstruction(payer, fresh, minimum, 82, owner)))
	acc := h.accounts[fresh]
	assert.Equal(t, minimum, *acc.Lamports)
	assert.Equal(t, make([]byte, 82), acc.Data)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, 10_000_000-minimum, *h.accounts[payer].Lamports)

	err := h.exec(NewCreateAccountInstruction(payer, fresh, minimum, 82, owner))
	assert.ErrorIs(t, err, ErrAccountAlreadyExists)
}

func TestCreateAccountRejections(t *testing.T) {
	h := newHost()
	payer := testPubkey("payer")
	h.fund(payer, 1_000_000)
	owner := testPubkey("program")

	err := h.exec(NewCreateAccountInstruction(payer, testPubkey("a"), 1, 82, owner))
	assert.ErrorIs(t, err, ErrAccountNotRentExempt)

	err = h.exec(NewCreateAccountInstruction(payer, testPubkey("b"), 100_000_000, 0, owner))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = h.exec(NewCreateAccountInstruction(payer, testPubkey("c"), 1, MaxAccountDataSize+1, owner))
	assert.ErrorIs(t, err, ErrAccountDataTooLarge)

	ix := NewCreateAccountInstruction(payer, testPubkey("d"), 1_000_000, 0, owner)
	ix.Accounts[1].IsSigner = false
	assert.ErrorIs(t, h.exec(ix), ErrAccountNotSigner)

	ix = NewCreateAccountInstruction(payer, testPubkey("e"), 1_000_000, 0, owner)
	ix.Accounts = ix.Accounts[:1]
	assert.ErrorIs(t, h.exec(ix), ErrNotEnoughAccountKeys)

	assert.Equal(t, uint64(1_000_000), *h.accounts[payer].Lamports)
}

func TestTransfer(t *testing.T) {
	h := newHost()
	from, to := testPubkey("from"), testPubkey("to")
	h.fund(from, 500)

	require.NoError(t, h.exec(NewTransferInstruction(from, to, 200)))
	assert.Equal(t, uint64(300), *h.accounts[from].Lamports)
	assert.Equal(t, uint64(200), *h.accounts[to].Lamports)

	assert.ErrorIs(t, h.exec(NewTransferInstruction(from, to, 301)), ErrInsufficientFunds)

	h.fund(to, math.MaxUint64)
	assert.ErrorIs(t, h.exec(NewTransferInstruction(from, to, 1)), ErrLamportOverflow)
	assert.Equal(t, uint64(300), *h.accounts[from].Lamports)

	owned := h.fund(testPubkey("owned"), 50)
	owned.Owner = testPubkey("program")
	assert.ErrorIs(t, h.exec(NewTransferInstruction(owned.Pubkey, to, 1)), ErrInvalidAccountOwner)
}

func TestAssignAndAllocate(t *testing.T) {
	h := newHost()
	acct := testPubkey("acct")
	owner := testPubkey("program")
	h.fund(acct, 1)

	require.NoError(t, h.exec(NewAllocateInstruction(acct, 16)))
	assert.Len(t, h.accounts[acct].Data, 16)
	assert.ErrorIs(t, h.exec(NewAllocateInstruction(acct, 16)), ErrAccountAlreadyExists)

	require.NoError(t, h.exec(NewAssignInstruction(acct, owner)))
	assert.Equal(t, owner, h.accounts[acct].Owner)
	assert.ErrorIs(t, h.exec(NewAssignInstruction(acct, types.SystemProgramID)), ErrInvalidAccountOwner)
}
