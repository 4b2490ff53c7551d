package syscall

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(sha256.Sum256([]byte(seed)))
}

func TestAccountInfoRoundTrip(t *testing.T) {
	acct := &types.Account{Lamports: 42, Data: []byte{1, 2, 3}, Owner: types.TokenProgramID, RentEpoch: 7}
	info := NewAccountInfo(testPubkey("a"), acct, true, false)

	info.Data[0] = 9
	*info.Lamports = 40
	assert.Equal(t, byte(1), acct.Data[0], "working copy must not alias the stored account")

	back := info.ToAccount()
	assert.Equal(t, types.Lamports(40), back.Lamports)
	assert.Equal(t, []byte{9, 2, 3}, back.Data)
	assert.Equal(t, types.Epoch(7), back.RentEpoch)

	clone := info.Clone()
	*clone.Lamports = 1
	clone.Data[1] = 0
	assert.Equal(t, uint64(40), *info.Lamports)
	assert.Equal(t, byte(2), info.Data[1])
}

func TestExecutionContextAccounts(t *testing.T) {
	a := NewAccountInfo(testPubkey("a"), types.NewAccount(1, types.TokenProgramID), false, true)
	b := NewAccountInfo(testPubkey("b"), types.NewAccount(2, types.SystemProgramID), true, false)
	ctx := NewExecutionContext(types.TokenProgramID, []*AccountInfo{a, b, a}, []byte{3})

	assert.Equal(t, 3, ctx.AccountCount())
	got, err := ctx.GetAccountByIndex(2)
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = ctx.GetAccountByIndex(3)
	assert.ErrorIs(t, err, ErrInvalidAccountIndex)

	got, err = ctx.GetAccount(testPubkey("b"))
	require.NoError(t, err)
	assert.Same(t, b, got)
	_, err = ctx.GetAccount(testPubkey("c"))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.True(t, ctx.IsProgramOwned(a))
	assert.False(t, ctx.IsProgramOwned(b))
}

func TestExecutionContextLogs(t *testing.T) {
	ctx := NewExecutionContext(types.TokenProgramID, nil, nil)
	ctx.Logf("Instruction: %s", "Transfer")
	assert.Equal(t, []string{"Instruction: Transfer"}, ctx.GetLogs())

	assert.ErrorIs(t, ctx.AddLog(strings.Repeat("x", MaxLogMessageLength+1)), ErrLogTooLong)
	for i := 1; i < MaxLogMessages; i++ {
		require.NoError(t, ctx.AddLog("line"))
	}
	assert.ErrorIs(t, ctx.AddLog("overflow"), ErrMaxLogsExceeded)
	assert.Len(t, ctx.GetLogs(), MaxLogMessages)
}
