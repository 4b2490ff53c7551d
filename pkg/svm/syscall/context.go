// Package syscall defines the execution context a program receives for one
// instruction: the ordered account list, the instruction data and a log
// buffer.
package syscall

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidAccountIndex = errors.New("invalid account index")
	ErrMaxLogsExceeded     = errors.New("maximum log entries exceeded")
	ErrLogTooLong          = errors.New("log message too long")
)

// Limits for execution
const (
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
)

// AccountInfo is a program's view of one account. Data and Lamports are
// the host's working copy; mutations are visible to later instructions of
// the same transaction and are committed only if the transaction succeeds.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   *uint64
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// NewAccountInfo builds a working copy of acct. The data buffer is cloned.
func NewAccountInfo(pubkey types.Pubkey, acct *types.Account, isSigner, isWritable bool) *AccountInfo {
	lamports := uint64(acct.Lamports)
	info := &AccountInfo{
		Pubkey:     pubkey,
		Lamports:   &lamports,
		Owner:      acct.Owner,
		Executable: acct.Executable,
		RentEpoch:  uint64(acct.RentEpoch),
		IsSigner:   isSigner,
		IsWritable: isWritable,
	}
	if acct.Data != nil {
		info.Data = make([]byte, len(acct.Data))
		copy(info.Data, acct.Data)
	}
	return info
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	lamports := *a.Lamports
	clone := &AccountInfo{
		Pubkey:     a.Pubkey,
		Lamports:   &lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// ToAccount converts the working copy back into a stored account.
func (a *AccountInfo) ToAccount() *types.Account {
	var data []byte
	if a.Data != nil {
		data = make([]byte, len(a.Data))
		copy(data, a.Data)
	}
	return &types.Account{
		Lamports:   types.Lamports(*a.Lamports),
		Data:       data,
		Owner:      a.Owner,
		Executable: a.Executable,
		RentEpoch:  types.Epoch(a.RentEpoch),
	}
}

// ExecutionContext holds the state of one instruction invocation.
// It is used by a single goroutine.
type ExecutionContext struct {
	// ProgramID is the program being executed.
	ProgramID types.Pubkey

	// Accounts are ordered as in the instruction. The same AccountInfo
	// appears at every position referencing the same key.
	Accounts []*AccountInfo

	InstructionData []byte

	logs []string
}

// NewExecutionContext creates a new execution context.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte) *ExecutionContext {
	return &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: instructionData,
		logs:            make([]string, 0, 8),
	}
}

// AddLog adds a log message.
func (ctx *ExecutionContext) AddLog(message string) error {
	if len(ctx.logs) >= MaxLogMessages {
		return ErrMaxLogsExceeded
	}
	if len(message) > MaxLogMessageLength {
		return ErrLogTooLong
	}
	ctx.logs = append(ctx.logs, message)
	return nil
}

// Logf formats and adds a log message, dropping it once the buffer is full.
func (ctx *ExecutionContext) Logf(format string, args ...any) {
	_ = ctx.AddLog(fmt.Sprintf(format, args...))
}

// GetLogs returns all log messages.
func (ctx *ExecutionContext) GetLogs() []string {
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// GetAccount returns the first account with the given pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	for _, acc := range ctx.Accounts {
		if acc.Pubkey == pubkey {
			return acc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
}

// GetAccountByIndex returns the account at position index.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// AccountCount returns the number of accounts passed to the instruction.
func (ctx *ExecutionContext) AccountCount() int {
	return len(ctx.Accounts)
}

// IsProgramOwned reports whether acc is owned by the executing program.
func (ctx *ExecutionContext) IsProgramOwned(acc *AccountInfo) bool {
	return acc.Owner == ctx.ProgramID
}
