package bank

import (
	"fmt"

	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index     int
	ProgramID types.Pubkey
	Err       error
}

// Error implements the error interface.
func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (%s) failed: %v", e.Index, e.ProgramID, e.Err)
}

// Unwrap returns the program error.
func (e *InstructionError) Unwrap() error {
	return e.Err
}

// TransactionResult is the outcome of one processed transaction.
type TransactionResult struct {
	Signature types.Signature

	// Err is nil when the transaction committed.
	Err error

	// InstructionIndex is the failing instruction, or -1 when the
	// transaction succeeded or failed before any instruction ran.
	InstructionIndex int

	// ErrorCode is the token or program error code of Err, if it has one.
	ErrorCode *uint32

	// Deltas lists every committed account change.
	Deltas []types.AccountDelta

	Logs []string
}

// Succeeded reports whether the transaction committed.
func (r *TransactionResult) Succeeded() bool {
	return r.Err == nil
}

func newResult(tx *types.Transaction) *TransactionResult {
	return &TransactionResult{
		Signature:        tx.ID(),
		InstructionIndex: -1,
		Logs:             make([]string, 0),
	}
}
