package token

import (
	"errors"
	"fmt"
)

// TokenError is an error kind raised by the token program. Its integer
// value is the code surfaced at the transaction boundary.
type TokenError uint32

// Token program error kinds. Values are stable.
const (
	// ErrAlreadyInitialized: the record is already initialized.
	ErrAlreadyInitialized TokenError = iota
	// ErrNotInitialized: the record has not been initialized.
	ErrNotInitialized
	// ErrInsufficientFunds: the balance is lower than the requested amount.
	ErrInsufficientFunds
	// ErrInvalidMint: the mint is uninitialized, malformed or has a disabled mint authority.
	ErrInvalidMint
	// ErrMintMismatch: an account's mint does not match the expected mint.
	ErrMintMismatch
	// ErrInvalidOwner: the authority is not the owner, delegate or configured authority, or did not sign.
	ErrInvalidOwner
	// ErrOverflow: checked arithmetic overflowed or underflowed.
	ErrOverflow
	// ErrNotRentExempt: the lamport balance does not cover the rent-exempt minimum.
	ErrNotRentExempt
	// ErrInvalidInstruction: the instruction could not be decoded or is not supported.
	ErrInvalidInstruction
	// ErrInvalidState: the operation is not valid in the record's current state.
	ErrInvalidState
	// ErrNonNativeNotSupported: the operation is not valid for this kind of account.
	ErrNonNativeNotSupported
	// ErrAccountFrozen: the account is frozen.
	ErrAccountFrozen
	// ErrMintCannotFreeze: the mint has no freeze authority.
	ErrMintCannotFreeze
	// ErrMintDecimalsMismatch: the decimals supplied to a checked transfer differ from the mint's.
	ErrMintDecimalsMismatch
)

var tokenErrorText = map[TokenError]string{
	ErrAlreadyInitialized:    "account already initialized",
	ErrNotInitialized:        "account not initialized",
	ErrInsufficientFunds:     "insufficient funds",
	ErrInvalidMint:           "invalid mint",
	ErrMintMismatch:          "mint mismatch",
	ErrInvalidOwner:          "invalid owner",
	ErrOverflow:              "overflow",
	ErrNotRentExempt:         "not rent exempt",
	ErrInvalidInstruction:    "invalid instruction",
	ErrInvalidState:          "invalid state",
	ErrNonNativeNotSupported: "non-native account not supported",
	ErrAccountFrozen:         "account is frozen",
	ErrMintCannotFreeze:      "mint cannot freeze accounts",
	ErrMintDecimalsMismatch:  "mint decimals mismatch",
}

// Error implements the error interface.
func (e TokenError) Error() string {
	if s, ok := tokenErrorText[e]; ok {
		return s
	}
	return fmt.Sprintf("token error %d", uint32(e))
}

// Code returns the integer code of the error kind.
func (e TokenError) Code() uint32 {
	return uint32(e)
}

// ProgramError is a host-level error kind shared by all programs rather
// than specific to token logic.
type ProgramError uint32

// Boundary error kinds. Codes start at 0x100 so they never collide with TokenError.
const (
	ErrInvalidAccountData ProgramError = 0x100 + iota
	ErrInvalidInstructionData
	ErrIncorrectProgramID
	ErrNotEnoughAccountKeys
)

var programErrorText = map[ProgramError]string{
	ErrInvalidAccountData:     "invalid account data",
	ErrInvalidInstructionData: "invalid instruction data",
	ErrIncorrectProgramID:     "incorrect program id",
	ErrNotEnoughAccountKeys:   "not enough account keys",
}

// Error implements the error interface.
func (e ProgramError) Error() string {
	if s, ok := programErrorText[e]; ok {
		return s
	}
	return fmt.Sprintf("program error %#x", uint32(e))
}

// Code returns the integer code of the error kind.
func (e ProgramError) Code() uint32 {
	return uint32(e)
}

// ErrorCode extracts the code of the first TokenError or ProgramError in
// err's chain.
func ErrorCode(err error) (uint32, bool) {
	var te TokenError
	if errors.As(err, &te) {
		return te.Code(), true
	}
	var pe ProgramError
	if errors.As(err, &pe) {
		return pe.Code(), true
	}
	return 0, false
}
