// Package rpc serves the ledger over JSON-RPC 2.0.
package rpc

import (
	"encoding/json"
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Ledger error codes
	SendTransactionError = -32002
	AirdropError         = -32003
	KeyNotFound          = -32010
	UnsupportedEncoding  = -32011
)

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return e.Message
}

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// NewRPCErrorWithData creates a new RPC error with additional data.
func NewRPCErrorWithData(code int, message string, data any) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// AccountInfoResult represents the result of getAccountInfo.
type AccountInfoResult struct {
	Lamports   uint64   `json:"lamports"`
	Data       []string `json:"data"` // [payload, encoding]
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      uint64   `json:"space"`
}

// TokenAmount is a raw token amount with its mint precision.
type TokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// AccountInfoOptions represents optional parameters for getAccountInfo.
type AccountInfoOptions struct {
	Encoding string `json:"encoding,omitempty"`
}

// SendTransactionOptions represents optional parameters for sendTransaction.
type SendTransactionOptions struct {
	Encoding string `json:"encoding,omitempty"`
}

// TransactionErrorData is attached to a failed sendTransaction response.
type TransactionErrorData struct {
	Signature        string   `json:"signature"`
	InstructionIndex int      `json:"instructionIndex"`
	Code             *uint32  `json:"code,omitempty"`
	Logs             []string `json:"logs"`
}
