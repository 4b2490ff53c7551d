package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fortiblox/x1-tokenledger/pkg/bank"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// Handler is the function signature for RPC method handlers.
type Handler func(ctx context.Context, params json.RawMessage) (any, *RPCError)

// Handlers binds RPC methods to a bank.
type Handlers struct {
	bank     *bank.Bank
	logger   zerolog.Logger
	handlers map[string]Handler
}

// NewHandlers creates the method table for b.
func NewHandlers(b *bank.Bank, logger zerolog.Logger) *Handlers {
	h := &Handlers{
		bank:     b,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
	h.registerHandlers()
	return h
}

// GetHandler returns the handler for a method, or nil if not found.
func (h *Handlers) GetHandler(method string) Handler {
	return h.handlers[method]
}

func (h *Handlers) registerHandlers() {
	h.handlers["getAccountInfo"] = h.handleGetAccountInfo
	h.handlers["getBalance"] = h.handleGetBalance
	h.handlers["getTokenAccountBalance"] = h.handleGetTokenAccountBalance
	h.handlers["getTokenSupply"] = h.handleGetTokenSupply
	h.handlers["getStateRoot"] = h.handleGetStateRoot
	h.handlers["getHealth"] = h.handleGetHealth
	h.handlers["requestAirdrop"] = h.handleRequestAirdrop
	h.handlers["sendTransaction"] = h.handleSendTransaction
}

// parseParams splits a positional parameter array and requires at least
// min entries.
func parseParams(params json.RawMessage, min int) ([]json.RawMessage, *RPCError) {
	var raw []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid params: expected array")
		}
	}
	if len(raw) < min {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("expected at least %d params, got %d", min, len(raw)))
	}
	return raw, nil
}

func parsePubkey(raw json.RawMessage) (types.Pubkey, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, "invalid pubkey parameter")
	}
	pk, err := DecodePubkey(s)
	if err != nil {
		return types.Pubkey{}, NewRPCError(InvalidParams, fmt.Sprintf("invalid pubkey: %v", err))
	}
	return pk, nil
}

// handleGetAccountInfo handles getAccountInfo.
// Params: [pubkey, {encoding}]. Missing accounts yield null.
func (h *Handlers) handleGetAccountInfo(_ context.Context, params json.RawMessage) (any, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	encoding := EncodingBase64
	if len(raw) > 1 {
		var options AccountInfoOptions
		if err := json.Unmarshal(raw[1], &options); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid options")
		}
		if options.Encoding != "" {
			if err := ValidateEncoding(options.Encoding); err != nil {
				return nil, NewRPCError(UnsupportedEncoding, err.Error())
			}
			encoding = options.Encoding
		}
	}

	account, err := h.bank.GetAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	if account == nil {
		return nil, nil
	}
	data, err := EncodeData(account.Data, encoding)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	return &AccountInfoResult{
		Lamports:   uint64(account.Lamports),
		Data:       []string{data, encoding},
		Owner:      account.Owner.String(),
		Executable: account.Executable,
		RentEpoch:  uint64(account.RentEpoch),
		Space:      uint64(len(account.Data)),
	}, nil
}

// handleGetBalance handles getBalance. Params: [pubkey].
func (h *Handlers) handleGetBalance(_ context.Context, params json.RawMessage) (any, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, err := h.bank.GetAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	if account == nil {
		return uint64(0), nil
	}
	return uint64(account.Lamports), nil
}

// handleGetTokenAccountBalance handles getTokenAccountBalance. Params: [account].
func (h *Handlers) handleGetTokenAccountBalance(_ context.Context, params json.RawMessage) (any, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, err := h.bank.GetTokenAccount(pubkey)
	if err != nil {
		return nil, lookupError(err)
	}
	mint, err := h.bank.GetMint(account.Mint)
	if err != nil {
		return nil, lookupError(err)
	}
	return tokenAmount(account.Amount, mint.Decimals), nil
}

// handleGetTokenSupply handles getTokenSupply. Params: [mint].
func (h *Handlers) handleGetTokenSupply(_ context.Context, params json.RawMessage) (any, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, err := h.bank.GetMint(pubkey)
	if err != nil {
		return nil, lookupError(err)
	}
	return tokenAmount(mint.Supply, mint.Decimals), nil
}

func tokenAmount(amount uint64, decimals uint8) *TokenAmount {
	return &TokenAmount{
		Amount:         strconv.FormatUint(amount, 10),
		Decimals:       decimals,
		UIAmountString: FormatAmount(amount, decimals),
	}
}

func lookupError(err error) *RPCError {
	if errors.Is(err, bank.ErrAccountNotFound) {
		return NewRPCError(KeyNotFound, err.Error())
	}
	return NewRPCError(InvalidParams, err.Error())
}

// handleGetStateRoot returns the base58 Merkle root over all accounts.
func (h *Handlers) handleGetStateRoot(_ context.Context, _ json.RawMessage) (any, *RPCError) {
	root, err := h.bank.StateRoot()
	if err != nil {
		return nil, NewRPCError(InternalError, err.Error())
	}
	return root.String(), nil
}

func (h *Handlers) handleGetHealth(_ context.Context, _ json.RawMessage) (any, *RPCError) {
	return "ok", nil
}

// handleRequestAirdrop handles requestAirdrop. Params: [pubkey, lamports].
// The result is the new balance.
func (h *Handlers) handleRequestAirdrop(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	raw, rpcErr := parseParams(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(raw[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	var lamports uint64
	if err := json.Unmarshal(raw[1], &lamports); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid lamports parameter")
	}

	account, err := h.bank.Airdrop(ctx, pubkey, lamports)
	if err != nil {
		return nil, NewRPCError(AirdropError, err.Error())
	}
	return uint64(account.Lamports), nil
}

// handleSendTransaction handles sendTransaction.
// Params: [encodedTransaction, {encoding}]. The result is the base58
// signature of the committed transaction.
func (h *Handlers) handleSendTransaction(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	raw, rpcErr := parseParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var encoded string
	if err := json.Unmarshal(raw[0], &encoded); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid transaction parameter")
	}
	encoding := EncodingBase64
	if len(raw) > 1 {
		var options SendTransactionOptions
		if err := json.Unmarshal(raw[1], &options); err != nil {
			return nil, NewRPCError(InvalidParams, "invalid options")
		}
		if options.Encoding != "" {
			encoding = options.Encoding
		}
	}

	wire, err := DecodeData(encoded, encoding)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("decode transaction: %v", err))
	}
	tx, err := types.DeserializeTransaction(wire)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("parse transaction: %v", err))
	}

	result, err := h.bank.ProcessTransaction(ctx, tx)
	if err != nil {
		h.logger.Error().Err(err).Msg("process transaction")
		return nil, NewRPCError(InternalError, err.Error())
	}
	if result.Err != nil {
		return nil, NewRPCErrorWithData(SendTransactionError, result.Err.Error(), &TransactionErrorData{
			Signature:        result.Signature.String(),
			InstructionIndex: result.InstructionIndex,
			Code:             result.ErrorCode,
			Logs:             result.Logs,
		})
	}
	return result.Signature.String(), nil
}
