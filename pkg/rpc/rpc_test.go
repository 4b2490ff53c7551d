package rpc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-tokenledger/pkg/accounts"
	"github.com/fortiblox/x1-tokenledger/pkg/bank"
	"github.com/fortiblox/x1-tokenledger/pkg/crypto"
	"github.com/fortiblox/x1-tokenledger/pkg/metrics"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/system"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

type testResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
	ID any `json:"id"`
}

type fixture struct {
	t      *testing.T
	bank   *bank.Bank
	srv    *httptest.Server
	payer  *crypto.Keypair
	nextID int
}

func keypair(t *testing.T, seed string) *crypto.Keypair {
	t.Helper()
	s := sha256.Sum256([]byte(seed))
	kp, err := crypto.KeypairFromSeed(s[:])
	require.NoError(t, err)
	return kp
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b, err := bank.New(accounts.NewMemoryDB())
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(b, DefaultServerConfig()).Handler())
	t.Cleanup(srv.Close)

	f := &fixture{t: t, bank: b, srv: srv, payer: keypair(t, "payer")}
	_, err = b.Airdrop(context.Background(), f.payer.Pubkey(), 10_000_000_000)
	require.NoError(t, err)
	return f
}

func (f *fixture) post(body string) *http.Response {
	f.t.Helper()
	resp, err := http.Post(f.srv.URL, "application/json", bytes.NewBufferString(body))
	require.NoError(f.t, err)
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) call(method string, params ...any) testResponse {
	f.t.Helper()
	f.nextID++
	req := map[string]any{"jsonrpc": "2.0", "id": f.nextID, "method": method, "params": params}
	body, err := json.Marshal(req)
	require.NoError(f.t, err)

	var out testResponse
	require.NoError(f.t, json.NewDecoder(f.post(string(body)).Body).Decode(&out))
	assert.Equal(f.t, "2.0", out.JSONRPC)
	return out
}

func (f *fixture) result(method string, v any, params ...any) {
	f.t.Helper()
	resp := f.call(method, params...)
	require.Nil(f.t, resp.Error, "%s: %+v", method, resp.Error)
	require.NoError(f.t, json.Unmarshal(resp.Result, v))
}

func (f *fixture) signedTx(signers []*crypto.Keypair, ixs ...*types.Instruction) *types.Transaction {
	f.t.Helper()
	msg, err := types.NewMessage(f.payer.Pubkey(), types.ZeroHash, ixs...)
	require.NoError(f.t, err)
	tx, err := crypto.SignTransaction(msg, append([]*crypto.Keypair{f.payer}, signers...)...)
	require.NoError(f.t, err)
	return tx
}

func TestServer_ProtocolErrors(t *testing.T) {
	f := newFixture(t)

	var out testResponse
	require.NoError(t, json.NewDecoder(f.post("{not json").Body).Decode(&out))
	require.NotNil(t, out.Error)
	assert.Equal(t, ParseError, out.Error.Code)

	require.NoError(t, json.NewDecoder(f.post(`{"jsonrpc":"1.0","id":1,"method":"getHealth"}`).Body).Decode(&out))
	require.NotNil(t, out.Error)
	assert.Equal(t, InvalidRequest, out.Error.Code)

	resp := f.call("noSuchMethod")
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)

	resp = f.call("getBalance")
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)

	resp = f.call("getBalance", "not-base58-0OIl")
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)

	get, err := http.Get(f.srv.URL)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestServer_Batch(t *testing.T) {
	f := newFixture(t)

	body := `[
		{"jsonrpc":"2.0","id":1,"method":"getHealth"},
		{"jsonrpc":"2.0","method":"getHealth"},
		{"jsonrpc":"2.0","method":"missing"},
		{"jsonrpc":"2.0","id":3,"method":"missing"}
	]`
	var out []testResponse
	require.NoError(t, json.NewDecoder(f.post(body).Body).Decode(&out))
	require.Len(t, out, 2)
	assert.JSONEq(t, `"ok"`, string(out[0].Result))
	require.NotNil(t, out[1].Error)
	assert.Equal(t, MethodNotFound, out[1].Error.Code)

	var empty testResponse
	require.NoError(t, json.NewDecoder(f.post("[]").Body).Decode(&empty))
	require.NotNil(t, empty.Error)
	assert.Equal(t, InvalidRequest, empty.Error.Code)
}

func TestServer_Notifications(t *testing.T) {
	f := newFixture(t)
	target := keypair(t, "notified").Pubkey().String()

	resp := f.post(`{"jsonrpc":"2.0","method":"getHealth"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)

	resp = f.post(`{"jsonrpc":"2.0","method":"requestAirdrop","params":["` + target + `",75]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	var balance uint64
	f.result("getBalance", &balance, target)
	assert.Equal(t, uint64(75), balance)

	resp = f.post(`{"jsonrpc":"2.0","method":"getBalance","params":[]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.post(`[{"jsonrpc":"2.0","method":"getHealth"},{"jsonrpc":"2.0","method":"missing"}]`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestServer_CORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHandlers_AirdropAndBalance(t *testing.T) {
	f := newFixture(t)
	target := keypair(t, "target").Pubkey().String()

	var balance uint64
	f.result("getBalance", &balance, target)
	assert.Zero(t, balance)

	f.result("requestAirdrop", &balance, target, 500)
	assert.Equal(t, uint64(500), balance)
	f.result("getBalance", &balance, target)
	assert.Equal(t, uint64(500), balance)

	resp := f.call("requestAirdrop", types.NativeMintID.String(), 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, AirdropError, resp.Error.Code)
}

func TestHandlers_GetAccountInfo(t *testing.T) {
	f := newFixture(t)

	resp := f.call("getAccountInfo", keypair(t, "nobody").Pubkey().String())
	require.Nil(t, resp.Error)
	assert.True(t, len(resp.Result) == 0 || string(resp.Result) == "null")

	var info AccountInfoResult
	f.result("getAccountInfo", &info, types.NativeMintID.String())
	assert.Equal(t, types.TokenProgramID.String(), info.Owner)
	assert.Equal(t, uint64(token.MintSize), info.Space)
	assert.Equal(t, f.bank.Rent().MinimumBalance(token.MintSize), info.Lamports)
	require.Len(t, info.Data, 2)
	assert.Equal(t, EncodingBase64, info.Data[1])
	raw, err := base64.StdEncoding.DecodeString(info.Data[0])
	require.NoError(t, err)
	mint, err := token.DeserializeMint(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(token.NativeDecimals), mint.Decimals)

	f.result("getAccountInfo", &info, types.NativeMintID.String(), map[string]string{"encoding": EncodingBase64Zstd})
	compressed, err := base64.StdEncoding.DecodeString(info.Data[0])
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, plain)

	resp = f.call("getAccountInfo", types.NativeMintID.String(), map[string]string{"encoding": "jsonParsed"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, UnsupportedEncoding, resp.Error.Code)

	f.result("getAccountInfo", &info, types.SysvarRentID.String())
	assert.Equal(t, sysvar.SysvarOwnerID.String(), info.Owner)
}

func TestHandlers_SendTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent := f.bank.Rent()
	mint, alice, bob := keypair(t, "mint"), keypair(t, "alice"), keypair(t, "bob")
	aliceToken, bobToken := keypair(t, "alice-token"), keypair(t, "bob-token")

	tx := f.signedTx([]*crypto.Keypair{mint, aliceToken},
		system.NewCreateAccountInstruction(f.payer.Pubkey(), mint.Pubkey(), rent.MinimumBalance(token.MintSize), token.MintSize, types.TokenProgramID),
		token.NewInitializeMintInstruction(mint.Pubkey(), 6, f.payer.Pubkey(), token.COption{}),
		system.NewCreateAccountInstruction(f.payer.Pubkey(), aliceToken.Pubkey(), rent.MinimumBalance(token.AccountSize), token.AccountSize, types.TokenProgramID),
		token.NewInitializeAccountInstruction(aliceToken.Pubkey(), mint.Pubkey(), alice.Pubkey()),
		token.NewMintToInstruction(mint.Pubkey(), aliceToken.Pubkey(), f.payer.Pubkey(), 2_500_000),
	)
	var sig string
	f.result("sendTransaction", &sig, base64.StdEncoding.EncodeToString(tx.Serialize()))
	assert.Equal(t, tx.ID().String(), sig)

	var supply TokenAmount
	f.result("getTokenSupply", &supply, mint.Pubkey().String())
	assert.Equal(t, TokenAmount{Amount: "2500000", Decimals: 6, UIAmountString: "2.5"}, supply)

	result, err := f.bank.ProcessInstructions(ctx, f.payer, []*crypto.Keypair{bobToken},
		system.NewCreateAccountInstruction(f.payer.Pubkey(), bobToken.Pubkey(), rent.MinimumBalance(token.AccountSize), token.AccountSize, types.TokenProgramID),
		token.NewInitializeAccountInstruction(bobToken.Pubkey(), mint.Pubkey(), bob.Pubkey()),
	)
	require.NoError(t, err)
	require.NoError(t, result.Err)

	rootBefore, err := f.bank.StateRoot()
	require.NoError(t, err)

	over := f.signedTx([]*crypto.Keypair{alice},
		token.NewTransferInstruction(aliceToken.Pubkey(), bobToken.Pubkey(), alice.Pubkey(), 3_000_000),
	)
	resp := f.call("sendTransaction", base58.Encode(over.Serialize()), map[string]string{"encoding": EncodingBase58})
	require.NotNil(t, resp.Error)
	assert.Equal(t, SendTransactionError, resp.Error.Code)
	var data TransactionErrorData
	require.NoError(t, json.Unmarshal(resp.Error.Data, &data))
	assert.Equal(t, over.ID().String(), data.Signature)
	assert.Equal(t, 0, data.InstructionIndex)
	require.NotNil(t, data.Code)
	assert.Equal(t, uint32(token.ErrInsufficientFunds), *data.Code)
	assert.NotEmpty(t, data.Logs)

	var root string
	f.result("getStateRoot", &root)
	assert.Equal(t, rootBefore.String(), root)

	ok := f.signedTx([]*crypto.Keypair{alice},
		token.NewTransferInstruction(aliceToken.Pubkey(), bobToken.Pubkey(), alice.Pubkey(), 1_000_000),
	)
	f.result("sendTransaction", &sig, base64.StdEncoding.EncodeToString(ok.Serialize()))

	var balance TokenAmount
	f.result("getTokenAccountBalance", &balance, bobToken.Pubkey().String())
	assert.Equal(t, "1000000", balance.Amount)
	assert.Equal(t, "1", balance.UIAmountString)

	resp = f.call("getTokenAccountBalance", keypair(t, "ghost").Pubkey().String())
	require.NotNil(t, resp.Error)
	assert.Equal(t, KeyNotFound, resp.Error.Code)

	resp = f.call("sendTransaction", "AAAA")
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{0, 0, "0"},
		{42, 0, "42"},
		{0, 6, "0"},
		{1, 9, "0.000000001"},
		{1_500_000, 6, "1.5"},
		{2_000_000, 6, "2"},
		{123_456_789, 3, "123456.789"},
	}
	for _, tt := range tests {
		t.Run(strconv.FormatUint(tt.amount, 10), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.decimals))
		})
	}
}

func TestServer_ServeShutdown(t *testing.T) {
	b, err := bank.New(accounts.NewMemoryDB())
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(b, DefaultServerConfig()).ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	b, err := bank.New(accounts.NewMemoryDB(), bank.WithMetrics(m))
	require.NoError(t, err)
	config := DefaultServerConfig()
	config.Metrics = m
	srv := httptest.NewServer(NewServer(b, config).Handler())
	defer srv.Close()

	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"getHealth"}`,
		`{"jsonrpc":"2.0","id":2,"method":"getBalance","params":[]}`,
	} {
		resp, err := http.Post(srv.URL, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), `tokenledger_rpc_requests_total{method="getHealth",status="success"} 1`)
	assert.Contains(t, string(text), `tokenledger_rpc_requests_total{method="getBalance",status="failed"} 1`)
	assert.Contains(t, string(text), "tokenledger_accounts 1")
}
