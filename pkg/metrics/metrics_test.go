package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransaction(t *testing.T) {
	m := New()
	code := uint32(2)

	m.RecordTransaction(false, nil, time.Millisecond)
	m.RecordTransaction(false, nil, time.Millisecond)
	m.RecordTransaction(true, &code, time.Millisecond)
	m.RecordTransaction(true, nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransactionsProcessed.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransactionsProcessed.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionErrors.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionErrors.WithLabelValues("none")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransactionDuration))
}

func TestRecordInstructionAndRPC(t *testing.T) {
	m := New()
	m.RecordInstruction("Token Program")
	m.RecordInstruction("Token Program")
	m.RecordInstruction("System Program")
	m.RecordRPC("getBalance", true)
	m.RecordRPC("getBalance", false)
	m.RecordAirdrop(500)
	m.RecordAirdrop(25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstructionsExecuted.WithLabelValues("Token Program")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstructionsExecuted.WithLabelValues("System Program")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("getBalance", StatusFailed)))
	assert.Equal(t, 525.0, testutil.ToFloat64(m.AirdropLamports))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransaction(true, nil, time.Second)
		m.RecordInstruction("x")
		m.RecordAirdrop(1)
		m.RecordRPC("x", true)
		require.NoError(t, m.TrackAccounts(func() uint64 { return 0 }))
	})
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	count := uint64(7)
	require.NoError(t, m.TrackAccounts(func() uint64 { return count }))
	m.RecordTransaction(false, nil, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `tokenledger_transactions_total{status="success"} 1`)
	assert.Contains(t, string(body), "tokenledger_accounts 7")
	assert.Contains(t, string(body), "tokenledger_transaction_duration_seconds_count 1")

	assert.Error(t, m.TrackAccounts(func() uint64 { return 0 }), "duplicate gauge registration")
}
