// Package metrics exposes ledger counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenledger"

// Transaction outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics holds the ledger collectors and the registry serving them.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsProcessed *prometheus.CounterVec
	TransactionErrors     *prometheus.CounterVec
	InstructionsExecuted  *prometheus.CounterVec
	TransactionDuration   prometheus.Histogram
	AirdropLamports       prometheus.Counter
	RPCRequests           *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TransactionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions processed, by outcome.",
		}, []string{"status"}),
		TransactionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_errors_total",
			Help:      "Failed transactions by token or program error code.",
		}, []string{"code"}),
		InstructionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Instructions executed, by program.",
		}, []string{"program"}),
		TransactionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time spent processing a transaction.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		AirdropLamports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "airdrop_lamports_total",
			Help:      "Lamports credited by airdrops.",
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests, by method and outcome.",
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		m.TransactionsProcessed,
		m.TransactionErrors,
		m.InstructionsExecuted,
		m.TransactionDuration,
		m.AirdropLamports,
		m.RPCRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackAccounts registers a gauge reporting count() at scrape time.
func (m *Metrics) TrackAccounts(count func() uint64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "accounts",
		Help:      "Accounts held by the store.",
	}, func() float64 { return float64(count()) }))
}

// RecordTransaction records one processed transaction. code is the error
// code of a failed transaction, if it has one.
func (m *Metrics) RecordTransaction(failed bool, code *uint32, d time.Duration) {
	if m == nil {
		return
	}
	m.TransactionDuration.Observe(d.Seconds())
	if !failed {
		m.TransactionsProcessed.WithLabelValues(StatusSuccess).Inc()
		return
	}
	m.TransactionsProcessed.WithLabelValues(StatusFailed).Inc()
	label := "none"
	if code != nil {
		label = strconv.FormatUint(uint64(*code), 10)
	}
	m.TransactionErrors.WithLabelValues(label).Inc()
}

// RecordInstruction counts an instruction dispatched to program.
func (m *Metrics) RecordInstruction(program string) {
	if m == nil {
		return
	}
	m.InstructionsExecuted.WithLabelValues(program).Inc()
}

// RecordAirdrop counts lamports credited by an airdrop.
func (m *Metrics) RecordAirdrop(lamports uint64) {
	if m == nil {
		return
	}
	m.AirdropLamports.Add(float64(lamports))
}

// RecordRPC counts one JSON-RPC call.
func (m *Metrics) RecordRPC(method string, ok bool) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusFailed
	}
	m.RPCRequests.WithLabelValues(method, status).Inc()
}

