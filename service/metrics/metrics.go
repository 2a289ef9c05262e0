package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Send Pipeline Metrics
	batchesBuiltTotal          *prometheus.CounterVec
	transactionsSubmittedTotal *prometheus.CounterVec
	confirmationsTotal         *prometheus.CounterVec
	confirmationDuration       *prometheus.HistogramVec
	recipientsPlannedTotal     *prometheus.CounterVec

	// Fee Sponsorship Metrics
	sponsorshipRequestsTotal *prometheus.CounterVec
	sponsorshipDuration      *prometheus.HistogramVec

	// Session Metrics
	sendSessionsTotal   *prometheus.CounterVec
	sendSessionDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		batchesBuiltTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_batches_built_total",
				Help: "Total number of transaction batches built by asset kind and batch kind",
			},
			[]string{"asset_kind", "batch_kind"},
		),
		transactionsSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_transactions_submitted_total",
				Help: "Total number of transactions submitted by status",
			},
			[]string{"status"},
		),
		confirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_confirmations_total",
				Help: "Total number of confirmation waits by outcome (confirmed, failed, timed_out)",
			},
			[]string{"outcome"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "send_confirmation_duration_seconds",
				Help:    "Time from submission to confirmation outcome in seconds",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
			},
			[]string{"outcome"},
		),
		recipientsPlannedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_recipients_planned_total",
				Help: "Total number of recipients planned by validity (valid, skipped, truncated)",
			},
			[]string{"validity"},
		),
		sponsorshipRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_sponsorship_requests_total",
				Help: "Total number of fee sponsorship requests by status",
			},
			[]string{"status"},
		),
		sponsorshipDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "send_sponsorship_duration_seconds",
				Help:    "Duration of fee sponsorship requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"status"},
		),
		sendSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_sessions_total",
				Help: "Total number of send sessions by terminal phase",
			},
			[]string{"phase"},
		),
		sendSessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "send_session_duration_seconds",
				Help:    "End-to-end duration of send sessions in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"phase"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, durationSeconds float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordBatchBuilt records a built transaction batch.
func (m *Metrics) RecordBatchBuilt(assetKind, batchKind string) {
	m.batchesBuiltTotal.WithLabelValues(assetKind, batchKind).Inc()
}

// RecordSubmission records a transaction submission attempt.
func (m *Metrics) RecordSubmission(status string) {
	m.transactionsSubmittedTotal.WithLabelValues(status).Inc()
}

// RecordConfirmation records the outcome of a confirmation wait.
func (m *Metrics) RecordConfirmation(outcome string, durationSeconds float64) {
	m.confirmationsTotal.WithLabelValues(outcome).Inc()
	m.confirmationDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordRecipientsPlanned records planned recipients by validity bucket.
func (m *Metrics) RecordRecipientsPlanned(validity string, count int) {
	m.recipientsPlannedTotal.WithLabelValues(validity).Add(float64(count))
}

// RecordSponsorship records a fee sponsorship request.
func (m *Metrics) RecordSponsorship(status string, durationSeconds float64) {
	m.sponsorshipRequestsTotal.WithLabelValues(status).Inc()
	m.sponsorshipDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordSessionComplete records a send session reaching a terminal phase.
func (m *Metrics) RecordSessionComplete(phase string, durationSeconds float64) {
	m.sendSessionsTotal.WithLabelValues(phase).Inc()
	m.sendSessionDuration.WithLabelValues(phase).Observe(durationSeconds)
}
