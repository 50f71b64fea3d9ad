package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Confirmation Metrics
	confirmationPollsTotal   *prometheus.CounterVec
	confirmationPollAttempts *prometheus.HistogramVec
	confirmationPollDuration *prometheus.HistogramVec
	accountChecksTotal       *prometheus.CounterVec

	// Flow Metrics
	flowStepDuration  *prometheus.HistogramVec
	flowStepsTotal    *prometheus.CounterVec
	flowRunsTotal     *prometheus.CounterVec
	tokensTransferred *prometheus.CounterVec

	// Workflow Metrics
	flowWorkflowDuration *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method", "status_code"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status_code"},
		),

		// Solana RPC Metrics
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

		// Confirmation Metrics
		confirmationPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_confirmation_polls_total",
				Help: "Total number of confirmation waits by outcome",
			},
			[]string{"outcome"},
		),
		confirmationPollAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_poll_attempts",
				Help:    "Number of status queries issued per confirmation wait",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"outcome"},
		),
		confirmationPollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_poll_duration_seconds",
				Help:    "Time spent waiting for a signature to reach the target commitment",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		accountChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_token_account_checks_total",
				Help: "Total number of token account existence checks by resulting state",
			},
			[]string{"state"},
		),

		// Flow Metrics
		flowStepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splflow_step_duration_seconds",
				Help:    "Duration of token flow steps in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"step", "status"},
		),
		flowStepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splflow_steps_total",
				Help: "Total number of token flow steps executed",
			},
			[]string{"step", "status"},
		),
		flowRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splflow_runs_total",
				Help: "Total number of complete token flow runs",
			},
			[]string{"status"},
		),
		tokensTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splflow_tokens_transferred_base_units_total",
				Help: "Total token base units moved by the transfer step, by prior receiver account state",
			},
			[]string{"receiver_account"},
		),

		// Workflow Metrics
		flowWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splflow_workflow_activity_duration_seconds",
				Help:    "Duration of token flow workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	code := strconv.Itoa(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, code).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, code).Inc()
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmationPoll records the outcome of a confirmation wait.
func (m *Metrics) RecordConfirmationPoll(outcome string, attempts int, duration float64) {
	m.confirmationPollsTotal.WithLabelValues(outcome).Inc()
	m.confirmationPollAttempts.WithLabelValues(outcome).Observe(float64(attempts))
	m.confirmationPollDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordAccountCheck records the classified state of a token account lookup.
func (m *Metrics) RecordAccountCheck(state string) {
	m.accountChecksTotal.WithLabelValues(state).Inc()
}

// Flow metric helpers

// RecordFlowStep records a flow step execution with duration.
func (m *Metrics) RecordFlowStep(step, status string, duration float64) {
	m.flowStepDuration.WithLabelValues(step, status).Observe(duration)
	m.flowStepsTotal.WithLabelValues(step, status).Inc()
}

// RecordFlowRun records a completed (or failed) run.
func (m *Metrics) RecordFlowRun(status string) {
	m.flowRunsTotal.WithLabelValues(status).Inc()
}

// RecordTokensTransferred records token base units moved by a transfer.
// receiverAccount is the receiver account's state before the transfer
// ("exists" or "not_found"); mints are per run and never used as labels.
func (m *Metrics) RecordTokensTransferred(receiverAccount string, amount uint64) {
	m.tokensTransferred.WithLabelValues(receiverAccount).Add(float64(amount))
}

// Workflow metric helpers

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, status string, duration float64) {
	m.flowWorkflowDuration.WithLabelValues(activity, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}
