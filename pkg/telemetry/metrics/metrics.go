package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GovernanceMetrics tracks the operational metrics of the governance
// pipeline.
//
// Metrics:
//   - themis_governance_evaluations_total: evaluations by operation kind and effect
//   - themis_governance_evaluation_duration_seconds: evaluation latency
//   - themis_governance_validator_duration_seconds: per-standard validator latency
//   - themis_governance_validator_unavailable_total: degraded validator calls by standard
//   - themis_governance_decisions_total: enforcement decisions by outcome
//   - themis_governance_exceptions_granted_total: exception grants
//   - themis_governance_audit_appends_total: ledger appends by record type
//   - themis_governance_audit_verify_failures_total: chain verification failures
type GovernanceMetrics struct {
	registry *prometheus.Registry

	evaluationsTotal     *prometheus.CounterVec
	evaluationDuration   prometheus.Histogram
	validatorDuration    *prometheus.HistogramVec
	validatorUnavailable *prometheus.CounterVec
	decisionsTotal       *prometheus.CounterVec
	exceptionsGranted    prometheus.Counter
	auditAppends         *prometheus.CounterVec
	auditVerifyFailures  prometheus.Counter
}

// Config controls metric naming and exposition.
type Config struct {
	// Enabled turns the metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// Listen is the address the metrics HTTP server binds to.
	Listen string `yaml:"listen"`

	// Path is the exposition path, typically "/metrics".
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name component.
	Subsystem string `yaml:"subsystem"`
}

// New creates and registers governance metrics with the provided
// registry. If registry is nil a fresh one is created.
func New(cfg *Config, registry *prometheus.Registry) *GovernanceMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "themis"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "governance"
	}

	m := &GovernanceMetrics{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"kind", "effect"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a full policy evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
			},
		),

		validatorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validator_duration_seconds",
				Help:      "Duration of a compliance validator call in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"standard"},
		),

		validatorUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validator_unavailable_total",
				Help:      "Total validator calls that degraded the evaluation",
			},
			[]string{"standard"},
		),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total enforcement decisions",
			},
			[]string{"outcome"},
		),

		exceptionsGranted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "exceptions_granted_total",
				Help:      "Total exception grants",
			},
		),

		auditAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_appends_total",
				Help:      "Total audit ledger appends",
			},
			[]string{"type"},
		),

		auditVerifyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_verify_failures_total",
				Help:      "Total audit chain verification failures",
			},
		),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.validatorDuration,
		m.validatorUnavailable,
		m.decisionsTotal,
		m.exceptionsGranted,
		m.auditAppends,
		m.auditVerifyFailures,
	)

	return m
}

// ObserveEvaluation records a completed policy evaluation.
func (m *GovernanceMetrics) ObserveEvaluation(kind, effect string, d time.Duration) {
	m.evaluationsTotal.WithLabelValues(kind, effect).Inc()
	m.evaluationDuration.Observe(d.Seconds())
}

// ObserveValidator records one compliance validator call.
func (m *GovernanceMetrics) ObserveValidator(standard string, d time.Duration) {
	m.validatorDuration.WithLabelValues(standard).Observe(d.Seconds())
}

// ObserveValidatorUnavailable records a validator call that degraded the
// evaluation.
func (m *GovernanceMetrics) ObserveValidatorUnavailable(standard string) {
	m.validatorUnavailable.WithLabelValues(standard).Inc()
}

// ObserveDecision records an enforcement decision.
func (m *GovernanceMetrics) ObserveDecision(outcome string) {
	m.decisionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExceptionGranted records an exception grant.
func (m *GovernanceMetrics) ObserveExceptionGranted() {
	m.exceptionsGranted.Inc()
}

// ObserveAuditAppend records a ledger append.
func (m *GovernanceMetrics) ObserveAuditAppend(recordType string) {
	m.auditAppends.WithLabelValues(recordType).Inc()
}

// ObserveVerifyFailure records an audit chain verification failure.
func (m *GovernanceMetrics) ObserveVerifyFailure() {
	m.auditVerifyFailures.Inc()
}

// Handler returns the Prometheus exposition handler for the metrics
// registry.
func (m *GovernanceMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
