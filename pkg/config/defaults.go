package config

import "time"

// Default values applied to unset fields.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsListen    = ":9464"
	DefaultMetricsPath      = "/metrics"
	DefaultStoreBackend     = "memory"
	DefaultAuditBackend     = "memory"
	DefaultValidatorTimeout = 5 * time.Second
	DefaultMaxPolicies      = 100
	DefaultDebounce         = 200 * time.Millisecond
)

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Policy.DebounceInterval <= 0 {
		cfg.Policy.DebounceInterval = DefaultDebounce
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Engine.ValidatorTimeout <= 0 {
		cfg.Engine.ValidatorTimeout = DefaultValidatorTimeout
	}
	if cfg.Engine.MaxPolicies <= 0 {
		cfg.Engine.MaxPolicies = DefaultMaxPolicies
	}
}
