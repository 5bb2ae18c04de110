package config

import (
	"time"

	"mercator-hq/themis/pkg/policy/source"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// Config is the top-level themis configuration.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     metrics.Config    `yaml:"metrics"`
	Policy      PolicyConfig      `yaml:"policy"`
	Store       StoreConfig       `yaml:"store"`
	Audit       AuditConfig       `yaml:"audit"`
	Engine      EngineConfig      `yaml:"engine"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// PolicyConfig configures where policy documents come from.
type PolicyConfig struct {
	// Path is the directory of YAML policy documents.
	Path string `yaml:"path"`

	// Watch reloads policies on file changes.
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a watched reload.
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Git, when set, syncs policies from a Git repository instead of a
	// plain directory.
	Git *source.GitConfig `yaml:"git"`
}

// StoreConfig configures the policy store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file for the sqlite backend.
	Path string `yaml:"path"`
}

// AuditConfig configures the audit ledger.
type AuditConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file for the sqlite backend.
	Path string `yaml:"path"`

	// VerifySchedule is a cron expression for scheduled chain
	// verification. Empty disables the scheduler.
	VerifySchedule string `yaml:"verify_schedule"`
}

// EngineConfig configures the evaluation engine.
type EngineConfig struct {
	// ValidatorTimeout bounds each compliance validator call.
	ValidatorTimeout time.Duration `yaml:"validator_timeout"`

	// MaxPolicies caps the resolved policy set per evaluation.
	MaxPolicies int `yaml:"max_policies"`
}

// EnforcementConfig configures the exception workflow.
type EnforcementConfig struct {
	// Approvers maps actor names to their roles. An actor needs the
	// exception-approver role to grant exceptions.
	Approvers map[string][]string `yaml:"approvers"`
}
