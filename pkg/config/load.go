package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/themis/pkg/policy/source"
)

// Load reads configuration from a YAML file, applies defaults and
// THEMIS_* environment overrides, and validates the result. Environment
// variables always take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies THEMIS_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THEMIS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("THEMIS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("THEMIS_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("THEMIS_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}

	if v := os.Getenv("THEMIS_POLICY_PATH"); v != "" {
		cfg.Policy.Path = v
	}
	if v := os.Getenv("THEMIS_POLICY_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Policy.Watch = b
		}
	}
	if v := os.Getenv("THEMIS_POLICY_GIT_REPO"); v != "" {
		if cfg.Policy.Git == nil {
			cfg.Policy.Git = &source.GitConfig{}
		}
		cfg.Policy.Git.Repository = v
	}
	if v := os.Getenv("THEMIS_POLICY_GIT_BRANCH"); v != "" && cfg.Policy.Git != nil {
		cfg.Policy.Git.Branch = v
	}
	if v := os.Getenv("THEMIS_POLICY_GIT_TOKEN"); v != "" && cfg.Policy.Git != nil {
		cfg.Policy.Git.Token = v
	}

	if v := os.Getenv("THEMIS_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("THEMIS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("THEMIS_AUDIT_BACKEND"); v != "" {
		cfg.Audit.Backend = v
	}
	if v := os.Getenv("THEMIS_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("THEMIS_AUDIT_VERIFY_SCHEDULE"); v != "" {
		cfg.Audit.VerifySchedule = v
	}

	if v := os.Getenv("THEMIS_ENGINE_VALIDATOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ValidatorTimeout = d
		}
	}
	if v := os.Getenv("THEMIS_ENGINE_MAX_POLICIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxPolicies = n
		}
	}
}
