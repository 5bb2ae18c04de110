package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/themis/pkg/policy/source"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "themis.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Metrics.Listen != ":9464" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics defaults = %s %s", cfg.Metrics.Listen, cfg.Metrics.Path)
	}
	if cfg.Store.Backend != "memory" || cfg.Audit.Backend != "memory" {
		t.Errorf("backend defaults = %s/%s, want memory/memory", cfg.Store.Backend, cfg.Audit.Backend)
	}
	if cfg.Engine.ValidatorTimeout != 5*time.Second {
		t.Errorf("ValidatorTimeout = %v, want 5s", cfg.Engine.ValidatorTimeout)
	}
	if cfg.Engine.MaxPolicies != 100 {
		t.Errorf("MaxPolicies = %d, want 100", cfg.Engine.MaxPolicies)
	}
	if cfg.Policy.DebounceInterval != 200*time.Millisecond {
		t.Errorf("DebounceInterval = %v, want 200ms", cfg.Policy.DebounceInterval)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: text
store:
  backend: sqlite
  path: /var/lib/themis/policies.db
audit:
  backend: sqlite
  path: /var/lib/themis/audit.db
  verify_schedule: "0 3 * * *"
engine:
  validator_timeout: 10s
  max_policies: 50
policy:
  path: /etc/themis/policies
enforcement:
  approvers:
    alice: [exception-approver]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/var/lib/themis/policies.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Audit.VerifySchedule != "0 3 * * *" {
		t.Errorf("VerifySchedule = %q", cfg.Audit.VerifySchedule)
	}
	if cfg.Engine.ValidatorTimeout != 10*time.Second || cfg.Engine.MaxPolicies != 50 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if roles := cfg.Enforcement.Approvers["alice"]; len(roles) != 1 || roles[0] != "exception-approver" {
		t.Errorf("approvers = %+v", cfg.Enforcement.Approvers)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
store:
  backend: memory
`)

	t.Setenv("THEMIS_LOGGING_LEVEL", "error")
	t.Setenv("THEMIS_STORE_BACKEND", "sqlite")
	t.Setenv("THEMIS_STORE_PATH", "/tmp/policies.db")
	t.Setenv("THEMIS_ENGINE_MAX_POLICIES", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %q, environment must win over the file", cfg.Logging.Level)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/policies.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Engine.MaxPolicies != 7 {
		t.Errorf("MaxPolicies = %d, want 7", cfg.Engine.MaxPolicies)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() expected an error for a missing file")
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "bad store backend",
			mutate:    func(c *Config) { c.Store.Backend = "postgres" },
			wantField: "store.backend",
		},
		{
			name:      "sqlite store without path",
			mutate:    func(c *Config) { c.Store.Backend = "sqlite" },
			wantField: "store.path",
		},
		{
			name:      "sqlite audit without path",
			mutate:    func(c *Config) { c.Audit.Backend = "sqlite" },
			wantField: "audit.path",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
		{
			name:      "git without repository",
			mutate:    func(c *Config) { c.Policy.Git = &source.GitConfig{} },
			wantField: "policy.git.repository",
		},
		{
			name: "git combined with watch",
			mutate: func(c *Config) {
				c.Policy.Watch = true
				c.Policy.Git = &source.GitConfig{Repository: "https://example.com/policies.git"}
			},
			wantField: "policy.watch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)

			err := Validate(&cfg)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() errors %v do not mention %s", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{
		{Field: "store.backend", Message: `invalid backend "postgres" (must be memory or sqlite)`},
	}}
	if !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("Error() = %q, want the field named", err.Error())
	}
}
