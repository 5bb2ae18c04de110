package main

import (
	"fmt"
	"log/slog"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/config"
	"mercator-hq/themis/pkg/enforcement"
	"mercator-hq/themis/pkg/policy/engine"
	"mercator-hq/themis/pkg/policy/source"
	"mercator-hq/themis/pkg/policy/store"
	"mercator-hq/themis/pkg/telemetry/logging"
)

// policyStore is the full store surface the CLI wires: the read/resolve
// contract plus publication with provenance.
type policyStore interface {
	store.Store
	source.Publisher
}

// app holds the wired components shared by the CLI commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	ledger     audit.Ledger
	store      policyStore
	engine     *engine.Engine
	exceptions *enforcement.ExceptionStore
	enforcer   *enforcement.Enforcer
}

// buildApp loads configuration and wires the governance components.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	ledger, err := buildLedger(cfg)
	if err != nil {
		return nil, err
	}

	policies, err := buildStore(cfg, ledger)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	authorizer := enforcement.NewStaticAuthorizer(cfg.Enforcement.Approvers)
	exceptions, err := enforcement.NewExceptionStore(authorizer, ledger, logger)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(&engine.Config{
		ValidatorTimeout: cfg.Engine.ValidatorTimeout,
		MaxPolicies:      cfg.Engine.MaxPolicies,
	}, policies, compliance.NewDefaultRegistry(), exceptions, logger)
	if err != nil {
		return nil, err
	}

	enforcer, err := enforcement.NewEnforcer(exceptions, ledger, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		ledger:     ledger,
		store:      policies,
		engine:     eng,
		exceptions: exceptions,
		enforcer:   enforcer,
	}, nil
}

// close releases the app's backend resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close policy store", "error", err)
	}
	if err := a.ledger.Close(); err != nil {
		a.logger.Error("failed to close audit ledger", "error", err)
	}
}

func buildLedger(cfg *config.Config) (audit.Ledger, error) {
	switch cfg.Audit.Backend {
	case "memory":
		return audit.NewMemoryLedger(), nil
	case "sqlite":
		lcfg := audit.DefaultSQLiteConfig()
		lcfg.Path = cfg.Audit.Path
		return audit.NewSQLiteLedger(lcfg)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

func buildStore(cfg *config.Config, ledger audit.Ledger) (policyStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(ledger), nil
	case "sqlite":
		scfg := store.DefaultSQLiteConfig()
		scfg.Path = cfg.Store.Path
		return store.NewSQLiteStore(scfg, ledger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
