package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/policy/source"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the governance runtime",
	Long: `Start the governance runtime: load policy documents into the store,
optionally keep them live via file watching or Git syncing, serve
Prometheus metrics, and verify the audit chain on a schedule.`,
	RunE: runRuntime,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRuntime(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	m := metrics.New(&a.cfg.Metrics, prometheus.NewRegistry())
	a.engine.SetMetrics(m)
	a.enforcer.SetMetrics(m)
	a.exceptions.SetMetrics(m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadPolicies(ctx, a); err != nil {
		return err
	}

	if a.cfg.Policy.Watch && a.cfg.Policy.Path != "" {
		watcher, err := source.NewWatcher(a.cfg.Policy.Path, a.cfg.Policy.DebounceInterval, a.logger)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Watch(ctx, func() error {
				return loadPolicies(ctx, a)
			}); err != nil {
				a.logger.Error("policy watcher exited", "error", err)
			}
		}()
		defer func() { _ = watcher.Stop() }()
	}

	if a.cfg.Audit.VerifySchedule != "" {
		scheduler := audit.NewScheduler(a.ledger, a.cfg.Audit.VerifySchedule, func(report *audit.VerificationReport, err error) {
			m.ObserveVerifyFailure()
			a.logger.Error("scheduled audit verification failed", "report", report, "error", err)
		})
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start verification scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	var metricsServer *http.Server
	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(a.cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:              a.cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("metrics server listening", "addr", a.cfg.Metrics.Listen, "path", a.cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	a.logger.Info("governance runtime started")
	<-ctx.Done()
	a.logger.Info("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

// loadPolicies syncs policies from the configured source into the store.
func loadPolicies(ctx context.Context, a *app) error {
	actor := "themis-runtime"

	if a.cfg.Policy.Git != nil {
		git, err := source.NewGitSource(a.cfg.Policy.Git, a.logger)
		if err != nil {
			return err
		}
		if err := git.Open(ctx); err != nil {
			return err
		}
		n, err := git.Sync(ctx, a.store, actor)
		if err != nil {
			return err
		}
		a.logger.Info("policies synced from git", "published", n)
		return nil
	}

	if a.cfg.Policy.Path == "" {
		a.logger.Warn("no policy source configured")
		return nil
	}

	fileSource, err := source.NewFileSource(a.cfg.Policy.Path, a.logger)
	if err != nil {
		return err
	}
	n, err := fileSource.Sync(ctx, a.store, actor, "")
	if err != nil {
		return err
	}
	a.logger.Info("policies synced", "dir", a.cfg.Policy.Path, "published", n)
	return nil
}
