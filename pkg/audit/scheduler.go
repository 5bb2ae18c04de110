package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// FailureHandler receives the integrity error when a scheduled
// verification fails. Exports and reporting must halt when this fires;
// recovery is a manual forensic process.
type FailureHandler func(report *VerificationReport, err error)

// Scheduler verifies the full audit chain on a cron schedule.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
type Scheduler struct {
	ledger    Ledger
	schedule  string
	onFailure FailureHandler
	cron      *cron.Cron
	mu        sync.Mutex
	running   bool
	logger    *slog.Logger
}

// NewScheduler creates a verification scheduler. onFailure may be nil, in
// which case failures are only logged.
func NewScheduler(ledger Ledger, schedule string, onFailure FailureHandler) *Scheduler {
	return &Scheduler{
		ledger:    ledger,
		schedule:  schedule,
		onFailure: onFailure,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "audit.scheduler"),
	}
}

// Start begins scheduled verification. If the schedule is empty the
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.schedule == "" {
		s.logger.Info("verification schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runVerification(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule verification: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("audit verification scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduled verification. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("audit verification scheduler stopped")
}

// RunNow verifies the full chain immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (*VerificationReport, error) {
	return s.ledger.Verify(ctx, 0, 0)
}

func (s *Scheduler) runVerification(ctx context.Context) {
	report, err := s.ledger.Verify(ctx, 0, 0)
	if err != nil {
		s.logger.Error("scheduled audit verification failed",
			"error", err,
			"failed_sequence", failedSequence(report),
		)
		if s.onFailure != nil {
			s.onFailure(report, err)
		}
		return
	}
	s.logger.Info("scheduled audit verification passed",
		"checked", report.Checked,
	)
}

func failedSequence(report *VerificationReport) uint64 {
	if report == nil {
		return 0
	}
	return report.FailedSequence
}
