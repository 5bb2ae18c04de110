package enforcement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// ExceptionSource answers whether an unexpired exception covers a rule.
// The exception store implements it.
type ExceptionSource interface {
	Match(scope governance.Scope, policyName, ruleName string, at time.Time) (string, bool)
}

// Enforcer maps evaluation results to operational decisions and records
// every decision in the audit ledger.
type Enforcer struct {
	exceptions ExceptionSource
	ledger     audit.Appender
	logger     *slog.Logger
	metrics    *metrics.GovernanceMetrics
}

// NewEnforcer creates an enforcer. exceptions may be nil when no
// exception workflow is wired; ledger must be non-nil.
func NewEnforcer(exceptions ExceptionSource, ledger audit.Appender, logger *slog.Logger) (*Enforcer, error) {
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		exceptions: exceptions,
		ledger:     ledger,
		logger:     logger.With("component", "enforcement"),
	}, nil
}

// SetMetrics attaches governance metrics to the enforcer.
func (e *Enforcer) SetMetrics(m *metrics.GovernanceMetrics) {
	e.metrics = m
}

// Enforce derives the operational decision from an evaluation result and
// appends the evaluation record to the audit ledger. Allow and warn
// proceed (warn annotated with the reason); block rejects with the full
// reason; require-approval proceeds only when an unexpired exception
// covers every rule demanding approval.
//
// The audit append is part of the decision: if the record cannot be
// written the decision fails loudly rather than proceeding unrecorded.
func (e *Enforcer) Enforce(ctx context.Context, ec *governance.Context, result *governance.EvaluationResult) (*governance.Decision, error) {
	if result == nil {
		return nil, fmt.Errorf("evaluation result cannot be nil")
	}

	decision := &governance.Decision{
		Effect:    result.Effect,
		Reason:    result.Reason,
		DecidedAt: time.Now().UTC(),
	}

	switch result.Effect {
	case governance.EffectAllow, governance.EffectWarn:
		decision.Outcome = governance.DecisionProceed

	case governance.EffectBlock:
		decision.Outcome = governance.DecisionReject

	case governance.EffectRequireApproval:
		id, covered := e.approvalCovered(ec, result)
		if covered {
			decision.Outcome = governance.DecisionProceed
			decision.ExceptionID = id
		} else {
			decision.Outcome = governance.DecisionReject
		}

	default:
		return nil, fmt.Errorf("unknown effect %q", result.Effect)
	}

	if err := e.record(ctx, ec, result, decision); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.ObserveDecision(string(decision.Outcome))
	}
	e.logger.Info("decision recorded",
		"kind", string(ec.Kind),
		"scope", ec.Scope.String(),
		"effect", string(decision.Effect),
		"outcome", string(decision.Outcome),
	)
	return decision, nil
}

// approvalCovered reports whether every require-approval outcome is
// covered by an unexpired exception, returning the last matching
// exception ID.
func (e *Enforcer) approvalCovered(ec *governance.Context, result *governance.EvaluationResult) (string, bool) {
	if e.exceptions == nil {
		return "", false
	}
	var id string
	for _, o := range result.Outcomes {
		if o.Effect != governance.EffectRequireApproval {
			continue
		}
		matched, ok := e.exceptions.Match(ec.Scope, o.Policy.Name, o.RuleName, ec.Timestamp)
		if !ok {
			return "", false
		}
		id = matched
	}
	return id, id != ""
}

// record appends the evaluation record. The append survives caller
// cancellation: a decision that was made must reach the ledger.
func (e *Enforcer) record(ctx context.Context, ec *governance.Context, result *governance.EvaluationResult, decision *governance.Decision) error {
	payload, err := json.Marshal(&audit.EvaluationPayload{
		Context:  ec,
		Result:   result,
		Decision: decision,
	})
	if err != nil {
		return fmt.Errorf("failed to encode evaluation payload: %w", err)
	}

	record := &audit.Record{
		ID:        uuid.NewString(),
		Type:      audit.RecordEvaluation,
		Timestamp: decision.DecidedAt,
		Actor:     contextActor(ec),
		Scope:     ec.Scope,
		Summary:   fmt.Sprintf("%s at %s: %s (%s)", ec.Kind, ec.Scope, decision.Outcome, decision.Effect),
		Payload:   payload,
	}
	if _, err := e.ledger.Append(context.WithoutCancel(ctx), record); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ObserveAuditAppend(string(audit.RecordEvaluation))
	}
	return nil
}

func contextActor(ec *governance.Context) string {
	if v, ok := ec.Attribute("actor"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
