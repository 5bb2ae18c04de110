package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// PolicyResolver supplies the applicable policy set for a scope. The
// policy store implements it.
type PolicyResolver interface {
	Resolve(ctx context.Context, scope governance.Scope) ([]*policy.Policy, error)
}

// ExceptionSource answers whether an unexpired exception covers a
// specific rule of a specific policy at a given instant. The enforcement
// exception store implements it.
type ExceptionSource interface {
	Match(scope governance.Scope, policyName, ruleName string, at time.Time) (string, bool)
}

// Engine evaluates policies against evaluation contexts. It holds no
// per-evaluation state; many evaluations may run concurrently.
type Engine struct {
	resolver   PolicyResolver
	validators *compliance.Registry
	exceptions ExceptionSource
	config     *Config
	logger     *slog.Logger
	metrics    *metrics.GovernanceMetrics
}

// New creates an evaluation engine. exceptions may be nil when no
// exception workflow is wired; metrics may be nil.
func New(config *Config, resolver PolicyResolver, validators *compliance.Registry, exceptions ExceptionSource, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if resolver == nil {
		return nil, fmt.Errorf("policy resolver cannot be nil")
	}
	if validators == nil {
		validators = compliance.NewDefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver:   resolver,
		validators: validators,
		exceptions: exceptions,
		config:     config,
		logger:     logger.With("component", "policy.engine"),
	}, nil
}

// SetMetrics attaches governance metrics to the engine.
func (e *Engine) SetMetrics(m *metrics.GovernanceMetrics) {
	e.metrics = m
}

// Evaluate runs one evaluation. A malformed context fails fast with a
// ValidationError before any validator is invoked.
func (e *Engine) Evaluate(ctx context.Context, ec *governance.Context) (*governance.EvaluationResult, error) {
	start := time.Now()

	if err := ec.Validate(); err != nil {
		return nil, err
	}

	policies, err := e.resolver.Resolve(ctx, ec.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policies for %s: %w", ec.Scope, err)
	}
	if len(policies) > e.config.MaxPolicies {
		return nil, &governance.ValidationError{
			Subject: "policy set",
			Errors:  []string{fmt.Sprintf("resolved %d policies, max %d", len(policies), e.config.MaxPolicies)},
		}
	}

	cache := newFindingCache()
	var degraded []string

	var effective []governance.RuleOutcome
	refs := make([]governance.PolicyRef, 0, len(policies))
	for _, p := range policies {
		refs = append(refs, p.Ref())

		outcomes := make([]governance.RuleOutcome, 0, len(p.Rules))
		for _, rule := range p.Rules {
			outcome := e.evaluateRule(ctx, p, rule, ec, cache, &degraded)
			outcomes = append(outcomes, outcome)
		}
		effective = mergeOutcomes(effective, outcomes, p.Mode)
	}

	// Active, unexpired exceptions downgrade a blocked rule's
	// contribution to allow, with an annotation. Warn-level outcomes
	// are never suppressed.
	if e.exceptions != nil {
		for i := range effective {
			if effective[i].Effect != governance.EffectBlock {
				continue
			}
			id, ok := e.exceptions.Match(ec.Scope, effective[i].Policy.Name, effective[i].RuleName, ec.Timestamp)
			if !ok {
				continue
			}
			effective[i].Effect = governance.EffectAllow
			effective[i].ExceptionID = id
		}
	}

	merged := governance.EffectAllow
	for _, o := range effective {
		merged = governance.Stricter(merged, o.Effect)
	}

	result := &governance.EvaluationResult{
		PolicySet:         refs,
		Effect:            merged,
		Outcomes:          effective,
		Degraded:          len(degraded) > 0,
		DegradedStandards: degraded,
		Reason:            buildReason(ec, refs, effective),
		EvaluatedAt:       ec.Timestamp,
	}

	if e.metrics != nil {
		e.metrics.ObserveEvaluation(string(ec.Kind), string(merged), time.Since(start))
	}
	e.logger.Debug("evaluation complete",
		"kind", string(ec.Kind),
		"scope", ec.Scope.String(),
		"effect", string(merged),
		"policies", len(policies),
		"degraded", result.Degraded,
	)
	return result, nil
}

// evaluateRule computes one rule's outcome. Rules are pure: they read the
// context and validator findings, and mutate nothing.
func (e *Engine) evaluateRule(ctx context.Context, p *policy.Policy, rule policy.Rule, ec *governance.Context, cache *findingCache, degraded *[]string) governance.RuleOutcome {
	outcome := governance.RuleOutcome{
		Policy:   p.Ref(),
		RuleName: rule.Name,
	}

	switch rule.Kind {
	case policy.KindAttribute:
		holds, obs, err := rule.Require.Holds(ec.Attributes)
		if err != nil {
			// A rule that cannot be evaluated fails closed.
			outcome.Satisfied = false
			outcome.Effect = rule.Effect
			outcome.Detail = fmt.Sprintf("condition error: %v", err)
			return outcome
		}
		outcome.Satisfied = holds
		if holds {
			outcome.Effect = governance.EffectAllow
			outcome.Detail = fmt.Sprintf("requires %s; %s", rule.Require, obs)
		} else {
			outcome.Effect = rule.Effect
			outcome.Detail = fmt.Sprintf("requires %s; %s", rule.Require, obs)
		}
		return outcome

	case policy.KindComposite:
		return e.evaluateComposite(rule, ec, outcome)

	case policy.KindValidator:
		return e.evaluateValidator(ctx, rule, ec, cache, degraded, outcome)

	default:
		outcome.Satisfied = false
		outcome.Effect = rule.Effect
		outcome.Detail = fmt.Sprintf("unknown rule kind %q", rule.Kind)
		return outcome
	}
}

func (e *Engine) evaluateComposite(rule policy.Rule, ec *governance.Context, outcome governance.RuleOutcome) governance.RuleOutcome {
	holdCount := 0
	var details []string
	for _, cond := range rule.Conditions {
		holds, obs, err := cond.Holds(ec.Attributes)
		if err != nil {
			outcome.Satisfied = false
			outcome.Effect = rule.Effect
			outcome.Detail = fmt.Sprintf("condition error: %v", err)
			return outcome
		}
		if holds {
			holdCount++
		} else {
			details = append(details, fmt.Sprintf("%s (%s)", cond, obs))
		}
	}

	satisfied := holdCount == len(rule.Conditions)
	if rule.Op == policy.CompositeAny {
		satisfied = holdCount > 0
	}

	outcome.Satisfied = satisfied
	if satisfied {
		outcome.Effect = governance.EffectAllow
		outcome.Detail = fmt.Sprintf("%s of %d conditions satisfied", rule.Op, len(rule.Conditions))
	} else {
		outcome.Effect = rule.Effect
		outcome.Detail = fmt.Sprintf("requires %s of: %s", rule.Op, strings.Join(details, ", "))
	}
	return outcome
}

func (e *Engine) evaluateValidator(ctx context.Context, rule policy.Rule, ec *governance.Context, cache *findingCache, degraded *[]string, outcome governance.RuleOutcome) governance.RuleOutcome {
	v, err := e.validators.Get(rule.Standard)
	if err != nil {
		return e.degradeOutcome(rule, err, degraded, outcome)
	}

	// An irrelevant validator contributes no findings rather than
	// failing.
	if !v.AppliesTo(ec.Kind) {
		outcome.Satisfied = true
		outcome.Effect = governance.EffectAllow
		outcome.Detail = fmt.Sprintf("standard %s not applicable to %s", rule.Standard, ec.Kind)
		return outcome
	}

	findings, err := cache.get(ctx, v, ec, e.config.ValidatorTimeout, e.metrics)
	if err != nil {
		return e.degradeOutcome(rule, err, degraded, outcome)
	}

	relevant := filterFindings(findings, rule.Controls)
	var failed []string
	for _, f := range relevant {
		if f.Status == governance.FindingFail {
			failed = append(failed, f.Control)
		}
	}

	outcome.Findings = relevant
	if summarizer, ok := v.(compliance.Summarizer); ok {
		summary := summarizer.Summarize(relevant)
		outcome.Summary = &summary
	}
	outcome.Satisfied = len(failed) == 0
	if outcome.Satisfied {
		outcome.Effect = governance.EffectAllow
		outcome.Detail = fmt.Sprintf("standard %s: %d controls passed", rule.Standard, len(relevant))
	} else {
		outcome.Effect = rule.Effect
		outcome.Detail = fmt.Sprintf("standard %s: %d of %d controls failed: %s",
			rule.Standard, len(failed), len(relevant), strings.Join(failed, ", "))
	}
	return outcome
}

// degradeOutcome absorbs a validator failure: the standard's contribution
// becomes not-applicable, the degradation is annotated on the result, and
// the evaluation continues. Never silently dropped, never fatal.
func (e *Engine) degradeOutcome(rule policy.Rule, cause error, degraded *[]string, outcome governance.RuleOutcome) governance.RuleOutcome {
	seen := false
	for _, s := range *degraded {
		if s == rule.Standard {
			seen = true
			break
		}
	}
	if !seen {
		*degraded = append(*degraded, rule.Standard)
	}

	if e.metrics != nil {
		e.metrics.ObserveValidatorUnavailable(rule.Standard)
	}
	e.logger.Warn("validator unavailable, degrading evaluation",
		"standard", rule.Standard,
		"rule", rule.Name,
		"error", cause,
	)

	outcome.Satisfied = false
	outcome.Degraded = true
	outcome.Effect = governance.EffectAllow
	outcome.Detail = fmt.Sprintf("standard %s unavailable: %v", rule.Standard, cause)
	return outcome
}

func filterFindings(findings []governance.Finding, controls []string) []governance.Finding {
	if len(controls) == 0 {
		return findings
	}
	keep := make(map[string]bool, len(controls))
	for _, c := range controls {
		keep[c] = true
	}
	var out []governance.Finding
	for _, f := range findings {
		if keep[f.Control] {
			out = append(out, f)
		}
	}
	return out
}

// findingCache caches validator findings per standard for the duration of
// one evaluation, so multiple rules referencing the same standard do not
// duplicate work. It is call-local and never shared across concurrent
// evaluations.
type findingCache struct {
	entries map[string]findingEntry
}

type findingEntry struct {
	findings []governance.Finding
	err      error
}

func newFindingCache() *findingCache {
	return &findingCache{entries: make(map[string]findingEntry)}
}

func (c *findingCache) get(ctx context.Context, v compliance.Validator, ec *governance.Context, timeout time.Duration, m *metrics.GovernanceMetrics) ([]governance.Finding, error) {
	if entry, ok := c.entries[v.Standard()]; ok {
		return entry.findings, entry.err
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	findings, err := v.Validate(vctx, ec)
	if m != nil {
		m.ObserveValidator(v.Standard(), time.Since(start))
	}

	// A timeout is validator unavailability, not an evaluation
	// failure.
	if err != nil && !isUnavailable(err) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = &governance.UnavailableError{Standard: v.Standard(), Cause: err}
		}
	}

	c.entries[v.Standard()] = findingEntry{findings: findings, err: err}
	return findings, err
}

func isUnavailable(err error) bool {
	var uerr *governance.UnavailableError
	return errors.As(err, &uerr)
}
