package governance

import (
	"fmt"
	"strings"
	"time"
)

// OperationKind identifies the kind of platform operation an evaluation
// context describes.
type OperationKind string

const (
	OpProjectConfigChange OperationKind = "project-config-change"
	OpWorkItemTransition  OperationKind = "work-item-transition"
	OpPullRequest         OperationKind = "pull-request"
	OpPipelineRun         OperationKind = "pipeline-run"
	OpArtifactPublish     OperationKind = "artifact-publish"
)

// Valid reports whether the operation kind is one of the known kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case OpProjectConfigChange, OpWorkItemTransition, OpPullRequest,
		OpPipelineRun, OpArtifactPublish:
		return true
	}
	return false
}

// Scope is the (organization, project, resource) coordinate a policy or
// context applies to. Organization is always required; a resource scope
// requires a project scope.
type Scope struct {
	Organization string `json:"organization" yaml:"organization"`
	Project      string `json:"project,omitempty" yaml:"project,omitempty"`
	Resource     string `json:"resource,omitempty" yaml:"resource,omitempty"`
}

// Validate checks structural validity of the scope.
func (s Scope) Validate() error {
	if s.Organization == "" {
		return &ValidationError{Subject: "scope", Errors: []string{"organization is required"}}
	}
	if s.Resource != "" && s.Project == "" {
		return &ValidationError{Subject: "scope", Errors: []string{"resource scope requires a project"}}
	}
	return nil
}

// Specificity returns how specific the scope is: 1 for organization,
// 2 for project, 3 for resource. More specific policies override less
// specific ones during resolution.
func (s Scope) Specificity() int {
	switch {
	case s.Resource != "":
		return 3
	case s.Project != "":
		return 2
	default:
		return 1
	}
}

// Contains reports whether s equals other or is an ancestor of it.
// An organization scope contains all of its projects and resources;
// a project scope contains its resources.
func (s Scope) Contains(other Scope) bool {
	if s.Organization != other.Organization {
		return false
	}
	if s.Project != "" && s.Project != other.Project {
		return false
	}
	if s.Resource != "" && s.Resource != other.Resource {
		return false
	}
	return true
}

// Ancestors returns the scope chain from the organization root down to s,
// inclusive, ordered from most general to most specific.
func (s Scope) Ancestors() []Scope {
	chain := []Scope{{Organization: s.Organization}}
	if s.Project != "" {
		chain = append(chain, Scope{Organization: s.Organization, Project: s.Project})
	}
	if s.Resource != "" {
		chain = append(chain, s)
	}
	return chain
}

// String renders the scope as "org[/project[/resource]]".
func (s Scope) String() string {
	parts := []string{s.Organization}
	if s.Project != "" {
		parts = append(parts, s.Project)
	}
	if s.Resource != "" {
		parts = append(parts, s.Resource)
	}
	return strings.Join(parts, "/")
}

// Effect is the outcome a rule contributes to an evaluation.
type Effect string

const (
	EffectAllow           Effect = "allow"
	EffectWarn            Effect = "warn"
	EffectRequireApproval Effect = "require-approval"
	EffectBlock           Effect = "block"
)

// Valid reports whether the effect is one of the known effects.
func (e Effect) Valid() bool {
	switch e {
	case EffectAllow, EffectWarn, EffectRequireApproval, EffectBlock:
		return true
	}
	return false
}

// Restrictiveness returns the strictness rank of the effect:
// block > require-approval > warn > allow.
func (e Effect) Restrictiveness() int {
	switch e {
	case EffectBlock:
		return 3
	case EffectRequireApproval:
		return 2
	case EffectWarn:
		return 1
	default:
		return 0
	}
}

// Stricter returns the more restrictive of two effects.
func Stricter(a, b Effect) Effect {
	if b.Restrictiveness() > a.Restrictiveness() {
		return b
	}
	return a
}

// FindingStatus is the outcome of a single compliance control check.
type FindingStatus string

const (
	FindingPass          FindingStatus = "pass"
	FindingFail          FindingStatus = "fail"
	FindingNotApplicable FindingStatus = "not-applicable"
)

// Finding is produced by a compliance validator for one control of one
// standard. Findings are inputs to rule evaluation and are persisted only
// as part of the evaluation result that consumed them.
type Finding struct {
	Standard string        `json:"standard"`
	Control  string        `json:"control"`
	Status   FindingStatus `json:"status"`
	Severity string        `json:"severity,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Evidence []string      `json:"evidence,omitempty"`
}

// PolicyRef identifies one published policy version.
type PolicyRef struct {
	Scope   Scope  `json:"scope"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// String renders the reference as "scope/name@vN".
func (r PolicyRef) String() string {
	return fmt.Sprintf("%s/%s@v%d", r.Scope, r.Name, r.Version)
}

// ComplianceSummary aggregates one standard's findings into a weighted
// compliance score: start at 100, subtract each failed control's
// weight, compare against the standard's compliant threshold.
type ComplianceSummary struct {
	Standard  string `json:"standard"`
	Score     int    `json:"score"`
	Compliant bool   `json:"compliant"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
}

// RuleOutcome records the contribution of a single rule to an evaluation.
type RuleOutcome struct {
	Policy      PolicyRef          `json:"policy"`
	RuleName    string             `json:"rule_name"`
	Effect      Effect             `json:"effect"`
	Satisfied   bool               `json:"satisfied"`
	Detail      string             `json:"detail,omitempty"`
	Findings    []Finding          `json:"findings,omitempty"`
	Summary     *ComplianceSummary `json:"summary,omitempty"`
	Degraded    bool               `json:"degraded,omitempty"`
	ExceptionID string             `json:"exception_id,omitempty"`
}

// EvaluationResult is the immutable outcome of running the evaluation
// engine once. Given an identical policy store snapshot, exception set
// and context, the engine produces a bit-identical result.
type EvaluationResult struct {
	// PolicySet lists the resolved policies in resolution order,
	// pinned to the versions that were evaluated.
	PolicySet []PolicyRef `json:"policy_set"`

	// Effect is the merged effect across all contributing rules.
	Effect Effect `json:"effect"`

	// Outcomes lists every rule contribution in evaluation order,
	// after conflict resolution.
	Outcomes []RuleOutcome `json:"outcomes"`

	// Degraded is set when any validator contribution could not be
	// computed; DegradedStandards names the affected standards.
	Degraded          bool     `json:"degraded,omitempty"`
	DegradedStandards []string `json:"degraded_standards,omitempty"`

	// Reason names every rule that contributed a non-allow effect, in
	// evaluation order, sufficient to reconstruct the decision without
	// re-running the engine.
	Reason string `json:"reason"`

	// EvaluatedAt is the context timestamp the evaluation was pinned to.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// DecisionOutcome is the operational verdict of enforcement.
type DecisionOutcome string

const (
	DecisionProceed DecisionOutcome = "proceed"
	DecisionReject  DecisionOutcome = "reject"
)

// Decision is the enforcement verdict derived from an evaluation result.
type Decision struct {
	Outcome DecisionOutcome `json:"outcome"`
	Effect  Effect          `json:"effect"`

	// Reason carries the full evaluation reason string. A blocked
	// operation always returns it, never a generic denial.
	Reason string `json:"reason"`

	// ExceptionID is set when a require-approval effect was satisfied
	// by an unexpired exception.
	ExceptionID string `json:"exception_id,omitempty"`

	DecidedAt time.Time `json:"decided_at"`
}
