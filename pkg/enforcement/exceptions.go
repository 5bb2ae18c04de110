package enforcement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// ApproverRole is the role required to grant exceptions.
const ApproverRole = "exception-approver"

// Exception is a time-bounded waiver of a specific rule in a specific
// policy. Exceptions never delete: an expired exception stays on record
// and simply stops matching.
type Exception struct {
	ID            string           `json:"id"`
	Scope         governance.Scope `json:"scope"`
	PolicyName    string           `json:"policy_name"`
	RuleName      string           `json:"rule_name"`
	Requester     string           `json:"requester"`
	Approver      string           `json:"approver"`
	Justification string           `json:"justification"`
	GrantedAt     time.Time        `json:"granted_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
}

// ActiveAt reports whether the exception covers the given instant.
// Expiry is evaluated at read time against the instant, never by a
// background sweep, so results stay deterministic for a pinned
// timestamp. Only expiry bounds coverage: a grant waives the rule for
// any context still being evaluated, including one whose observation
// timestamp predates the grant.
func (e *Exception) ActiveAt(t time.Time) bool {
	return t.Before(e.ExpiresAt)
}

// GrantRequest carries the inputs of an exception grant.
type GrantRequest struct {
	Scope         governance.Scope
	PolicyName    string
	RuleName      string
	Requester     string
	Approver      string
	Justification string
	ExpiresAt     time.Time
}

// Validate checks the request for structural problems.
func (r *GrantRequest) Validate(now time.Time) error {
	var errs []string
	if err := r.Scope.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if r.PolicyName == "" {
		errs = append(errs, "policy name cannot be empty")
	}
	if r.RuleName == "" {
		errs = append(errs, "rule name cannot be empty")
	}
	if r.Requester == "" {
		errs = append(errs, "requester cannot be empty")
	}
	if r.Approver == "" {
		errs = append(errs, "approver cannot be empty")
	}
	if r.Justification == "" {
		errs = append(errs, "justification cannot be empty")
	}
	if !r.ExpiresAt.After(now) {
		errs = append(errs, "expiry must be in the future")
	}
	if len(errs) > 0 {
		return &governance.ValidationError{Subject: "exception request", Errors: errs}
	}
	return nil
}

// Authorizer answers whether an actor holds a role for a scope.
type Authorizer interface {
	HasRole(actor, role string, scope governance.Scope) bool
}

// StaticAuthorizer authorizes from a fixed actor-to-roles table. Roles
// granted here apply to every scope.
type StaticAuthorizer struct {
	roles map[string][]string
}

// NewStaticAuthorizer builds an authorizer from an actor-to-roles map.
func NewStaticAuthorizer(roles map[string][]string) *StaticAuthorizer {
	copied := make(map[string][]string, len(roles))
	for actor, rs := range roles {
		copied[actor] = append([]string(nil), rs...)
	}
	return &StaticAuthorizer{roles: copied}
}

// HasRole reports whether the actor holds the role.
func (a *StaticAuthorizer) HasRole(actor, role string, _ governance.Scope) bool {
	for _, r := range a.roles[actor] {
		if r == role {
			return true
		}
	}
	return false
}

// ExceptionStore holds granted exceptions and answers match queries from
// the evaluation engine and the enforcer.
type ExceptionStore struct {
	mu         sync.RWMutex
	exceptions []*Exception

	authorizer Authorizer
	ledger     audit.Appender
	logger     *slog.Logger
	metrics    *metrics.GovernanceMetrics
}

// NewExceptionStore creates an exception store. authorizer and ledger
// must be non-nil.
func NewExceptionStore(authorizer Authorizer, ledger audit.Appender, logger *slog.Logger) (*ExceptionStore, error) {
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExceptionStore{
		authorizer: authorizer,
		ledger:     ledger,
		logger:     logger.With("component", "enforcement.exceptions"),
	}, nil
}

// SetMetrics attaches governance metrics to the store.
func (s *ExceptionStore) SetMetrics(m *metrics.GovernanceMetrics) {
	s.metrics = m
}

// Grant records a new exception. The approver must hold the
// exception-approver role for the requested scope; an unauthorized grant
// fails with an AuthorizationError and leaves no trace in the store or
// the ledger.
func (s *ExceptionStore) Grant(ctx context.Context, req *GrantRequest) (*Exception, error) {
	now := time.Now().UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}
	if !s.authorizer.HasRole(req.Approver, ApproverRole, req.Scope) {
		return nil, &governance.AuthorizationError{
			Actor: req.Approver,
			Role:  ApproverRole,
			Scope: req.Scope,
		}
	}

	exc := &Exception{
		ID:            uuid.NewString(),
		Scope:         req.Scope,
		PolicyName:    req.PolicyName,
		RuleName:      req.RuleName,
		Requester:     req.Requester,
		Approver:      req.Approver,
		Justification: req.Justification,
		GrantedAt:     now,
		ExpiresAt:     req.ExpiresAt.UTC(),
	}

	payload, err := json.Marshal(&audit.ExceptionPayload{
		ExceptionID:   exc.ID,
		Scope:         exc.Scope,
		PolicyName:    exc.PolicyName,
		RuleName:      exc.RuleName,
		Requester:     exc.Requester,
		Approver:      exc.Approver,
		Justification: exc.Justification,
		ExpiresAt:     exc.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode exception payload: %w", err)
	}

	record := &audit.Record{
		ID:        uuid.NewString(),
		Type:      audit.RecordException,
		Timestamp: now,
		Actor:     exc.Approver,
		Scope:     exc.Scope,
		Summary:   fmt.Sprintf("exception granted for rule %q of policy %q until %s", exc.RuleName, exc.PolicyName, exc.ExpiresAt.Format(time.RFC3339)),
		Payload:   payload,
	}
	if _, err := s.ledger.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record exception grant: %w", err)
	}

	s.mu.Lock()
	s.exceptions = append(s.exceptions, exc)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveExceptionGranted()
		s.metrics.ObserveAuditAppend(string(audit.RecordException))
	}
	s.logger.Info("exception granted",
		"exception_id", exc.ID,
		"scope", exc.Scope.String(),
		"policy", exc.PolicyName,
		"rule", exc.RuleName,
		"approver", exc.Approver,
		"expires_at", exc.ExpiresAt,
	)
	return exc, nil
}

// Match reports whether an exception covers the given rule at the given
// instant, returning the exception ID when it does. An exception granted
// at an ancestor scope covers descendant scopes. The earliest matching
// grant wins, which keeps results deterministic.
func (s *ExceptionStore) Match(scope governance.Scope, policyName, ruleName string, at time.Time) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, exc := range s.exceptions {
		if exc.PolicyName != policyName || exc.RuleName != ruleName {
			continue
		}
		if !exc.Scope.Contains(scope) {
			continue
		}
		if !exc.ActiveAt(at) {
			continue
		}
		return exc.ID, true
	}
	return "", false
}

// List returns all exceptions for a scope, expired included, ordered by
// grant time. An all-zero scope returns everything.
func (s *ExceptionStore) List(scope governance.Scope) []*Exception {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Exception
	for _, exc := range s.exceptions {
		if scope != (governance.Scope{}) && !exc.Scope.Contains(scope) && !scope.Contains(exc.Scope) {
			continue
		}
		copied := *exc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out
}
