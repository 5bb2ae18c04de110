package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
)

// Store is the policy store contract.
type Store interface {
	// Publish validates and commits a new policy version, retiring the
	// previously active version of the same scope+name. It fails with
	// a ValidationError when the parent does not exist, and with a
	// ConflictError on a version collision or an inheritance cycle.
	Publish(ctx context.Context, p *policy.Policy) (governance.PolicyRef, error)

	// Retire retires the active version of a policy without replacing
	// it. Retired versions remain readable forever.
	Retire(ctx context.Context, scope governance.Scope, name string) error

	// Get returns one exact published version.
	Get(ctx context.Context, ref governance.PolicyRef) (*policy.Policy, error)

	// Active returns the currently active version of a policy, if any.
	Active(ctx context.Context, scope governance.Scope, name string) (*policy.Policy, error)

	// Resolve returns every active policy applicable to the scope,
	// ordered from most general to most specific.
	Resolve(ctx context.Context, scope governance.Scope) ([]*policy.Policy, error)

	// List returns all active policies.
	List(ctx context.Context) ([]*policy.Policy, error)

	// Close releases backend resources.
	Close() error
}

// NotFoundError indicates a requested policy or version does not exist.
type NotFoundError struct {
	Ref string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("policy %s not found", e.Ref)
}

// activeLookup returns the active version of a policy, or nil. Both
// backends supply one from their snapshot so the shared validation below
// sees a consistent view.
type activeLookup func(scope governance.Scope, name string) *policy.Policy

// checkPublish runs the pre-commit validation shared by both backends:
// parent existence, version monotonicity/collision and cycle detection.
// It must run under the scope's publish lock against a snapshot that
// cannot change before the commit.
func checkPublish(p *policy.Policy, latestVersion int, find activeLookup) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.Version <= latestVersion {
		return &governance.ConflictError{
			Policy: p.Key(),
			Message: fmt.Sprintf("version %d is not after latest published version %d",
				p.Version, latestVersion),
		}
	}

	if p.Parent != nil {
		if find(p.Parent.Scope, p.Parent.Name) == nil {
			return &governance.ValidationError{
				Subject: "policy " + p.Key(),
				Errors:  []string{fmt.Sprintf("parent policy %s does not exist", p.Parent.Key())},
			}
		}
		if err := checkCycle(p, find); err != nil {
			return err
		}
	}
	return nil
}

// checkCycle walks the ancestor chain of the policy being published and
// rejects the publish when the chain reaches back to the policy itself
// (or loops anywhere above it).
func checkCycle(p *policy.Policy, find activeLookup) error {
	chain := []string{p.Key()}
	seen := map[string]bool{p.Key(): true}

	parent := p.Parent
	for parent != nil {
		key := parent.Key()
		chain = append(chain, key)
		if seen[key] {
			return &governance.ConflictError{
				Policy:  p.Key(),
				Message: "inheritance cycle detected",
				Chain:   chain,
			}
		}
		seen[key] = true

		ancestor := find(parent.Scope, parent.Name)
		if ancestor == nil {
			// Broken link above the direct parent; not a cycle.
			return nil
		}
		parent = ancestor.Parent
	}
	return nil
}

// publishRecord builds the policy-change audit record for an accepted
// publication. commitSHA carries Git provenance when set.
func publishRecord(p *policy.Policy, actor, commitSHA string) (*audit.Record, error) {
	parent := ""
	if p.Parent != nil {
		parent = p.Parent.Key()
	}
	payload, err := json.Marshal(audit.PolicyChangePayload{
		Ref:       p.Ref(),
		Mode:      string(p.Mode),
		Parent:    parent,
		RuleCount: len(p.Rules),
		CommitSHA: commitSHA,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy-change payload: %w", err)
	}
	return &audit.Record{
		Type:      audit.RecordPolicyChange,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Scope:     p.Scope,
		Summary:   fmt.Sprintf("published policy %s", p.Ref()),
		Payload:   payload,
	}, nil
}

// orderForResolution orders applicable policies from most general scope
// to most specific; within one specificity level, by publish sequence.
func orderForResolution(entries []resolvedEntry) []*policy.Policy {
	// Insertion sort keeps this dependency-free and stable; resolution
	// sets are small.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]*policy.Policy, len(entries))
	for i, e := range entries {
		out[i] = e.policy
	}
	return out
}

type resolvedEntry struct {
	policy *policy.Policy
	seq    uint64
}

func less(a, b resolvedEntry) bool {
	sa, sb := a.policy.Scope.Specificity(), b.policy.Scope.Specificity()
	if sa != sb {
		return sa < sb
	}
	return a.seq < b.seq
}
