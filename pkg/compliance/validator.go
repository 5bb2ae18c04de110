package compliance

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/themis/pkg/governance"
)

// Validator checks an evaluation context against one compliance standard.
type Validator interface {
	// Standard returns the standard name the validator covers.
	Standard() string

	// AppliesTo reports whether the validator is relevant to the given
	// operation kind. The engine never invokes an irrelevant
	// validator; it contributes no findings rather than failing.
	AppliesTo(kind governance.OperationKind) bool

	// Validate produces the finding set for the context. The context
	// carries the caller-supplied timeout for any external signal
	// lookup; a timeout is reported as an UnavailableError.
	Validate(ctx context.Context, ec *governance.Context) ([]governance.Finding, error)
}

// Summarizer is implemented by validators that can score a finding set.
// The engine attaches the summary to validator rule outcomes; validators
// without scoring semantics simply skip the interface.
type Summarizer interface {
	Summarize(findings []governance.Finding) governance.ComplianceSummary
}

// Registry maps standard names to validator implementations.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// NewDefaultRegistry creates a registry with the four shipped standards
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewCMMIValidator())
	r.Register(NewSOXValidator())
	r.Register(NewGDPRValidator())
	r.Register(NewISO27001Validator())
	return r
}

// Register adds or replaces a validator for its standard.
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[v.Standard()] = v
}

// Get returns the validator for a standard.
func (r *Registry) Get(standard string) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[standard]
	if !ok {
		return nil, &governance.UnavailableError{
			Standard: standard,
			Cause:    fmt.Errorf("no validator registered"),
		}
	}
	return v, nil
}

// Standards returns the registered standard names, sorted.
func (r *Registry) Standards() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
