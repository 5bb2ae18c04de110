package facts

import (
	"context"
	"sync"

	"mercator-hq/themis/pkg/governance"
)

// Fetcher assembles the attribute snapshot for an operation before it is
// evaluated. Implementations query the systems of record (VCS, CI,
// ticketing) and return a flat attribute map.
type Fetcher interface {
	FetchFacts(ctx context.Context, kind governance.OperationKind, scope governance.Scope, resourceID string) (map[string]any, error)
}

// StaticFetcher serves attributes from a fixed table keyed by resource
// ID. It backs tests and offline evaluation.
type StaticFetcher struct {
	mu    sync.RWMutex
	facts map[string]map[string]any
}

// NewStaticFetcher creates an empty static fetcher.
func NewStaticFetcher() *StaticFetcher {
	return &StaticFetcher{facts: make(map[string]map[string]any)}
}

// Set replaces the attribute map for a resource ID.
func (f *StaticFetcher) Set(resourceID string, attrs map[string]any) {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	f.mu.Lock()
	f.facts[resourceID] = copied
	f.mu.Unlock()
}

// FetchFacts returns the attributes registered for the resource ID, or
// an empty map when none are known.
func (f *StaticFetcher) FetchFacts(_ context.Context, _ governance.OperationKind, _ governance.Scope, resourceID string) (map[string]any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]any)
	for k, v := range f.facts[resourceID] {
		out[k] = v
	}
	return out, nil
}
