package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
)

// MemoryStore is an in-memory policy store. Publication is serialized
// per scope; reads are snapshot reads under a shared lock.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]*storedVersion // key: scope/name, ascending versions
	seq      uint64

	scopeMu    sync.Mutex
	scopeLocks map[string]*sync.Mutex

	ledger audit.Appender
	logger *slog.Logger
}

type storedVersion struct {
	policy *policy.Policy
	seq    uint64
}

// NewMemoryStore creates an empty in-memory store. The ledger receives a
// policy-change record for every accepted publication; it must not be
// nil.
func NewMemoryStore(ledger audit.Appender) *MemoryStore {
	return &MemoryStore{
		versions:   make(map[string][]*storedVersion),
		scopeLocks: make(map[string]*sync.Mutex),
		ledger:     ledger,
		logger:     slog.Default().With("component", "policy.store.memory"),
	}
}

// scopeLock returns the publish lock for a scope, creating it on first
// use.
func (s *MemoryStore) scopeLock(scope governance.Scope) *sync.Mutex {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()
	key := scope.String()
	lock, ok := s.scopeLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[key] = lock
	}
	return lock
}

// Publish validates and commits a new policy version.
func (s *MemoryStore) Publish(ctx context.Context, p *policy.Policy) (governance.PolicyRef, error) {
	return s.publish(ctx, p, "administrator", "")
}

// PublishFrom is Publish with an explicit actor and optional Git commit
// provenance, used by policy sources.
func (s *MemoryStore) PublishFrom(ctx context.Context, p *policy.Policy, actor, commitSHA string) (governance.PolicyRef, error) {
	return s.publish(ctx, p, actor, commitSHA)
}

func (s *MemoryStore) publish(ctx context.Context, p *policy.Policy, actor, commitSHA string) (governance.PolicyRef, error) {
	if p == nil {
		return governance.PolicyRef{}, &governance.ValidationError{Subject: "policy", Errors: []string{"policy is nil"}}
	}

	lock := s.scopeLock(p.Scope)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	latest := 0
	if vs := s.versions[p.Key()]; len(vs) > 0 {
		latest = vs[len(vs)-1].policy.Version
	}
	if err := checkPublish(p, latest, s.activeLocked); err != nil {
		return governance.PolicyRef{}, err
	}

	record, err := publishRecord(p, actor, commitSHA)
	if err != nil {
		return governance.PolicyRef{}, err
	}
	if _, err := s.ledger.Append(ctx, record); err != nil {
		return governance.PolicyRef{}, fmt.Errorf("publish rejected, audit append failed: %w", err)
	}

	// Commit: retire the previously active version, store the new one
	// as active. In-memory commit cannot fail after validation, so the
	// audit record never describes a publication that did not happen.
	stored := *p
	stored.Status = policy.StatusActive
	for _, v := range s.versions[p.Key()] {
		if v.policy.Status == policy.StatusActive {
			v.policy.Status = policy.StatusRetired
		}
	}
	s.seq++
	s.versions[p.Key()] = append(s.versions[p.Key()], &storedVersion{policy: &stored, seq: s.seq})

	s.logger.Info("policy published",
		"policy", stored.Ref().String(),
		"mode", string(stored.Mode),
		"rules", len(stored.Rules),
	)
	return stored.Ref(), nil
}

// activeLocked returns the active version of a policy. Caller holds mu.
func (s *MemoryStore) activeLocked(scope governance.Scope, name string) *policy.Policy {
	key := scope.String() + "/" + name
	for _, v := range s.versions[key] {
		if v.policy.Status == policy.StatusActive {
			return v.policy
		}
	}
	return nil
}

// Retire retires the active version of a policy.
func (s *MemoryStore) Retire(ctx context.Context, scope governance.Scope, name string) error {
	lock := s.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.activeLocked(scope, name)
	if active == nil {
		return &NotFoundError{Ref: scope.String() + "/" + name}
	}
	active.Status = policy.StatusRetired

	s.logger.Info("policy retired", "policy", active.Ref().String())
	return nil
}

// Get returns one exact published version.
func (s *MemoryStore) Get(ctx context.Context, ref governance.PolicyRef) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := ref.Scope.String() + "/" + ref.Name
	for _, v := range s.versions[key] {
		if v.policy.Version == ref.Version {
			out := *v.policy
			return &out, nil
		}
	}
	return nil, &NotFoundError{Ref: ref.String()}
}

// Active returns the currently active version of a policy.
func (s *MemoryStore) Active(ctx context.Context, scope governance.Scope, name string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.activeLocked(scope, name)
	if active == nil {
		return nil, &NotFoundError{Ref: scope.String() + "/" + name}
	}
	out := *active
	return &out, nil
}

// Resolve returns every active policy applicable to the scope, most
// general first.
func (s *MemoryStore) Resolve(ctx context.Context, scope governance.Scope) ([]*policy.Policy, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []resolvedEntry
	for _, vs := range s.versions {
		for _, v := range vs {
			if v.policy.Status != policy.StatusActive {
				continue
			}
			if !v.policy.Scope.Contains(scope) {
				continue
			}
			p := *v.policy
			entries = append(entries, resolvedEntry{policy: &p, seq: v.seq})
		}
	}
	return orderForResolution(entries), nil
}

// List returns all active policies, most general first.
func (s *MemoryStore) List(ctx context.Context) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []resolvedEntry
	for _, vs := range s.versions {
		for _, v := range vs {
			if v.policy.Status == policy.StatusActive {
				p := *v.policy
				entries = append(entries, resolvedEntry{policy: &p, seq: v.seq})
			}
		}
	}
	return orderForResolution(entries), nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
