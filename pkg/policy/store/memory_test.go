package store

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
)

func testPolicy(scope governance.Scope, name string, version int) *policy.Policy {
	return &policy.Policy{
		Scope:   scope,
		Name:    name,
		Version: version,
		Mode:    policy.ModeMerge,
		Rules: []policy.Rule{
			{
				Name:   "min-reviewers",
				Effect: governance.EffectBlock,
				Kind:   policy.KindAttribute,
				Require: &policy.Condition{
					Attribute: "reviewers",
					Operator:  policy.OpGreaterEqual,
					Value:     2,
				},
			},
		},
	}
}

func newTestStore() (*MemoryStore, *audit.MemoryLedger) {
	ledger := audit.NewMemoryLedger()
	return NewMemoryStore(ledger), ledger
}

func TestMemoryStore_PublishAndGet(t *testing.T) {
	s, ledger := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}

	ref, err := s.Publish(ctx, testPolicy(org, "baseline", 1))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if ref.Version != 1 {
		t.Errorf("ref.Version = %d, want 1", ref.Version)
	}

	got, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != policy.StatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}

	tail, err := ledger.Tail(ctx)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if tail == nil || tail.Type != audit.RecordPolicyChange {
		t.Errorf("latest ledger record = %+v, want a policy-change record", tail)
	}
}

func TestMemoryStore_NewVersionRetiresPrevious(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}

	v1, err := s.Publish(ctx, testPolicy(org, "baseline", 1))
	if err != nil {
		t.Fatalf("Publish(v1) error = %v", err)
	}
	if _, err := s.Publish(ctx, testPolicy(org, "baseline", 2)); err != nil {
		t.Fatalf("Publish(v2) error = %v", err)
	}

	active, err := s.Active(ctx, org, "baseline")
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if active.Version != 2 {
		t.Errorf("active version = %d, want 2", active.Version)
	}

	// v1 remains readable, retired.
	old, err := s.Get(ctx, v1)
	if err != nil {
		t.Fatalf("Get(v1) error = %v", err)
	}
	if old.Status != policy.StatusRetired {
		t.Errorf("v1 status = %q, want retired", old.Status)
	}
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}

	if _, err := s.Publish(ctx, testPolicy(org, "baseline", 2)); err != nil {
		t.Fatalf("Publish(v2) error = %v", err)
	}

	tests := []int{1, 2}
	for _, version := range tests {
		_, err := s.Publish(ctx, testPolicy(org, "baseline", version))
		var cerr *governance.ConflictError
		if !errors.As(err, &cerr) {
			t.Errorf("Publish(v%d) error = %v, want *governance.ConflictError", version, err)
		}
	}
}

func TestMemoryStore_ParentMustExist(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	child := testPolicy(governance.Scope{Organization: "acme", Project: "api"}, "pr-policy", 1)
	child.Parent = &policy.ParentRef{
		Scope: governance.Scope{Organization: "acme"},
		Name:  "missing-parent",
	}

	_, err := s.Publish(ctx, child)
	var verr *governance.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Publish() error = %v, want *governance.ValidationError", err)
	}
}

func TestMemoryStore_CycleRejectedAndStateUnchanged(t *testing.T) {
	s, ledger := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}
	proj := governance.Scope{Organization: "acme", Project: "api"}

	// a (org) <- b (project), then try a v2 with parent b: a -> b -> a.
	a := testPolicy(org, "a", 1)
	if _, err := s.Publish(ctx, a); err != nil {
		t.Fatalf("Publish(a) error = %v", err)
	}
	b := testPolicy(proj, "b", 1)
	b.Parent = &policy.ParentRef{Scope: org, Name: "a"}
	if _, err := s.Publish(ctx, b); err != nil {
		t.Fatalf("Publish(b) error = %v", err)
	}

	tailBefore, _ := ledger.Tail(ctx)

	a2 := testPolicy(org, "a", 2)
	a2.Parent = &policy.ParentRef{Scope: proj, Name: "b"}
	_, err := s.Publish(ctx, a2)
	var cerr *governance.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("Publish(a2) error = %v, want *governance.ConflictError", err)
	}
	if len(cerr.Chain) == 0 {
		t.Error("ConflictError.Chain is empty, want the offending chain")
	}

	// Neither the store nor the ledger changed.
	active, err := s.Active(ctx, org, "a")
	if err != nil {
		t.Fatalf("Active(a) error = %v", err)
	}
	if active.Version != 1 {
		t.Errorf("active version of a = %d, want 1 after rejected publish", active.Version)
	}
	tailAfter, _ := ledger.Tail(ctx)
	if tailBefore.Sequence != tailAfter.Sequence {
		t.Errorf("ledger advanced from %d to %d on a rejected publish", tailBefore.Sequence, tailAfter.Sequence)
	}
}

func TestMemoryStore_Retire(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}

	ref, err := s.Publish(ctx, testPolicy(org, "baseline", 1))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := s.Retire(ctx, org, "baseline"); err != nil {
		t.Fatalf("Retire() error = %v", err)
	}

	if _, err := s.Active(ctx, org, "baseline"); err == nil {
		t.Error("Active() after retire expected an error")
	}

	// The retired version stays readable.
	got, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() after retire error = %v", err)
	}
	if got.Status != policy.StatusRetired {
		t.Errorf("Status = %q, want retired", got.Status)
	}

	var nf *NotFoundError
	if err := s.Retire(ctx, org, "baseline"); !errors.As(err, &nf) {
		t.Errorf("second Retire() error = %v, want *NotFoundError", err)
	}
}

func TestMemoryStore_ResolveOrdering(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}
	proj := governance.Scope{Organization: "acme", Project: "api"}
	res := governance.Scope{Organization: "acme", Project: "api", Resource: "repo-1"}
	sibling := governance.Scope{Organization: "acme", Project: "web"}

	// Publish out of specificity order to prove ordering is by scope,
	// not publish order.
	if _, err := s.Publish(ctx, testPolicy(res, "resource-policy", 1)); err != nil {
		t.Fatalf("Publish(resource) error = %v", err)
	}
	if _, err := s.Publish(ctx, testPolicy(org, "org-policy", 1)); err != nil {
		t.Fatalf("Publish(org) error = %v", err)
	}
	if _, err := s.Publish(ctx, testPolicy(proj, "project-policy", 1)); err != nil {
		t.Fatalf("Publish(project) error = %v", err)
	}
	if _, err := s.Publish(ctx, testPolicy(sibling, "sibling-policy", 1)); err != nil {
		t.Fatalf("Publish(sibling) error = %v", err)
	}

	resolved, err := s.Resolve(ctx, res)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("Resolve() returned %d policies, want 3 (sibling excluded)", len(resolved))
	}
	wantOrder := []string{"org-policy", "project-policy", "resource-policy"}
	for i, want := range wantOrder {
		if resolved[i].Name != want {
			t.Errorf("resolved[%d] = %q, want %q", i, resolved[i].Name, want)
		}
	}
}

func TestMemoryStore_ResolveSameSpecificityByPublishOrder(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}

	if _, err := s.Publish(ctx, testPolicy(org, "first", 1)); err != nil {
		t.Fatalf("Publish(first) error = %v", err)
	}
	if _, err := s.Publish(ctx, testPolicy(org, "second", 1)); err != nil {
		t.Fatalf("Publish(second) error = %v", err)
	}

	resolved, err := s.Resolve(ctx, org)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(resolved) != 2 || resolved[0].Name != "first" || resolved[1].Name != "second" {
		names := make([]string, len(resolved))
		for i, p := range resolved {
			names[i] = p.Name
		}
		t.Errorf("resolved order = %v, want [first second]", names)
	}
}

func TestMemoryStore_ResolveExcludesRetired(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	org := governance.Scope{Organization: "acme"}

	if _, err := s.Publish(ctx, testPolicy(org, "baseline", 1)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := s.Retire(ctx, org, "baseline"); err != nil {
		t.Fatalf("Retire() error = %v", err)
	}

	resolved, err := s.Resolve(ctx, org)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("Resolve() returned %d policies, want 0", len(resolved))
	}
}
