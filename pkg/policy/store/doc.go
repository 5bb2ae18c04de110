// Package store implements the versioned policy store.
//
// A policy is identified by scope and name; each publication creates a
// new, immutable version. Publishing validates the policy, rejects
// version collisions and non-monotonic versions, verifies that the
// referenced parent exists, and walks the ancestor chain to reject
// inheritance cycles before anything is committed. The previously active
// version is retired, never deleted. Every accepted publication is logged
// to the audit ledger as a policy-change record.
//
// Resolve returns every active policy whose scope matches or is an
// ancestor of the requested scope, ordered from most general to most
// specific; policies at the same specificity are ordered by publish
// sequence, which is the deterministic tie-break for same-scope
// conflicts. This ordering is the basis for the engine's override
// semantics.
//
// Publication is serialized per scope: two policies in unrelated scopes
// may publish concurrently, two publications in the same scope never
// interleave, keeping cycle detection and version checks correct.
// Resolution is a snapshot read and needs no coordination.
package store
