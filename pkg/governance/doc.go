// Package governance defines the core value types shared by the policy
// store, the compliance validators, the evaluation engine, the enforcement
// workflow and the audit ledger: scopes, operation kinds, evaluation
// contexts, effects, findings, evaluation results and decisions.
//
// Everything in this package is an immutable value object or a typed
// error. Behavior lives in the consuming packages:
//
//   - pkg/policy          - policy and rule model
//   - pkg/policy/store    - versioned policy storage and resolution
//   - pkg/policy/engine   - evaluation
//   - pkg/compliance      - standard-specific validators
//   - pkg/enforcement     - decisions and exceptions
//   - pkg/audit           - hash-chained audit records
//
// The error taxonomy mirrors the externally visible failure modes:
// ValidationError (malformed input, rejected before side effects),
// AuthorizationError (actor lacks rights for a privileged write),
// UnavailableError (a compliance signal could not be computed; degrades
// the evaluation, never fails it), ConflictError (cyclic inheritance or
// version collision on publish) and IntegrityError (audit chain
// verification failure).
package governance
