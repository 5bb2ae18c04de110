package governance

import (
	"fmt"
	"strings"
)

// ValidationError indicates malformed input, rejected before any side
// effect took place. It is never retried automatically.
type ValidationError struct {
	Subject string
	Errors  []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: validation error: %s", e.Subject, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d validation errors: %s", e.Subject, len(e.Errors), strings.Join(e.Errors, "; "))
}

// AuthorizationError indicates the acting principal lacks the rights for
// a privileged write. It is surfaced immediately and never retried.
type AuthorizationError struct {
	Actor string
	Role  string
	Scope Scope
}

// Error returns the error message.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q lacks role %q for scope %s", e.Actor, e.Role, e.Scope)
}

// UnavailableError indicates a compliance validator could not compute its
// findings (missing external signal, timeout). It degrades the affected
// standard's contribution to not-applicable; it never fails the
// evaluation, and the degradation is always annotated on the result.
type UnavailableError struct {
	Standard string
	Cause    error
}

// Error returns the error message.
func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validator %q unavailable: %v", e.Standard, e.Cause)
	}
	return fmt.Sprintf("validator %q unavailable", e.Standard)
}

// Unwrap returns the underlying cause.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// ConflictError indicates a publish was rejected: either the version
// collides with an already published version, or the inheritance chain
// would become cyclic. Chain carries the offending ancestor chain so the
// administrator can correct the input.
type ConflictError struct {
	Policy  string
	Message string
	Chain   []string
}

// Error returns the error message.
func (e *ConflictError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("policy %s: %s (chain: %s)", e.Policy, e.Message, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("policy %s: %s", e.Policy, e.Message)
}

// IntegrityError indicates audit chain verification failed at a specific
// record. It is never recovered automatically: it is a signal for manual
// forensic investigation, and any automated export encountering it must
// halt.
type IntegrityError struct {
	Sequence uint64
	Field    string // "content_hash" or "previous_hash"
	Expected string
	Actual   string
}

// Error returns the error message.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit record %d: %s mismatch: expected %s, got %s",
		e.Sequence, e.Field, e.Expected, e.Actual)
}
