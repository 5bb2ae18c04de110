package audit

import (
	"context"
	"encoding/json"
	"time"

	"mercator-hq/themis/pkg/governance"
)

// RecordType distinguishes the kinds of events appended to the ledger.
type RecordType string

const (
	// RecordEvaluation captures one evaluation and its enforcement
	// decision.
	RecordEvaluation RecordType = "evaluation"

	// RecordPolicyChange captures a policy publication or retirement.
	RecordPolicyChange RecordType = "policy-change"

	// RecordException captures an exception grant.
	RecordException RecordType = "exception"
)

// Record is one immutable, hash-chained audit entry. Sequence, PrevHash
// and ContentHash are assigned by the ledger at append time; callers fill
// the remaining fields.
//
// Records are exclusively owned by the ledger: no component may mutate or
// remove a record once appended.
type Record struct {
	Sequence  uint64           `json:"sequence"`
	ID        string           `json:"id"`
	Type      RecordType       `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Actor     string           `json:"actor,omitempty"`
	Scope     governance.Scope `json:"scope"`
	Summary   string           `json:"summary"`
	Payload   json.RawMessage  `json:"payload,omitempty"`

	PrevHash    string `json:"previous_hash"`
	ContentHash string `json:"content_hash"`
}

// EvaluationPayload is the payload of a RecordEvaluation record: the full
// context, result and decision, sufficient to reconstruct the event
// without re-running the engine.
type EvaluationPayload struct {
	Context  *governance.Context          `json:"context"`
	Result   *governance.EvaluationResult `json:"result"`
	Decision *governance.Decision         `json:"decision"`
}

// PolicyChangePayload is the payload of a RecordPolicyChange record.
type PolicyChangePayload struct {
	Ref       governance.PolicyRef `json:"ref"`
	Mode      string               `json:"mode"`
	Parent    string               `json:"parent,omitempty"`
	RuleCount int                  `json:"rule_count"`

	// CommitSHA carries Git provenance when the policy was loaded from
	// a Git policy source.
	CommitSHA string `json:"commit_sha,omitempty"`
}

// ExceptionPayload is the payload of a RecordException record.
type ExceptionPayload struct {
	ExceptionID   string           `json:"exception_id"`
	Scope         governance.Scope `json:"scope"`
	PolicyName    string           `json:"policy_name"`
	RuleName      string           `json:"rule_name"`
	Requester     string           `json:"requester"`
	Approver      string           `json:"approver"`
	Justification string           `json:"justification"`
	ExpiresAt     time.Time        `json:"expires_at"`
}

// VerificationReport is the outcome of verifying a record range.
type VerificationReport struct {
	From     uint64 `json:"from"`
	To       uint64 `json:"to"`
	Checked  int    `json:"checked"`
	Verified bool   `json:"verified"`

	// FailedSequence identifies the first offending record when
	// Verified is false.
	FailedSequence uint64 `json:"failed_sequence,omitempty"`
	Failure        string `json:"failure,omitempty"`
}

// Appender is the write side of the ledger, used by components that only
// append (the policy store, the exception workflow).
type Appender interface {
	// Append assigns the record's sequence number, previous hash and
	// content hash, and atomically advances the chain tail. The
	// returned record is the committed copy.
	Append(ctx context.Context, record *Record) (*Record, error)
}

// Ledger is the full audit ledger contract.
type Ledger interface {
	Appender

	// Record returns the record at the given sequence number.
	Record(ctx context.Context, seq uint64) (*Record, error)

	// Range returns records with from <= sequence <= to, in order.
	// to == 0 means "through the current tail".
	Range(ctx context.Context, from, to uint64) ([]*Record, error)

	// Tail returns the most recently appended record, or nil if the
	// ledger is empty.
	Tail(ctx context.Context) (*Record, error)

	// Verify recomputes hashes across the range and fails with an
	// IntegrityError at the first mismatch. The report is returned in
	// both cases.
	Verify(ctx context.Context, from, to uint64) (*VerificationReport, error)

	// Close releases backend resources.
	Close() error
}
