package audit

import (
	"fmt"

	"mercator-hq/themis/pkg/governance"
)

// verifyChain recomputes hashes for an ordered record range. prevHash is
// the content hash of the record immediately preceding the range ("" when
// the range starts at the first record). It returns a report and, on the
// first mismatch, an IntegrityError identifying the offending record.
//
// Both backends delegate here so memory and SQLite ledgers verify
// identically.
func verifyChain(records []*Record, prevHash string, from, to uint64) (*VerificationReport, error) {
	report := &VerificationReport{From: from, To: to, Verified: true}

	for _, r := range records {
		report.Checked++

		if r.PrevHash != prevHash {
			ierr := &governance.IntegrityError{
				Sequence: r.Sequence,
				Field:    "previous_hash",
				Expected: prevHash,
				Actual:   r.PrevHash,
			}
			report.Verified = false
			report.FailedSequence = r.Sequence
			report.Failure = ierr.Error()
			return report, ierr
		}

		computed := HashRecord(r)
		if computed != r.ContentHash {
			ierr := &governance.IntegrityError{
				Sequence: r.Sequence,
				Field:    "content_hash",
				Expected: computed,
				Actual:   r.ContentHash,
			}
			report.Verified = false
			report.FailedSequence = r.Sequence
			report.Failure = ierr.Error()
			return report, ierr
		}

		prevHash = r.ContentHash
	}

	return report, nil
}

// prepareAppend validates a record before it is committed.
func prepareAppend(r *Record) error {
	if r == nil {
		return &governance.ValidationError{Subject: "audit record", Errors: []string{"record is nil"}}
	}
	var errs []string
	if r.Type == "" {
		errs = append(errs, "record type is required")
	}
	if r.Timestamp.IsZero() {
		errs = append(errs, "timestamp is required")
	}
	if len(errs) > 0 {
		return &governance.ValidationError{Subject: "audit record", Errors: errs}
	}
	return nil
}

// rangeBounds normalizes a verification range against the current tail
// sequence. A zero "to" means "through the tail"; a zero "from" means
// "from the first record".
func rangeBounds(from, to, tail uint64) (uint64, uint64, error) {
	if from == 0 {
		from = 1
	}
	if to == 0 {
		to = tail
	}
	if tail == 0 {
		return 0, 0, nil
	}
	if from > to {
		return 0, 0, fmt.Errorf("invalid range: from %d > to %d", from, to)
	}
	if to > tail {
		return 0, 0, fmt.Errorf("invalid range: to %d exceeds tail %d", to, tail)
	}
	return from, to, nil
}
