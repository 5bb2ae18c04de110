package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/themis/pkg/governance"
)

func newTestSQLiteLedger(t *testing.T, path string) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(&SQLiteConfig{
		Path:          path,
		BusyTimeout:   5 * time.Second,
		AppendRetries: 5,
		WALMode:       true,
	})
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error = %v", err)
	}
	return l
}

func TestSQLiteLedger_AppendChain(t *testing.T) {
	l := newTestSQLiteLedger(t, filepath.Join(t.TempDir(), "audit.db"))
	defer l.Close()
	ctx := context.Background()

	first, err := l.Append(ctx, testRecord("first"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.Sequence != 1 || first.PrevHash != "" {
		t.Errorf("first = seq %d prev %q, want 1 with empty prev", first.Sequence, first.PrevHash)
	}
	if first.ID == "" || first.ContentHash == "" {
		t.Error("first record missing ID or content hash")
	}

	second, err := l.Append(ctx, testRecord("second"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if second.Sequence != 2 {
		t.Errorf("second.Sequence = %d, want 2", second.Sequence)
	}
	if second.PrevHash != first.ContentHash {
		t.Errorf("second.PrevHash = %q, want %q", second.PrevHash, first.ContentHash)
	}
}

func TestSQLiteLedger_TimestampRoundTrip(t *testing.T) {
	l := newTestSQLiteLedger(t, filepath.Join(t.TempDir(), "audit.db"))
	defer l.Close()
	ctx := context.Background()

	// Nanosecond-precision timestamp; the stored instant must hash to
	// the same content hash when read back.
	r := testRecord("precise")
	r.Timestamp = time.Date(2026, 8, 30, 12, 34, 56, 789123456, time.UTC)
	committed, err := l.Append(ctx, r)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	stored, err := l.Record(ctx, committed.Sequence)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !stored.Timestamp.Equal(r.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", stored.Timestamp, r.Timestamp)
	}
	if got := HashRecord(stored); got != committed.ContentHash {
		t.Errorf("recomputed hash %q differs from committed %q", got, committed.ContentHash)
	}
}

func TestSQLiteLedger_ReopenAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	l := newTestSQLiteLedger(t, path)
	appendN(t, l, 5)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A fresh process must see the same chain and verify it clean.
	reopened := newTestSQLiteLedger(t, path)
	defer reopened.Close()

	tail, err := reopened.Tail(ctx)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if tail == nil || tail.Sequence != 5 {
		t.Fatalf("tail = %+v, want sequence 5", tail)
	}

	next, err := reopened.Append(ctx, testRecord("after reopen"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if next.Sequence != 6 || next.PrevHash != tail.ContentHash {
		t.Errorf("append after reopen = seq %d prev %q, want 6 chained to %q",
			next.Sequence, next.PrevHash, tail.ContentHash)
	}

	report, err := reopened.Verify(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !report.Verified {
		t.Errorf("chain verification failed at sequence %d: %s", report.FailedSequence, report.Failure)
	}
	if report.Checked != 6 {
		t.Errorf("Checked = %d, want 6", report.Checked)
	}
}

func TestSQLiteLedger_RangeAndRecord(t *testing.T) {
	l := newTestSQLiteLedger(t, filepath.Join(t.TempDir(), "audit.db"))
	defer l.Close()
	ctx := context.Background()
	appendN(t, l, 4)

	records, err := l.Range(ctx, 2, 3)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(records) != 2 || records[0].Sequence != 2 || records[1].Sequence != 3 {
		t.Errorf("Range(2,3) = %d records starting at %d", len(records), records[0].Sequence)
	}

	all, err := l.Range(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Range(0,0) = %d records, want 4", len(all))
	}

	if _, err := l.Record(ctx, 99); err == nil {
		t.Error("Record(99) expected a not-found error")
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("Record(99) error = %T, want *NotFoundError", err)
		}
	}
}

func TestSQLiteLedger_VerifySubrange(t *testing.T) {
	l := newTestSQLiteLedger(t, filepath.Join(t.TempDir(), "audit.db"))
	defer l.Close()
	ctx := context.Background()
	appendN(t, l, 6)

	// A subrange not starting at 1 anchors against the preceding
	// record's content hash.
	report, err := l.Verify(ctx, 3, 5)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !report.Verified || report.Checked != 3 {
		t.Errorf("report = %+v, want 3 checked verified", report)
	}
}

func TestSQLiteLedger_VerifyDetectsTampering(t *testing.T) {
	l := newTestSQLiteLedger(t, filepath.Join(t.TempDir(), "audit.db"))
	defer l.Close()
	ctx := context.Background()
	appendN(t, l, 3)

	if _, err := l.db.Exec("UPDATE audit_records SET summary = 'rewritten' WHERE sequence = 2"); err != nil {
		t.Fatalf("tampering update: %v", err)
	}

	report, err := l.Verify(ctx, 0, 0)
	if report == nil || report.Verified {
		t.Fatalf("report = %+v, want failed verification", report)
	}
	if report.FailedSequence != 2 {
		t.Errorf("FailedSequence = %d, want 2", report.FailedSequence)
	}
	var ierr *governance.IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("Verify() error = %v, want *governance.IntegrityError", err)
	}
	if ierr.Field != "content_hash" {
		t.Errorf("IntegrityError.Field = %q, want content_hash", ierr.Field)
	}
}

func TestSQLiteLedger_ConcurrentAppends(t *testing.T) {
	// Every retry happens because another writer committed, so with N
	// writers a single append conflicts at most N-1 times.
	l, err := NewSQLiteLedger(&SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout:   5 * time.Second,
		AppendRetries: 16,
		WALMode:       true,
	})
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error = %v", err)
	}
	defer l.Close()
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Append(ctx, testRecord(fmt.Sprintf("writer %d", i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Append() error = %v", err)
	}

	report, err := l.Verify(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !report.Verified || report.Checked != writers {
		t.Errorf("report = %+v, want %d checked verified", report, writers)
	}
}
