package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger is an in-memory ledger backend. Appends are serialized by
// a mutex, which trivially satisfies the single-writer chain invariant.
// Intended for tests and embedded use; records do not survive restarts.
type MemoryLedger struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Append commits a record to the chain.
func (l *MemoryLedger) Append(ctx context.Context, record *Record) (*Record, error) {
	if err := prepareAppend(record); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	committed := *record
	committed.Sequence = uint64(len(l.records)) + 1
	if committed.ID == "" {
		committed.ID = uuid.NewString()
	}
	committed.PrevHash = ""
	if n := len(l.records); n > 0 {
		committed.PrevHash = l.records[n-1].ContentHash
	}
	committed.ContentHash = HashRecord(&committed)

	l.records = append(l.records, &committed)

	out := committed
	return &out, nil
}

// Record returns the record at the given sequence number.
func (l *MemoryLedger) Record(ctx context.Context, seq uint64) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq == 0 || seq > uint64(len(l.records)) {
		return nil, &NotFoundError{Sequence: seq}
	}
	out := *l.records[seq-1]
	return &out, nil
}

// Range returns records with from <= sequence <= to, in order.
func (l *MemoryLedger) Range(ctx context.Context, from, to uint64) ([]*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	from, to, err := rangeBounds(from, to, uint64(len(l.records)))
	if err != nil {
		return nil, err
	}
	if to == 0 {
		return nil, nil
	}

	out := make([]*Record, 0, to-from+1)
	for seq := from; seq <= to; seq++ {
		r := *l.records[seq-1]
		out = append(out, &r)
	}
	return out, nil
}

// Tail returns the most recently appended record, or nil if empty.
func (l *MemoryLedger) Tail(ctx context.Context) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.records) == 0 {
		return nil, nil
	}
	out := *l.records[len(l.records)-1]
	return &out, nil
}

// Verify recomputes hashes across the range.
func (l *MemoryLedger) Verify(ctx context.Context, from, to uint64) (*VerificationReport, error) {
	records, err := l.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &VerificationReport{From: from, To: to, Verified: true}, nil
	}

	prevHash := ""
	if records[0].Sequence > 1 {
		prev, err := l.Record(ctx, records[0].Sequence-1)
		if err != nil {
			return nil, err
		}
		prevHash = prev.ContentHash
	}
	return verifyChain(records, prevHash, records[0].Sequence, records[len(records)-1].Sequence)
}

// Close is a no-op for the memory backend.
func (l *MemoryLedger) Close() error {
	return nil
}

// Tamper overwrites a stored record in place, bypassing the append-only
// contract. It exists solely so integrity tests can simulate out-of-band
// storage corruption.
func (l *MemoryLedger) Tamper(seq uint64, mutate func(*Record)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq == 0 || seq > uint64(len(l.records)) {
		return false
	}
	mutate(l.records[seq-1])
	return true
}
