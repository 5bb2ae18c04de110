package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// AppendRetries is the number of times a conflicting append is
	// retried before giving up. Each retry re-reads the tail, so an
	// append only commits when its previous_hash matches the true tail.
	// Default: 5
	AppendRetries int

	// WALMode enables Write-Ahead Logging for better read concurrency.
	// Default: true
	WALMode bool
}

// DefaultSQLiteConfig returns the default SQLite ledger configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:          "data/audit.db",
		BusyTimeout:   5 * time.Second,
		AppendRetries: 5,
		WALMode:       true,
	}
}

// SQLiteLedger is a durable ledger backend on SQLite. Appends run inside
// an immediate transaction: the tail is re-read under the write lock and
// the new record's previous_hash is derived from it, so concurrent
// append attempts retry until their previous_hash matches the actual
// tail at commit time.
type SQLiteLedger struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
    sequence      INTEGER PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    type          TEXT NOT NULL,
    timestamp     TIMESTAMP NOT NULL,
    actor         TEXT,
    scope_org     TEXT NOT NULL,
    scope_project TEXT,
    scope_resource TEXT,
    summary       TEXT NOT NULL,
    payload       TEXT,
    previous_hash TEXT NOT NULL,
    content_hash  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_records(type);
`

// NewSQLiteLedger opens (and if necessary creates) a SQLite-backed
// ledger.
func NewSQLiteLedger(config *SQLiteConfig) (*SQLiteLedger, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	l := &SQLiteLedger{db: db, config: config, logger: logger}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite ledger initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return l, nil
}

func (l *SQLiteLedger) initialize() error {
	if l.config.WALMode {
		if _, err := l.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := l.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", l.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := l.db.Exec(sqliteSchema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	return nil
}

// Append commits a record to the chain, retrying on write contention.
func (l *SQLiteLedger) Append(ctx context.Context, record *Record) (*Record, error) {
	if err := prepareAppend(record); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= l.config.AppendRetries; attempt++ {
		committed, err := l.tryAppend(ctx, record)
		if err == nil {
			return committed, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		l.logger.Debug("audit append conflict, retrying",
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, NewStorageError("sqlite", "append", fmt.Errorf("retries exhausted: %w", lastErr))
}

func (l *SQLiteLedger) tryAppend(ctx context.Context, record *Record) (*Record, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("sqlite", "append", err)
	}
	defer tx.Rollback()

	// Read the tail under the transaction so previous_hash references
	// the true prior tail at commit time.
	var tailSeq uint64
	var tailHash string
	row := tx.QueryRowContext(ctx,
		"SELECT sequence, content_hash FROM audit_records ORDER BY sequence DESC LIMIT 1")
	switch err := row.Scan(&tailSeq, &tailHash); {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		tailSeq, tailHash = 0, ""
	default:
		return nil, NewStorageError("sqlite", "append", err)
	}

	committed := *record
	committed.Sequence = tailSeq + 1
	if committed.ID == "" {
		committed.ID = uuid.NewString()
	}
	committed.PrevHash = tailHash
	committed.ContentHash = HashRecord(&committed)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_records
		(sequence, id, type, timestamp, actor, scope_org, scope_project, scope_resource,
		 summary, payload, previous_hash, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		committed.Sequence, committed.ID, string(committed.Type),
		committed.Timestamp.UTC(), committed.Actor,
		committed.Scope.Organization, committed.Scope.Project, committed.Scope.Resource,
		committed.Summary, string(committed.Payload),
		committed.PrevHash, committed.ContentHash,
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "append", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("sqlite", "append", err)
	}
	return &committed, nil
}

// isRetryable reports whether an append failure may succeed on retry:
// a sequence collision from a concurrent writer, or a busy database.
func isRetryable(err error) bool {
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Cause == nil {
		return false
	}
	msg := serr.Cause.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// Record returns the record at the given sequence number.
func (l *SQLiteLedger) Record(ctx context.Context, seq uint64) (*Record, error) {
	row := l.db.QueryRowContext(ctx, selectColumns+" WHERE sequence = ?", seq)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Sequence: seq}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "record", err)
	}
	return r, nil
}

// Range returns records with from <= sequence <= to, in order.
func (l *SQLiteLedger) Range(ctx context.Context, from, to uint64) ([]*Record, error) {
	tail, err := l.tailSequence(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err = rangeBounds(from, to, tail)
	if err != nil {
		return nil, err
	}
	if to == 0 {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx,
		selectColumns+" WHERE sequence BETWEEN ? AND ? ORDER BY sequence", from, to)
	if err != nil {
		return nil, NewStorageError("sqlite", "range", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "range", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "range", err)
	}
	return out, nil
}

// Tail returns the most recently appended record, or nil if empty.
func (l *SQLiteLedger) Tail(ctx context.Context) (*Record, error) {
	row := l.db.QueryRowContext(ctx, selectColumns+" ORDER BY sequence DESC LIMIT 1")
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "tail", err)
	}
	return r, nil
}

// Verify recomputes hashes across the range.
func (l *SQLiteLedger) Verify(ctx context.Context, from, to uint64) (*VerificationReport, error) {
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

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) tailSequence(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	row := l.db.QueryRowContext(ctx, "SELECT MAX(sequence) FROM audit_records")
	if err := row.Scan(&seq); err != nil {
		return 0, NewStorageError("sqlite", "tail", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

const selectColumns = `
	SELECT sequence, id, type, timestamp, actor, scope_org, scope_project, scope_resource,
	       summary, payload, previous_hash, content_hash
	FROM audit_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var typ, payload string
	var actor, project, resource sql.NullString
	err := row.Scan(
		&r.Sequence, &r.ID, &typ, &r.Timestamp, &actor,
		&r.Scope.Organization, &project, &resource,
		&r.Summary, &payload, &r.PrevHash, &r.ContentHash,
	)
	if err != nil {
		return nil, err
	}
	r.Type = RecordType(typ)
	r.Timestamp = r.Timestamp.UTC()
	r.Actor = actor.String
	r.Scope.Project = project.String
	r.Scope.Resource = resource.String
	if payload != "" {
		r.Payload = []byte(payload)
	}
	return &r, nil
}
