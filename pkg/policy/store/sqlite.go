package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"mercator-hq/themis/pkg/audit"
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
)

// SQLiteConfig contains configuration for the SQLite policy store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite store configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/policies.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore is a durable policy store on SQLite (pure Go driver).
// Policy documents are stored as JSON; identity and status columns are
// relational so resolution does not parse every version.
//
// SQLite write transactions are globally serialized, which subsumes the
// per-scope serialization the publish path requires.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	ledger audit.Appender
	logger *slog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS policies (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    scope_org      TEXT NOT NULL,
    scope_project  TEXT NOT NULL DEFAULT '',
    scope_resource TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL,
    version        INTEGER NOT NULL,
    status         TEXT NOT NULL,
    document       TEXT NOT NULL,
    published_at   TIMESTAMP NOT NULL,
    UNIQUE(scope_org, scope_project, scope_resource, name, version)
);

CREATE INDEX IF NOT EXISTS idx_policies_scope ON policies(scope_org, scope_project, scope_resource);
CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status);
`

// NewSQLiteStore opens (and if necessary creates) a SQLite-backed policy
// store. The ledger receives a policy-change record for every accepted
// publication.
func NewSQLiteStore(config *SQLiteConfig, ledger audit.Appender) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "policy.store.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy store: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create policy schema: %w", err)
	}

	logger.Info("SQLite policy store initialized", "path", config.Path)

	return &SQLiteStore{db: db, config: config, ledger: ledger, logger: logger}, nil
}

// Publish validates and commits a new policy version.
func (s *SQLiteStore) Publish(ctx context.Context, p *policy.Policy) (governance.PolicyRef, error) {
	return s.PublishFrom(ctx, p, "administrator", "")
}

// PublishFrom is Publish with an explicit actor and optional Git commit
// provenance, used by policy sources.
func (s *SQLiteStore) PublishFrom(ctx context.Context, p *policy.Policy, actor, commitSHA string) (governance.PolicyRef, error) {
	if p == nil {
		return governance.PolicyRef{}, &governance.ValidationError{Subject: "policy", Errors: []string{"policy is nil"}}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return governance.PolicyRef{}, fmt.Errorf("failed to begin publish: %w", err)
	}
	defer tx.Rollback()

	active, err := loadActive(ctx, tx)
	if err != nil {
		return governance.PolicyRef{}, err
	}

	latest, err := latestVersion(ctx, tx, p)
	if err != nil {
		return governance.PolicyRef{}, err
	}

	find := func(scope governance.Scope, name string) *policy.Policy {
		return active[scope.String()+"/"+name]
	}
	if err := checkPublish(p, latest, find); err != nil {
		return governance.PolicyRef{}, err
	}

	stored := *p
	stored.Status = policy.StatusActive
	doc, err := json.Marshal(&stored)
	if err != nil {
		return governance.PolicyRef{}, fmt.Errorf("failed to encode policy: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE policies SET status = ?, document = json_set(document, '$.status', ?)
		WHERE scope_org = ? AND scope_project = ? AND scope_resource = ? AND name = ? AND status = ?`,
		string(policy.StatusRetired), string(policy.StatusRetired),
		p.Scope.Organization, p.Scope.Project, p.Scope.Resource, p.Name,
		string(policy.StatusActive),
	)
	if err != nil {
		return governance.PolicyRef{}, fmt.Errorf("failed to retire prior version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO policies (scope_org, scope_project, scope_resource, name, version, status, document, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Scope.Organization, p.Scope.Project, p.Scope.Resource,
		p.Name, p.Version, string(policy.StatusActive), string(doc), time.Now().UTC(),
	)
	if err != nil {
		return governance.PolicyRef{}, fmt.Errorf("failed to store policy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return governance.PolicyRef{}, fmt.Errorf("failed to commit publish: %w", err)
	}

	record, err := publishRecord(p, actor, commitSHA)
	if err == nil {
		_, err = s.ledger.Append(ctx, record)
	}
	if err != nil {
		// The version is committed; a missing audit record is a loud
		// error, not a silent gap.
		s.logger.Error("policy published but audit append failed",
			"policy", stored.Ref().String(),
			"error", err,
		)
		return stored.Ref(), fmt.Errorf("policy %s published, audit append failed: %w", stored.Ref(), err)
	}

	s.logger.Info("policy published", "policy", stored.Ref().String())
	return stored.Ref(), nil
}

// Retire retires the active version of a policy.
func (s *SQLiteStore) Retire(ctx context.Context, scope governance.Scope, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE policies SET status = ?, document = json_set(document, '$.status', ?)
		WHERE scope_org = ? AND scope_project = ? AND scope_resource = ? AND name = ? AND status = ?`,
		string(policy.StatusRetired), string(policy.StatusRetired),
		scope.Organization, scope.Project, scope.Resource, name,
		string(policy.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to retire policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to retire policy: %w", err)
	}
	if n == 0 {
		return &NotFoundError{Ref: scope.String() + "/" + name}
	}
	return nil
}

// Get returns one exact published version.
func (s *SQLiteStore) Get(ctx context.Context, ref governance.PolicyRef) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document FROM policies
		WHERE scope_org = ? AND scope_project = ? AND scope_resource = ? AND name = ? AND version = ?`,
		ref.Scope.Organization, ref.Scope.Project, ref.Scope.Resource, ref.Name, ref.Version,
	)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Ref: ref.String()}
	}
	return p, err
}

// Active returns the currently active version of a policy.
func (s *SQLiteStore) Active(ctx context.Context, scope governance.Scope, name string) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document FROM policies
		WHERE scope_org = ? AND scope_project = ? AND scope_resource = ? AND name = ? AND status = ?`,
		scope.Organization, scope.Project, scope.Resource, name, string(policy.StatusActive),
	)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Ref: scope.String() + "/" + name}
	}
	return p, err
}

// Resolve returns every active policy applicable to the scope, most
// general first.
func (s *SQLiteStore) Resolve(ctx context.Context, scope governance.Scope) ([]*policy.Policy, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	// An applicable policy's scope is an ancestor of (or equal to) the
	// requested scope: same organization, and project/resource either
	// empty or matching.
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, document FROM policies
		WHERE status = ? AND scope_org = ?
		  AND (scope_project = '' OR scope_project = ?)
		  AND (scope_resource = '' OR scope_resource = ?)
		ORDER BY seq`,
		string(policy.StatusActive), scope.Organization, scope.Project, scope.Resource,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policies: %w", err)
	}
	defer rows.Close()

	var entries []resolvedEntry
	for rows.Next() {
		var seq uint64
		var doc string
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, fmt.Errorf("failed to resolve policies: %w", err)
		}
		var p policy.Policy
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("failed to decode policy document: %w", err)
		}
		// The SQL prefilter admits resource-scoped policies when the
		// requested scope is project-wide; Contains settles it.
		if !p.Scope.Contains(scope) {
			continue
		}
		entries = append(entries, resolvedEntry{policy: &p, seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to resolve policies: %w", err)
	}
	return orderForResolution(entries), nil
}

// List returns all active policies, most general first.
func (s *SQLiteStore) List(ctx context.Context) ([]*policy.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, document FROM policies WHERE status = ? ORDER BY seq",
		string(policy.StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var entries []resolvedEntry
	for rows.Next() {
		var seq uint64
		var doc string
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, fmt.Errorf("failed to list policies: %w", err)
		}
		var p policy.Policy
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("failed to decode policy document: %w", err)
		}
		entries = append(entries, resolvedEntry{policy: &p, seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return orderForResolution(entries), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func latestVersion(ctx context.Context, tx *sql.Tx, p *policy.Policy) (int, error) {
	var latest sql.NullInt64
	row := tx.QueryRowContext(ctx, `
		SELECT MAX(version) FROM policies
		WHERE scope_org = ? AND scope_project = ? AND scope_resource = ? AND name = ?`,
		p.Scope.Organization, p.Scope.Project, p.Scope.Resource, p.Name,
	)
	if err := row.Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	return int(latest.Int64), nil
}

func loadActive(ctx context.Context, tx *sql.Tx) (map[string]*policy.Policy, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT document FROM policies WHERE status = ?", string(policy.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to load active policies: %w", err)
	}
	defer rows.Close()

	active := make(map[string]*policy.Policy)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to load active policies: %w", err)
		}
		var p policy.Policy
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("failed to decode policy document: %w", err)
		}
		active[p.Key()] = &p
	}
	return active, rows.Err()
}

func scanPolicy(row *sql.Row) (*policy.Policy, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var p policy.Policy
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("failed to decode policy document: %w", err)
	}
	return &p, nil
}
