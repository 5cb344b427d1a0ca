// Package authz authenticates bearer tokens against the embedded SQLite
// token store, matches their scopes/environments against the requested
// endpoint, and records an audit trail of every authorization decision.
package authz

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the auth.db connection and its two tables: Tokens and
// TokenAudits.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite token store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("auth db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_id TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			scopes TEXT NOT NULL,
			environments TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			disabled INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			expires_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_token_id ON tokens(token_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_username ON tokens(username);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens(created_at);`,
		`CREATE TABLE IF NOT EXISTS token_audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			operation TEXT NOT NULL,
			environment TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			remote_addr TEXT NOT NULL DEFAULT '',
			details_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_token_audits_token_id ON token_audits(token_id);`,
		`CREATE INDEX IF NOT EXISTS idx_token_audits_created_at ON token_audits(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_token_audits_operation ON token_audits(operation, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_token_audits_op_ts_token ON token_audits(operation, created_at, token_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// TokenRecord is one row of the tokens table, as needed to authenticate
// and authorize a request.
type TokenRecord struct {
	TokenID      string
	Username     string
	Description  string
	Hash         string
	Salt         string
	Iterations   int
	Scopes       []string
	Environments []string
	IsAdmin      bool
	Disabled     bool
	ExpiresAt    *time.Time
}

func scanTokenRow(scan func(dest ...any) error) (*TokenRecord, error) {
	var rec TokenRecord
	var scopesCSV, envsCSV string
	var isAdmin, disabled int
	var expiresAt sql.NullString
	if err := scan(&rec.TokenID, &rec.Username, &rec.Description, &rec.Hash, &rec.Salt, &rec.Iterations,
		&scopesCSV, &envsCSV, &isAdmin, &disabled, &expiresAt); err != nil {
		return nil, err
	}
	rec.Scopes = splitCSV(scopesCSV)
	rec.Environments = splitCSV(envsCSV)
	rec.IsAdmin = isAdmin != 0
	rec.Disabled = disabled != 0
	if expiresAt.Valid && expiresAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err == nil {
			rec.ExpiresAt = &t
		}
	}
	return &rec, nil
}

const tokenColumns = `token_id, username, description, hash, salt, iterations,
		scopes, environments, is_admin, disabled, expires_at`

// FindByID loads the token row for tokenID, or (nil, nil) if absent. Used
// by provisioning tooling for lookup/rotation, not by the request path.
func (s *Store) FindByID(ctx context.Context, tokenID string) (*TokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_id = ?`, tokenID)
	rec, err := scanTokenRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ActiveTokens returns every non-disabled, non-expired token row, for the
// request path's hash-scan authentication: the token string itself never
// carries its own id, so the only way to find which row it belongs to is
// to try every active row's stored hash.
func (s *Store) ActiveTokens(ctx context.Context) ([]TokenRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE disabled = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var out []TokenRecord
	for rows.Next() {
		rec, err := scanTokenRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		if rec.ExpiresAt != nil && now.After(*rec.ExpiresAt) {
			continue
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Insert creates a new token row. Used by provisioning tooling, not by the
// request path.
func (s *Store) Insert(ctx context.Context, rec TokenRecord) error {
	var expires any
	if rec.ExpiresAt != nil {
		expires = rec.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tokens
		(token_id, username, description, hash, salt, iterations, scopes, environments, is_admin, disabled, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TokenID, rec.Username, rec.Description, rec.Hash, rec.Salt, rec.Iterations,
		joinCSV(rec.Scopes), joinCSV(rec.Environments), boolToInt(rec.IsAdmin), boolToInt(rec.Disabled),
		time.Now().UTC().Format(time.RFC3339Nano), expires)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
