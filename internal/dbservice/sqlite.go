package dbservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Pure Go SQLite driver — no CGO, matching the embedded "lite" profile's
	// cross-compilation requirements.
	_ "modernc.org/sqlite"

	"github.com/google/uuid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// SQLiteService implements Service over an embedded SQLite database, used
// by the "sqlite" deployment profile (single-node, no external database
// dependency).
type SQLiteService struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteService opens (creating if absent) a SQLite database at path.
// Connect must still be called before use to apply the schema; the SQLite
// backend runs no version gate.
func NewSQLiteService(path string, logger *slog.Logger) (*SQLiteService, error) {
	if path == "" {
		return nil, NewDatabaseError(ErrConfiguration, "sqlite path cannot be empty", nil)
	}
	if strings.Contains(path, "..") {
		return nil, NewDatabaseError(ErrConfiguration, "sqlite path must not contain '..'", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, NewDatabaseError(ErrConfiguration, "failed to create sqlite directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewDatabaseError(ErrConnection, "failed to open sqlite database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	return &SQLiteService{db: db, path: path, logger: logger}, nil
}

func (s *SQLiteService) Connect(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewDatabaseError(ErrConnection, "failed to ping sqlite database", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return NewDatabaseError(ErrQuery, "failed to initialize sqlite schema", err)
	}
	s.logger.Info("sqlite document store ready", "path", s.path)
	return nil
}

func (s *SQLiteService) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewDatabaseError(ErrConnection, "sqlite ping failed", err)
	}
	return nil
}

func (s *SQLiteService) Version(ctx context.Context) (string, error) {
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "", NewDatabaseError(ErrQuery, "failed to read sqlite_version()", err)
	}
	return version, nil
}

func (s *SQLiteService) Create(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	id := fmt.Sprintf("%s:%s", collection, uuid.NewString())
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(value), now, now)
	if err != nil {
		return "", NewDatabaseError(ErrQuery, "failed to insert document", err)
	}
	return id, nil
}

func (s *SQLiteService) Read(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewDatabaseError(ErrQuery, "failed to read document", err)
	}
	return json.RawMessage(body), true, nil
}

func (s *SQLiteService) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(patch), time.Now().UTC(), collection, id)
	if err != nil {
		return NewDatabaseError(ErrQuery, "failed to update document", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return NewDatabaseError(ErrNotFound, fmt.Sprintf("document %s/%s not found", collection, id), nil)
	}
	return nil
}

func (s *SQLiteService) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return NewDatabaseError(ErrQuery, "failed to delete document", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return NewDatabaseError(ErrNotFound, fmt.Sprintf("document %s/%s not found", collection, id), nil)
	}
	return nil
}

// Query on SQLiteService supports exactly one statement, "list_by_collection",
// since the embedded profile is not expected to serve the full arbitrary
// query surface Postgres's JSONB operators allow.
func (s *SQLiteService) Query(ctx context.Context, statement string, bindings map[string]interface{}) ([]json.RawMessage, error) {
	if statement != "list_by_collection" {
		return nil, NewDatabaseError(ErrValidation, fmt.Sprintf("sqlite backend does not support statement %q", statement), nil)
	}
	collection, _ := bindings["collection"].(string)
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM documents WHERE collection = ? ORDER BY created_at`, collection)
	if err != nil {
		return nil, NewDatabaseError(ErrQuery, "failed to list documents", err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, NewDatabaseError(ErrQuery, "failed to scan document row", err)
		}
		results = append(results, json.RawMessage(body))
	}
	return results, rows.Err()
}

func (s *SQLiteService) Close() error {
	return s.db.Close()
}
