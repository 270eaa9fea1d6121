package dbservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avolkov/docgraph/internal/pool"
)

// postgresVersionRange is the compatibility declaration checked against
// `SELECT version()` at Connect time.
var postgresVersionRange = VersionRange{
	MinCompatible: "12.0",
	MaxCompatible: "17.99",
	MinTested:     "14.0",
	MaxTested:     "16.99",
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_body_gin ON documents USING GIN (body);
`

// PostgresService implements Service over internal/pool, storing documents
// as JSONB rows in a single shared table. It is the production backend.
type PostgresService struct {
	pool         *pool.Pool
	versionRange VersionRange
}

// NewPostgresService wraps an already-constructed pool. The pool itself is
// not connected here; Connect drives both the pool connect and the schema
// and version-gate checks.
func NewPostgresService(p *pool.Pool) *PostgresService {
	return &PostgresService{pool: p, versionRange: postgresVersionRange}
}

func (s *PostgresService) Connect(ctx context.Context) error {
	if err := s.pool.Connect(ctx); err != nil {
		return NewDatabaseError(ErrConnection, "failed to connect postgres pool", err)
	}

	version, err := s.Version(ctx)
	if err != nil {
		return err
	}
	warn, gateErr := CheckVersion(version, s.versionRange)
	if gateErr != nil {
		return gateErr
	}
	_ = warn // surfaced via logging at the call site that owns a logger

	if _, err := s.pool.Exec(ctx, "schema_init", postgresSchema); err != nil {
		return NewDatabaseError(ErrQuery, "failed to initialize postgres schema", err)
	}
	return nil
}

func (s *PostgresService) Health(ctx context.Context) error {
	var ok int
	row := s.pool.QueryRow(ctx, "health_ping", "SELECT 1")
	if err := row.Scan(&ok); err != nil {
		return NewDatabaseError(ErrConnection, "postgres health ping failed", err)
	}
	return nil
}

func (s *PostgresService) Version(ctx context.Context) (string, error) {
	var version string
	row := s.pool.QueryRow(ctx, "select_version", "SELECT version()")
	if err := row.Scan(&version); err != nil {
		return "", NewDatabaseError(ErrQuery, "failed to read version()", err)
	}
	return version, nil
}

func (s *PostgresService) Create(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	var id string
	row := s.pool.QueryRow(ctx, "document_insert",
		`INSERT INTO documents (collection, id, body)
		 VALUES ($1, $2::text || ':' || gen_random_uuid()::text, $3)
		 RETURNING id`,
		collection, collection, value)
	if err := row.Scan(&id); err != nil {
		return "", NewDatabaseError(ErrQuery, "failed to insert document", err)
	}
	return id, nil
}

func (s *PostgresService) Read(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	var body []byte
	row := s.pool.QueryRow(ctx, "document_select",
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	err := row.Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewDatabaseError(ErrQuery, "failed to read document", err)
	}
	return json.RawMessage(body), true, nil
}

func (s *PostgresService) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, "document_update",
		`UPDATE documents SET body = $3, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, patch)
	if err != nil {
		return NewDatabaseError(ErrQuery, "failed to update document", err)
	}
	if tag.RowsAffected() == 0 {
		return NewDatabaseError(ErrNotFound, fmt.Sprintf("document %s/%s not found", collection, id), nil)
	}
	return nil
}

func (s *PostgresService) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, "document_delete",
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return NewDatabaseError(ErrQuery, "failed to delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return NewDatabaseError(ErrNotFound, fmt.Sprintf("document %s/%s not found", collection, id), nil)
	}
	return nil
}

// postgresStatements is the fixed set of parameterized query templates
// Query accepts; statement is never assembled from raw user input.
var postgresStatements = map[string]string{
	"list_by_collection":   `SELECT body FROM documents WHERE collection = $1 ORDER BY created_at`,
	"list_by_tag":          `SELECT body FROM documents WHERE collection = $1 AND body->'tags' ? $2 ORDER BY created_at`,
	"list_by_author":       `SELECT body FROM documents WHERE collection = $1 AND body->>'author' = $2 ORDER BY created_at`,
	"search_title_content": `SELECT body FROM documents WHERE collection = $1 AND (body->>'title' ILIKE '%' || $2 || '%' OR body->>'content' ILIKE '%' || $2 || '%') ORDER BY created_at`,
}

func (s *PostgresService) Query(ctx context.Context, statement string, bindings map[string]interface{}) ([]json.RawMessage, error) {
	sqlText, ok := postgresStatements[statement]
	if !ok {
		return nil, NewDatabaseError(ErrValidation, fmt.Sprintf("unknown query statement %q", statement), nil)
	}

	args, err := bindStatementArgs(statement, bindings)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, statement, sqlText, args...)
	if err != nil {
		return nil, NewDatabaseError(ErrQuery, "failed to run query statement", err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, NewDatabaseError(ErrQuery, "failed to scan query row", err)
		}
		results = append(results, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError(ErrQuery, "query row iteration failed", err)
	}
	return results, nil
}

func bindStatementArgs(statement string, bindings map[string]interface{}) ([]interface{}, error) {
	collection, _ := bindings["collection"].(string)
	if collection == "" {
		return nil, NewDatabaseError(ErrValidation, "collection binding is required", nil)
	}
	switch statement {
	case "list_by_collection":
		return []interface{}{collection}, nil
	case "list_by_tag":
		tag, _ := bindings["tag"].(string)
		if tag == "" {
			return nil, NewDatabaseError(ErrValidation, "tag binding is required", nil)
		}
		return []interface{}{collection, tag}, nil
	case "list_by_author":
		author, _ := bindings["author"].(string)
		if author == "" {
			return nil, NewDatabaseError(ErrValidation, "author binding is required", nil)
		}
		return []interface{}{collection, author}, nil
	case "search_title_content":
		term, _ := bindings["term"].(string)
		if term == "" {
			return nil, NewDatabaseError(ErrValidation, "term binding is required", nil)
		}
		return []interface{}{collection, term}, nil
	default:
		return nil, NewDatabaseError(ErrValidation, fmt.Sprintf("unknown query statement %q", statement), nil)
	}
}

func (s *PostgresService) Close() error {
	return s.pool.Close()
}
