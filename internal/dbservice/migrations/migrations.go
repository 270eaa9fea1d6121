// Package migrations runs goose migrations against the Postgres backend
// through a *sql.DB handle built from the same DSN the connection pool
// uses, since goose operates on database/sql rather than pgx directly.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	// Registers the "pgx" driver with database/sql so goose can open a
	// standard-library connection against the same Postgres instance the
	// pgxpool-backed service talks to.
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed *.sql
var embedFS embed.FS

// Up runs all pending migrations.
func Up(dsn string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openWithDialect(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("running database migrations")
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrations complete")
	return nil
}

// DownTo rolls back to the given goose version, 0 meaning "undo everything".
func DownTo(dsn string, version int64, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openWithDialect(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("rolling back database migrations", "target_version", version)
	if err := goose.DownTo(db, ".", version); err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// Status prints the applied/pending state of every migration to the logger.
func Status(dsn string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openWithDialect(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.Status(db, ".")
}

func openWithDialect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedFS)
	return db, nil
}
