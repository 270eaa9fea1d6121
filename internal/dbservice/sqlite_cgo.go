//go:build cgo

package dbservice

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// CGO SQLite driver, kept as an alternate build-tagged path for
	// deployments that already link CGO (e.g. for other CGO dependencies)
	// and prefer the reference driver over the pure Go one.
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteServiceCGO is identical to NewSQLiteService but opens the
// database through the CGO sqlite3 driver. Only compiled with cgo enabled.
func NewSQLiteServiceCGO(path string, logger *slog.Logger) (*SQLiteService, error) {
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

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewDatabaseError(ErrConnection, "failed to open sqlite3 database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	return &SQLiteService{db: db, path: path, logger: logger}, nil
}
