// Package sqlite provides an embedded SQLite-backed metric store using the
// pure Go driver, suitable for single-node deployments and tests.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"wardcore/internal/infra/persistence/sqlstore"
)

// NewStore opens (or creates) the SQLite database at path and applies the
// schema. An empty path falls back to wardcore.db in the working directory.
func NewStore(path string) (*sqlstore.Store, error) {
	if path == "" {
		path = "wardcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The modernc driver serializes writes per connection; a single
	// connection avoids SQLITE_BUSY churn under the engine's tick load.
	db.SetMaxOpenConns(1)
	store, err := sqlstore.New(db, sqlstore.DialectSQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
