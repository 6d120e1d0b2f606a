// Package store selects and opens the configured metric store backend.
package store

import (
	"context"
	"fmt"
	"os"

	"wardcore/internal/infra/persistence/memory"
	"wardcore/internal/infra/persistence/postgres"
	"wardcore/internal/infra/persistence/sqlite"
	"wardcore/pkg/domain"
)

// Driver identifies a concrete metric store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	WARDCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	WARDCORE_SQLITE_PATH: path to sqlite file (default ./wardcore.db)
//	WARDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(ctx context.Context) (domain.Store, error) {
	driver := os.Getenv("WARDCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		path := os.Getenv("WARDCORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case DriverPostgres:
		dsn := os.Getenv("WARDCORE_POSTGRES_DSN")
		return postgres.NewStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
