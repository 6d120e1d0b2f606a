package store

import (
	"context"
	"path/filepath"
	"testing"

	"wardcore/internal/infra/persistence/memory"
	"wardcore/internal/infra/persistence/sqlstore"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	t.Setenv("WARDCORE_STORAGE_DRIVER", "")
	t.Setenv("WARDCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "wardcore.db"))
	s, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open default store: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, ok := s.(*sqlstore.Store); !ok {
		t.Fatalf("expected sqlite-backed store, got %T", s)
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("WARDCORE_STORAGE_DRIVER", "memory")
	s, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, ok := s.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Setenv("WARDCORE_STORAGE_DRIVER", "etcd")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
