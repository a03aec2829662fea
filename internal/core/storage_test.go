package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"mobiletables/internal/infra/persistence/memory"
	"mobiletables/internal/infra/persistence/postgres"
	"mobiletables/internal/infra/persistence/postgres/testutil"
	"mobiletables/internal/infra/persistence/sqlite"
)

func TestOpenTableStoreDrivers(t *testing.T) {
	ctx := context.Background()

	store, err := OpenTableStore(ctx, StorageConfig{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*memory.TableStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	path := filepath.Join(t.TempDir(), "rows.db")
	store, err = OpenTableStore(ctx, StorageConfig{SQLitePath: path})
	if err != nil {
		t.Fatalf("sqlite default: %v", err)
	}
	sq, ok := store.(*sqlite.TableStore)
	if !ok || sq.Path() != path {
		t.Fatalf("expected sqlite store at %s, got %T", path, store)
	}
	_ = store.Close()

	db, _ := testutil.NewRowDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err = OpenTableStore(ctx, StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://stub"})
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if _, ok := store.(*postgres.Store); !ok {
		t.Fatalf("expected postgres store, got %T", store)
	}

	if _, err := OpenTableStore(ctx, StorageConfig{Driver: "bogus"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestParseEnvStorageConfig(t *testing.T) {
	t.Setenv("MOBILETABLES_STORAGE_DRIVER", "postgres")
	t.Setenv("MOBILETABLES_POSTGRES_DSN", "postgres://db/rows")
	var cfg StorageConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Driver != StoragePostgres || cfg.PostgresDSN != "postgres://db/rows" || cfg.SQLitePath != "" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestParseEnvStorageDefaults(t *testing.T) {
	var cfg StorageConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Driver != StorageSQLite {
		t.Fatalf("expected sqlite default, got %q", cfg.Driver)
	}
	if err := ParseEnv(cfg); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}
