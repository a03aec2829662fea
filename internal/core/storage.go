package core

import (
	"context"
	"fmt"

	"mobiletables/internal/infra/persistence/memory"
	"mobiletables/internal/infra/persistence/postgres"
	"mobiletables/internal/infra/persistence/sqlite"
	"mobiletables/pkg/domain"

	"github.com/caarlos0/env/v11"
)

// StorageDriver identifies a concrete table row store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the table row backend.
//
//	MOBILETABLES_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MOBILETABLES_SQLITE_PATH: path to sqlite file (default ./mobiletables.db)
//	MOBILETABLES_POSTGRES_DSN: postgres DSN when driver=postgres
type StorageConfig struct {
	Driver      StorageDriver `env:"MOBILETABLES_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string        `env:"MOBILETABLES_SQLITE_PATH"`
	PostgresDSN string        `env:"MOBILETABLES_POSTGRES_DSN"`
}

// ParseEnv loads configuration tagged with `env` from the process environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// OpenTableStore opens the backend named by cfg.Driver. An empty driver
// defaults to sqlite.
func OpenTableStore(ctx context.Context, cfg StorageConfig) (domain.TableStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewTableStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewTableStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
