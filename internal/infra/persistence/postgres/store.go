// Package postgres provides a Postgres-backed table row store that serves
// reads from memory and writes every mutation through to the database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"mobiletables/internal/infra/persistence/memory"
	"mobiletables/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TableStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenTableStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/mobiletables?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists table rows to Postgres while reusing the in-memory implementation for reads.
type Store struct {
	*memory.TableStore
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the row table exists and hydrates the in-memory store from it.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureRowTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewTableStore()
	mem.ImportState(snapshot)
	return &Store{TableStore: mem, db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureRowTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS table_rows (
		table_name TEXT NOT NULL,
		id TEXT NOT NULL,
		version TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		payload JSONB NOT NULL,
		PRIMARY KEY (table_name, id)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure row table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT table_name, id, version, created_at, updated_at, deleted, payload FROM table_rows`)
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	for rows.Next() {
		var (
			row     domain.TableRow
			payload []byte
		)
		if err := rows.Scan(&row.Table, &row.ID, &row.Version, &row.CreatedAt, &row.UpdatedAt, &row.Deleted, &payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		row.Payload = payload
		if snapshot[row.Table] == nil {
			snapshot[row.Table] = map[string]domain.TableRow{}
		}
		snapshot[row.Table][row.ID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return snapshot, nil
}

// InsertRow writes the row to Postgres, then to memory.
func (s *Store) InsertRow(ctx context.Context, row domain.TableRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.TableStore.GetRow(ctx, row.Table, row.ID); err == nil {
		return domain.ErrConflict{Entity: domain.EntityType(row.Table), ID: row.ID}
	}
	if err := s.upsert(ctx, row); err != nil {
		return err
	}
	return s.TableStore.InsertRow(ctx, row)
}

// ReplaceRow overwrites an existing row in Postgres and memory.
func (s *Store) ReplaceRow(ctx context.Context, row domain.TableRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.TableStore.GetRow(ctx, row.Table, row.ID); err != nil {
		return err
	}
	if err := s.upsert(ctx, row); err != nil {
		return err
	}
	return s.TableStore.ReplaceRow(ctx, row)
}

// DeleteRow removes the row from Postgres and memory.
func (s *Store) DeleteRow(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.TableStore.GetRow(ctx, table, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM table_rows WHERE table_name = $1 AND id = $2`, table, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return s.TableStore.DeleteRow(ctx, table, id)
}

func (s *Store) upsert(ctx context.Context, row domain.TableRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO table_rows(table_name, id, version, created_at, updated_at, deleted, payload)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT(table_name, id) DO UPDATE SET version=EXCLUDED.version, created_at=EXCLUDED.created_at,
		updated_at=EXCLUDED.updated_at, deleted=EXCLUDED.deleted, payload=EXCLUDED.payload`,
		row.Table, row.ID, row.Version, row.CreatedAt.UTC().Truncate(time.Microsecond), row.UpdatedAt.UTC().Truncate(time.Microsecond),
		row.Deleted, []byte(row.Payload)); err != nil {
		return fmt.Errorf("upsert %s %s: %w", row.Table, row.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
