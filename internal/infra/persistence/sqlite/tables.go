package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mobiletables/pkg/domain"
)

var _ domain.TableStore = (*TableStore)(nil)

// DefaultTablePath is the file used by the table service's sqlite driver.
const DefaultTablePath = "mobiletables.db"

// created_at/updated_at are unix nanoseconds so ORDER BY sorts chronologically.
const tableRowsDDL = `CREATE TABLE IF NOT EXISTS table_rows (
	table_name TEXT NOT NULL,
	id TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0,
	payload BLOB NOT NULL,
	PRIMARY KEY (table_name, id)
)`

// TableStore persists remote table rows in a single sqlite table.
type TableStore struct {
	*Store
}

// NewTableStore opens the table service file and creates the row table.
func NewTableStore(ctx context.Context, path string) (*TableStore, error) {
	store, err := Open(path, DefaultTablePath)
	if err != nil {
		return nil, err
	}
	if err := store.createTable(ctx, "table_rows", tableRowsDDL); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &TableStore{Store: store}, nil
}

// ListRows returns the rows of table ordered by creation time then id.
func (s *TableStore) ListRows(ctx context.Context, table string) ([]domain.TableRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT table_name, id, version, created_at, updated_at, deleted, payload
		FROM table_rows WHERE table_name=? ORDER BY created_at, id`, table)
	if err != nil {
		return nil, fmt.Errorf("select %s rows: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.TableRow
	for rows.Next() {
		row, err := scanTableRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return out, nil
}

// GetRow returns a single row or domain.ErrNotFound.
func (s *TableStore) GetRow(ctx context.Context, table, id string) (domain.TableRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT table_name, id, version, created_at, updated_at, deleted, payload
		FROM table_rows WHERE table_name=? AND id=?`, table, id)
	out, err := scanTableRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TableRow{}, domain.ErrNotFound{Entity: domain.EntityType(table), ID: id}
	}
	return out, err
}

// InsertRow stores a new row, failing with domain.ErrConflict when the id is taken.
func (s *TableStore) InsertRow(ctx context.Context, row domain.TableRow) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM table_rows WHERE table_name=? AND id=?`, row.Table, row.ID).Scan(&exists)
	switch {
	case err == nil:
		return domain.ErrConflict{Entity: domain.EntityType(row.Table), ID: row.ID}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("probe %s %s: %w", row.Table, row.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO table_rows(table_name, id, version, created_at, updated_at, deleted, payload)
		VALUES(?,?,?,?,?,?,?)`, row.Table, row.ID, row.Version, row.CreatedAt.UnixNano(), row.UpdatedAt.UnixNano(),
		boolInt(row.Deleted), []byte(row.Payload)); err != nil {
		return fmt.Errorf("insert %s %s: %w", row.Table, row.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplaceRow overwrites an existing row, failing with domain.ErrNotFound when absent.
func (s *TableStore) ReplaceRow(ctx context.Context, row domain.TableRow) error {
	res, err := s.db.ExecContext(ctx, `UPDATE table_rows SET version=?, created_at=?, updated_at=?, deleted=?, payload=?
		WHERE table_name=? AND id=?`, row.Version, row.CreatedAt.UnixNano(), row.UpdatedAt.UnixNano(),
		boolInt(row.Deleted), []byte(row.Payload), row.Table, row.ID)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", row.Table, row.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityType(row.Table), ID: row.ID}
	}
	return nil
}

// DeleteRow removes a row, failing with domain.ErrNotFound when absent.
func (s *TableStore) DeleteRow(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM table_rows WHERE table_name=? AND id=?`, table, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityType(table), ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTableRow(r rowScanner) (domain.TableRow, error) {
	var (
		row              domain.TableRow
		created, updated int64
		deleted          int
		payload          []byte
	)
	if err := r.Scan(&row.Table, &row.ID, &row.Version, &created, &updated, &deleted, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TableRow{}, err
		}
		return domain.TableRow{}, fmt.Errorf("scan table row: %w", err)
	}
	row.CreatedAt = time.Unix(0, created).UTC()
	row.UpdatedAt = time.Unix(0, updated).UTC()
	row.Deleted = deleted != 0
	row.Payload = payload
	return row, nil
}
