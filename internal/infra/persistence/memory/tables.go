package memory

import (
	"context"
	"sort"
	"sync"

	"mobiletables/pkg/domain"
)

// Snapshot is the serialisable representation of every table's rows keyed by
// table name then row id.
type Snapshot map[string]map[string]domain.TableRow

// TableStore keeps table rows in process memory. The postgres store embeds it
// and writes every mutation through.
type TableStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]domain.TableRow
}

// NewTableStore returns an empty table store.
func NewTableStore() *TableStore {
	return &TableStore{tables: make(map[string]map[string]domain.TableRow)}
}

// ListRows returns rows ordered by CreatedAt then ID.
func (s *TableStore) ListRows(_ context.Context, table string) ([]domain.TableRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tables[table]
	out := make([]domain.TableRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Clone())
	}
	SortRows(out)
	return out, nil
}

// GetRow returns a copy of the row or domain.ErrNotFound.
func (s *TableStore) GetRow(_ context.Context, table, id string) (domain.TableRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tables[table][id]
	if !ok {
		return domain.TableRow{}, domain.ErrNotFound{Entity: domain.EntityType(table), ID: id}
	}
	return row.Clone(), nil
}

// InsertRow stores a new row or returns domain.ErrConflict.
func (s *TableStore) InsertRow(_ context.Context, row domain.TableRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[row.Table]
	if !ok {
		rows = make(map[string]domain.TableRow)
		s.tables[row.Table] = rows
	}
	if _, exists := rows[row.ID]; exists {
		return domain.ErrConflict{Entity: domain.EntityType(row.Table), ID: row.ID}
	}
	rows[row.ID] = row.Clone()
	return nil
}

// ReplaceRow overwrites an existing row or returns domain.ErrNotFound.
func (s *TableStore) ReplaceRow(_ context.Context, row domain.TableRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[row.Table][row.ID]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityType(row.Table), ID: row.ID}
	}
	s.tables[row.Table][row.ID] = row.Clone()
	return nil
}

// DeleteRow removes a row or returns domain.ErrNotFound.
func (s *TableStore) DeleteRow(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table][id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityType(table), ID: id}
	}
	delete(s.tables[table], id)
	return nil
}

// Close is a no-op.
func (s *TableStore) Close() error { return nil }

// ExportState returns a deep copy of every table.
func (s *TableStore) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.tables))
	for table, rows := range s.tables {
		cp := make(map[string]domain.TableRow, len(rows))
		for id, row := range rows {
			cp[id] = row.Clone()
		}
		out[table] = cp
	}
	return out
}

// ImportState replaces the store contents with a copy of snapshot.
func (s *TableStore) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]map[string]domain.TableRow, len(snapshot))
	for table, rows := range snapshot {
		cp := make(map[string]domain.TableRow, len(rows))
		for id, row := range rows {
			cp[id] = row.Clone()
		}
		s.tables[table] = cp
	}
}

// SortRows orders rows by CreatedAt then ID.
func SortRows(rows []domain.TableRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}
