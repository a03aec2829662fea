// Package core implements the remote table service: a registry of typed
// table controllers over a shared row store, instrumented with logging,
// metrics, tracing and auditing.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"mobiletables/pkg/domain"
)

// ErrInvalidPayload marks request bodies that cannot be decoded into the
// table's entity type.
var ErrInvalidPayload = errors.New("invalid payload")

// ErrUnknownTable is returned when no controller is registered for a name.
type ErrUnknownTable struct {
	Name string
}

func (e ErrUnknownTable) Error() string {
	return fmt.Sprintf("table %s not found", e.Name)
}

// Service owns the row store and the registered table controllers.
type Service struct {
	store domain.TableStore

	mu     sync.RWMutex
	tables map[string]Table

	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.TableStore, opts ...ServiceOption) *Service {
	svc := &Service{
		store:   store,
		tables:  make(map[string]Table),
		clock:   systemClock{},
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Store returns the underlying row store.
func (s *Service) Store() domain.TableStore { return s.store }

// Register adds a controller. Table names are unique.
func (s *Service) Register(table Table) error {
	if table == nil {
		return fmt.Errorf("table cannot be nil")
	}
	name := table.Name()
	if name == "" {
		return fmt.Errorf("table name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[name]; exists {
		return fmt.Errorf("table %s already registered", name)
	}
	s.tables[name] = table
	s.logger.Debug("table registered", "table", name)
	return nil
}

// Table returns the controller registered under name.
func (s *Service) Table(name string) (Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[name]
	if !ok {
		return nil, ErrUnknownTable{Name: name}
	}
	return table, nil
}

// TableNames lists registered table names in ascending order.
func (s *Service) TableNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rows returns every stored row of a registered table ordered by CreatedAt
// then Id. Exports read through it and are audited as "export_<table>".
func (s *Service) Rows(ctx context.Context, table string) ([]domain.TableRow, error) {
	if _, err := s.Table(table); err != nil {
		return nil, err
	}
	var rows []domain.TableRow
	err := s.run(ctx, table, ActionExport, func(ctx context.Context) (string, error) {
		var err error
		rows, err = s.store.ListRows(ctx, table)
		return "", err
	})
	return rows, err
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

// run wraps a table operation with tracing, metrics, logging and, for
// mutations, auditing. fn returns the id of the affected row when known.
func (s *Service) run(ctx context.Context, table string, action Action, fn func(context.Context) (string, error)) error {
	op := operationName(action, table)
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	entityID, err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	if err != nil {
		s.logger.Warn("table operation failed", "operation", op, "table", table, "id", entityID, "error", err)
	} else {
		s.logger.Debug("table operation", "operation", op, "table", table, "id", entityID, "duration", elapsed)
	}
	if action == ActionQuery || action == ActionLookup {
		return err
	}
	entry := AuditEntry{
		Operation: op,
		Table:     table,
		Action:    action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  elapsed,
		Timestamp: s.clock.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
	return err
}

// operationName renders e.g. "insert_time_attendance" for (insert, TimeAttendance).
func operationName(action Action, table string) string {
	var b strings.Builder
	b.WriteString(string(action))
	b.WriteByte('_')
	for i, r := range table {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
