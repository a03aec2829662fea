package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"mobiletables/pkg/domain"

	"github.com/google/uuid"
)

const (
	// DefaultPageSize applies when a query does not set Top.
	DefaultPageSize = 50
	// MaxPageSize caps Top.
	MaxPageSize = 1000
)

// QueryOptions carries the paging parameters of a table query ($top, $skip).
type QueryOptions struct {
	Top  int
	Skip int
}

func (o QueryOptions) bounds(total int) (start, end int) {
	top := o.Top
	switch {
	case top <= 0:
		top = DefaultPageSize
	case top > MaxPageSize:
		top = MaxPageSize
	}
	start = o.Skip
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end = start + top
	if end > total {
		end = total
	}
	return start, end
}

// Table is the type-erased view of a controller used by transports that
// only deal in JSON documents.
type Table interface {
	Name() string
	QueryRecords(ctx context.Context, opts QueryOptions) ([]domain.Entity, error)
	LookupRecord(ctx context.Context, id string) (domain.Entity, error)
	InsertRecord(ctx context.Context, body []byte) (domain.Entity, error)
	UpdateRecord(ctx context.Context, id string, patch []byte) (domain.Entity, error)
	Delete(ctx context.Context, id string) error
}

// TableController manages one remote table whose rows decode into T.
// T must embed domain.EntityData so *T exposes the system fields.
type TableController[T any, PT interface {
	*T
	domain.Entity
}] struct {
	svc  *Service
	name string
}

var _ Table = (*TableController[domain.Note, *domain.Note])(nil)

// NewTableController builds a controller for name without registering it.
func NewTableController[T any, PT interface {
	*T
	domain.Entity
}](svc *Service, name string) *TableController[T, PT] {
	return &TableController[T, PT]{svc: svc, name: name}
}

// RegisterTable builds a controller for name and registers it with svc.
func RegisterTable[T any, PT interface {
	*T
	domain.Entity
}](svc *Service, name string) (*TableController[T, PT], error) {
	c := NewTableController[T, PT](svc, name)
	if err := svc.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the table name used in routes and row storage.
func (c *TableController[T, PT]) Name() string { return c.name }

// Query lists live rows ordered by CreatedAt then Id, one page at a time.
func (c *TableController[T, PT]) Query(ctx context.Context, opts QueryOptions) ([]T, error) {
	var out []T
	err := c.svc.run(ctx, c.name, ActionQuery, func(ctx context.Context) (string, error) {
		rows, err := c.svc.store.ListRows(ctx, c.name)
		if err != nil {
			return "", err
		}
		live := rows[:0]
		for _, row := range rows {
			if !row.Deleted {
				live = append(live, row)
			}
		}
		start, end := opts.bounds(len(live))
		out = make([]T, 0, end-start)
		for _, row := range live[start:end] {
			item, err := c.decodeRow(row)
			if err != nil {
				return row.ID, err
			}
			out = append(out, item)
		}
		return "", nil
	})
	return out, err
}

// Lookup returns the row with id or domain.ErrNotFound.
func (c *TableController[T, PT]) Lookup(ctx context.Context, id string) (T, error) {
	var out T
	err := c.svc.run(ctx, c.name, ActionLookup, func(ctx context.Context) (string, error) {
		row, err := c.svc.store.GetRow(ctx, c.name, id)
		if err != nil {
			return id, err
		}
		if row.Deleted {
			return id, domain.ErrNotFound{Entity: domain.EntityType(c.name), ID: id}
		}
		out, err = c.decodeRow(row)
		return id, err
	})
	return out, err
}

// Insert stores item, assigning a GUID when its Id is empty. System fields
// other than Id are set by the service. A duplicate Id yields domain.ErrConflict.
func (c *TableController[T, PT]) Insert(ctx context.Context, item T) (T, error) {
	data := PT(&item).Data()
	id := strings.TrimSpace(data.ID)
	if id == "" {
		id = uuid.NewString()
	}
	err := c.svc.run(ctx, c.name, ActionInsert, func(ctx context.Context) (string, error) {
		now := c.svc.now()
		*data = domain.EntityData{ID: id, Version: "1", CreatedAt: now, UpdatedAt: now}
		row, err := c.encodeRow(&item)
		if err != nil {
			return id, err
		}
		return id, c.svc.store.InsertRow(ctx, row)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

// Update applies the fields of the JSON object patch to the stored item.
// System fields in the patch are ignored; UpdatedAt and Version advance.
func (c *TableController[T, PT]) Update(ctx context.Context, id string, patch json.RawMessage) (T, error) {
	var out T
	err := c.svc.run(ctx, c.name, ActionUpdate, func(ctx context.Context) (string, error) {
		row, err := c.svc.store.GetRow(ctx, c.name, id)
		if err != nil {
			return id, err
		}
		if row.Deleted {
			return id, domain.ErrNotFound{Entity: domain.EntityType(c.name), ID: id}
		}
		var changes map[string]json.RawMessage
		if err := json.Unmarshal(patch, &changes); err != nil {
			return id, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		for key := range changes {
			if isSystemField(key) {
				delete(changes, key)
			}
		}
		filtered, err := json.Marshal(changes)
		if err != nil {
			return id, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		out, err = c.decodeRow(row)
		if err != nil {
			return id, err
		}
		// Decoding onto the stored item matches keys the same way Insert does.
		if err := json.Unmarshal(filtered, &out); err != nil {
			return id, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		*PT(&out).Data() = domain.EntityData{
			ID:        row.ID,
			Version:   nextVersion(row.Version),
			CreatedAt: row.CreatedAt,
			UpdatedAt: c.svc.now(),
		}
		next, err := c.encodeRow(&out)
		if err != nil {
			return id, err
		}
		return id, c.svc.store.ReplaceRow(ctx, next)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Delete removes the row. Absent rows yield domain.ErrNotFound.
func (c *TableController[T, PT]) Delete(ctx context.Context, id string) error {
	return c.svc.run(ctx, c.name, ActionDelete, func(ctx context.Context) (string, error) {
		return id, c.svc.store.DeleteRow(ctx, c.name, id)
	})
}

// QueryRecords implements Table.
func (c *TableController[T, PT]) QueryRecords(ctx context.Context, opts QueryOptions) ([]domain.Entity, error) {
	items, err := c.Query(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entity, len(items))
	for i := range items {
		out[i] = PT(&items[i])
	}
	return out, nil
}

// LookupRecord implements Table.
func (c *TableController[T, PT]) LookupRecord(ctx context.Context, id string) (domain.Entity, error) {
	item, err := c.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return PT(&item), nil
}

// InsertRecord implements Table.
func (c *TableController[T, PT]) InsertRecord(ctx context.Context, body []byte) (domain.Entity, error) {
	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	created, err := c.Insert(ctx, item)
	if err != nil {
		return nil, err
	}
	return PT(&created), nil
}

// UpdateRecord implements Table.
func (c *TableController[T, PT]) UpdateRecord(ctx context.Context, id string, patch []byte) (domain.Entity, error) {
	item, err := c.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return PT(&item), nil
}

func (c *TableController[T, PT]) encodeRow(item *T) (domain.TableRow, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return domain.TableRow{}, fmt.Errorf("encode %s: %w", c.name, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.TableRow{}, fmt.Errorf("%s must encode as a JSON object: %w", c.name, err)
	}
	for _, key := range domain.SystemFields {
		delete(fields, key)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return domain.TableRow{}, fmt.Errorf("encode %s payload: %w", c.name, err)
	}
	data := PT(item).Data()
	return domain.TableRow{
		Table:     c.name,
		ID:        data.ID,
		Version:   data.Version,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
		Deleted:   data.Deleted,
		Payload:   payload,
	}, nil
}

func (c *TableController[T, PT]) decodeRow(row domain.TableRow) (T, error) {
	var item T
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &item); err != nil {
			return item, fmt.Errorf("decode %s %s: %w", c.name, row.ID, err)
		}
	}
	*PT(&item).Data() = domain.EntityData{
		ID:        row.ID,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Deleted:   row.Deleted,
	}
	return item, nil
}

func isSystemField(key string) bool {
	for _, f := range domain.SystemFields {
		if strings.EqualFold(f, key) {
			return true
		}
	}
	return false
}

func nextVersion(current string) string {
	n, err := strconv.Atoi(current)
	if err != nil || n < 0 {
		return "1"
	}
	return strconv.Itoa(n + 1)
}
