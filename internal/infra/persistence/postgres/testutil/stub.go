// Package testutil provides a fake database/sql driver holding the
// table_rows relation used by the postgres row store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RowColumns is the column order of table_rows in every SELECT the fake answers.
var RowColumns = []string{"table_name", "id", "version", "created_at", "updated_at", "deleted", "payload"}

var driverSeq atomic.Uint64

// RowDB is an in-memory table_rows relation behind a database/sql connection.
type RowDB struct {
	mu         sync.Mutex
	statements []string
	keys       []string
	rows       map[string][]driver.Value

	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
}

// NewRowDB registers a fresh driver and returns a *sql.DB bound to it.
func NewRowDB() (*sql.DB, *RowDB) {
	fake := &RowDB{rows: make(map[string][]driver.Value)}
	name := fmt.Sprintf("rowdb%d", driverSeq.Add(1))
	sql.Register(name, rowDriver{fake})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, fake
}

// Seed stores a row as if it had been written earlier.
func (f *RowDB) Seed(table, id, version string, created, updated time.Time, deleted bool, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put([]driver.Value{table, id, version, created, updated, deleted, payload})
}

// Len reports how many rows are stored.
func (f *RowDB) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

// Row returns the stored columns of one row by name.
func (f *RowDB) Row(table, id string) (map[string]driver.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, ok := f.rows[rowKey(table, id)]
	if !ok {
		return nil, false
	}
	out := make(map[string]driver.Value, len(RowColumns))
	for i, col := range RowColumns {
		out[col] = vals[i]
	}
	return out, true
}

// Statements returns every statement executed so far.
func (f *RowDB) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statements...)
}

func rowKey(table, id string) string { return table + "\x00" + id }

func (f *RowDB) put(vals []driver.Value) {
	key := rowKey(fmt.Sprint(vals[0]), fmt.Sprint(vals[1]))
	if _, ok := f.rows[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.rows[key] = vals
}

func (f *RowDB) remove(key string) int64 {
	if _, ok := f.rows[key]; !ok {
		return 0
	}
	delete(f.rows, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	return 1
}

func statementVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

type rowDriver struct{ fake *RowDB }

func (d rowDriver) Open(string) (driver.Conn, error) { return rowConn(d), nil }

type rowConn struct{ fake *RowDB }

func (c rowConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements unsupported")
}

func (c rowConn) Close() error { return nil }

func (c rowConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c rowConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.fake.FailBegin {
		return nil, errors.New("begin failed")
	}
	return rowTx(c), nil
}

func (c rowConn) Ping(context.Context) error {
	if c.fake.FailPing {
		return errors.New("ping failed")
	}
	return nil
}

func (c rowConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, query)
	switch statementVerb(query) {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		if len(args) != len(RowColumns) {
			return nil, fmt.Errorf("insert expects %d args, got %d", len(RowColumns), len(args))
		}
		vals := make([]driver.Value, len(args))
		for i, a := range args {
			vals[i] = a.Value
		}
		f.put(vals)
		return driver.RowsAffected(1), nil
	case "DELETE":
		if len(args) != 2 {
			return nil, fmt.Errorf("delete expects table and id, got %d args", len(args))
		}
		return driver.RowsAffected(f.remove(rowKey(fmt.Sprint(args[0].Value), fmt.Sprint(args[1].Value)))), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

func (c rowConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	f := c.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, query)
	if statementVerb(query) != "SELECT" {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	if f.FailQuery {
		return nil, errors.New("query failed")
	}
	out := &rowCursor{}
	for _, key := range f.keys {
		out.rows = append(out.rows, append([]driver.Value(nil), f.rows[key]...))
	}
	return out, nil
}

type rowTx struct{ fake *RowDB }

func (t rowTx) Commit() error {
	if t.fake.FailCommit {
		return errors.New("commit failed")
	}
	return nil
}

func (t rowTx) Rollback() error { return nil }

type rowCursor struct {
	rows [][]driver.Value
	next int
}

func (r *rowCursor) Columns() []string { return RowColumns }
func (r *rowCursor) Close() error      { return nil }

func (r *rowCursor) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
