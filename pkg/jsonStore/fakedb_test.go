package jsonstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
)

// fakeDB is a single-table in-memory backend that understands the
// statements Store issues. Arguments are positional, so the fake relies on
// the column order of the table's statements.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[string]driver.Value
	execs   []string
	created bool
	// afterRead runs once, after the next single-row SELECT has read its
	// value and released the lock.
	afterRead func()
}

func newFakeDB(t *testing.T) (*fakeDB, *sqlx.DB) {
	fdb := &fakeDB{rows: map[string]driver.Value{}}
	db := sqlx.NewDb(sql.OpenDB(fdb), "sqlite3")
	t.Cleanup(func() { _ = db.Close() })
	return fdb, db
}

// raw returns the value the driver received for key.
func (f *fakeDB) raw(key string) (driver.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[key]
	return v, ok
}

func (f *fakeDB) put(key string, v driver.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = v
}

func (f *fakeDB) onNextRead(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterRead = fn
}

func (f *fakeDB) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.execs...)
}

func (f *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: f}, nil }
func (f *fakeDB) Driver() driver.Driver                        { return fakeDriver{f} }

type fakeDriver struct{ db *fakeDB }

func (d fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{db: d.db}, nil }

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{db: c.db, query: query}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("fake: transactions not supported") }

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) verb() string {
	return strings.ToUpper(strings.Fields(s.query)[0])
}

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	f := s.db
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, s.query)

	switch s.verb() {
	case "CREATE", "IF":
		f.created = true
		return driver.RowsAffected(0), nil
	case "INSERT":
		key := args[0].(string)
		if _, ok := f.rows[key]; ok {
			return nil, fmt.Errorf("fake: duplicate key %q", key)
		}
		f.rows[key] = args[1]
		return driver.RowsAffected(1), nil
	case "UPDATE":
		key := args[1].(string)
		if _, ok := f.rows[key]; !ok {
			return driver.RowsAffected(0), nil
		}
		f.rows[key] = args[0]
		return driver.RowsAffected(1), nil
	case "DELETE":
		key := args[0].(string)
		if _, ok := f.rows[key]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(f.rows, key)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("fake: unsupported statement %q", s.query)
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	rows, hook, err := s.runQuery(args)
	if hook != nil {
		hook()
	}
	return rows, err
}

func (s *fakeStmt) runQuery(args []driver.Value) (driver.Rows, func(), error) {
	f := s.db
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.verb() != "SELECT" {
		return nil, nil, fmt.Errorf("fake: unsupported query %q", s.query)
	}
	if strings.Contains(s.query, "ORDER BY") {
		keys := make([]string, 0, len(f.rows))
		for k := range f.rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := &fakeRows{cols: []string{"key"}}
		for _, k := range keys {
			out.values = append(out.values, k)
		}
		return out, nil, nil
	}

	out := &fakeRows{cols: []string{"value"}}
	if v, ok := f.rows[args[0].(string)]; ok {
		// Drivers hand text columns back as bytes.
		if str, isStr := v.(string); isStr {
			v = []byte(str)
		}
		out.values = append(out.values, v)
	}
	hook := f.afterRead
	f.afterRead = nil
	return out, hook, nil
}

type fakeRows struct {
	cols   []string
	values []driver.Value
	pos    int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}
	dest[0] = r.values[r.pos]
	r.pos++
	return nil
}

// mapCache is an in-memory Cache.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	gets    int
	hits    int
	failSet bool
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]string{}} }

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return fmt.Errorf("cache unavailable")
	}
	c.entries[key] = text
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
