// Package dialect describes database backends to the JSON column: whether
// they store JSON natively, how abstract column types render in DDL, and how
// the driver side serializes native JSON values.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
)

// TypeRequest is an abstract column type the dialect resolves to DDL.
type TypeRequest string

const (
	TypeJSON        TypeRequest = "json"
	TypeJSONB       TypeRequest = "jsonb"
	TypeUnicodeText TypeRequest = "unicode_text"
	// TypeShortString is a bounded unicode string used for row keys.
	TypeShortString TypeRequest = "short_string"
	// TypeSerialKey is an auto-incrementing integer primary key.
	TypeSerialKey TypeRequest = "serial_key"
)

// TypeDescriptor is a concrete column type returned by a dialect.
type TypeDescriptor struct {
	Name    string
	Request TypeRequest
}

func (t TypeDescriptor) String() string { return t.Name }

// Dialect is one database backend.
type Dialect interface {
	Name() string
	// SupportsNativeJSON reports whether the backend has a native JSON
	// column type whose values the driver serializes itself.
	SupportsNativeJSON() (bool, error)
	TypeDescriptor(req TypeRequest) TypeDescriptor
	// NativeJSON is the driver-side serializer used when values go to a
	// native JSON column.
	NativeJSON() NativeSerializer
	// QuoteLiteral renders s as a string literal for inline SQL.
	QuoteLiteral(s string) string
	// QuoteIdentifier renders a table or column name so reserved words
	// like key survive.
	QuoteIdentifier(name string) string
	// CreateTableIfNotExists wraps a column list in DDL that is a no-op
	// when the table already exists. table is unquoted.
	CreateTableIfNotExists(table, columns string) string
	// BindType is the sqlx placeholder style (sqlx.DOLLAR, sqlx.QUESTION, ...).
	BindType() int
}

// ErrUnknownDriver is returned by ForDriver for unregistered driver names.
var ErrUnknownDriver = errors.New("dialect: unknown driver")

var (
	registryMu sync.RWMutex
	registry   = map[string]Dialect{}
)

func init() {
	for _, name := range []string{"postgres", "nrpostgres", "pgx", "pq-timeouts", "cloudsqlpostgres"} {
		Register(name, Postgres{})
	}
	for _, name := range []string{"mysql", "nrmysql"} {
		Register(name, MySQL{})
	}
	for _, name := range []string{"sqlite3", "sqlite", "nrsqlite3"} {
		Register(name, SQLite{})
	}
	for _, name := range []string{"sqlserver", "mssql", "azuresql"} {
		Register(name, SQLServer{})
	}
}

// Register binds a database/sql driver name to a dialect, replacing any
// previous registration.
func Register(driverName string, d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[driverName] = d
}

// ForDriver returns the dialect registered for a database/sql driver name.
func ForDriver(driverName string) (Dialect, error) {
	registryMu.RLock()
	d, ok := registry[driverName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driverName)
	}
	return d, nil
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// quoteStandard doubles single quotes, the ANSI rule shared by sqlite and
// sql server.
func quoteStandard(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteDouble is the ANSI identifier quote used by postgres and sqlite.
func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createIfNotExists(d Dialect, table, columns string) string {
	return "CREATE TABLE IF NOT EXISTS " + d.QuoteIdentifier(table) + " (" + columns + ")"
}

// Custom is a dialect assembled from explicit parts. Zero fields fall back
// to ANSI behaviour: no native JSON, TEXT columns, '?' placeholders.
type Custom struct {
	DialectName string
	// Probe answers SupportsNativeJSON; nil means false.
	Probe      func() (bool, error)
	Types      map[TypeRequest]string
	Serializer NativeSerializer
	Quote      func(string) string
	// QuoteIdent quotes identifiers; nil uses ANSI double quotes.
	QuoteIdent func(string) string
	Bind       int
}

func (c Custom) Name() string {
	if c.DialectName == "" {
		return "custom"
	}
	return c.DialectName
}

func (c Custom) SupportsNativeJSON() (bool, error) {
	if c.Probe == nil {
		return false, nil
	}
	return c.Probe()
}

func (c Custom) TypeDescriptor(req TypeRequest) TypeDescriptor {
	if name, ok := c.Types[req]; ok {
		return TypeDescriptor{Name: name, Request: req}
	}
	return SQLite{}.TypeDescriptor(req)
}

func (c Custom) NativeJSON() NativeSerializer {
	if c.Serializer == nil {
		return JSONText{}
	}
	return c.Serializer
}

func (c Custom) QuoteLiteral(s string) string {
	if c.Quote == nil {
		return quoteStandard(s)
	}
	return c.Quote(s)
}

func (c Custom) BindType() int {
	if c.Bind == sqlx.UNKNOWN {
		return sqlx.QUESTION
	}
	return c.Bind
}

func (c Custom) QuoteIdentifier(name string) string {
	if c.QuoteIdent == nil {
		return quoteDouble(name)
	}
	return c.QuoteIdent(name)
}

func (c Custom) CreateTableIfNotExists(table, columns string) string {
	return createIfNotExists(c, table, columns)
}
