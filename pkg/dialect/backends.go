package dialect

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres has native json and jsonb columns.
type Postgres struct{}

func (Postgres) Name() string                      { return "postgresql" }
func (Postgres) SupportsNativeJSON() (bool, error) { return true, nil }
func (Postgres) NativeJSON() NativeSerializer      { return JSONText{} }
func (Postgres) QuoteLiteral(s string) string      { return pq.QuoteLiteral(s) }
func (Postgres) BindType() int                     { return sqlx.DOLLAR }
func (Postgres) QuoteIdentifier(n string) string   { return pq.QuoteIdentifier(n) }

func (p Postgres) CreateTableIfNotExists(table, columns string) string {
	return createIfNotExists(p, table, columns)
}

func (Postgres) TypeDescriptor(req TypeRequest) TypeDescriptor {
	switch req {
	case TypeJSON:
		return TypeDescriptor{Name: "JSON", Request: req}
	case TypeJSONB:
		return TypeDescriptor{Name: "JSONB", Request: req}
	case TypeShortString:
		return TypeDescriptor{Name: "VARCHAR(64)", Request: req}
	case TypeSerialKey:
		return TypeDescriptor{Name: "SERIAL PRIMARY KEY", Request: req}
	default:
		return TypeDescriptor{Name: "TEXT", Request: TypeUnicodeText}
	}
}

// MySQL has a native JSON column; jsonb requests resolve to it as well.
type MySQL struct{}

func (MySQL) Name() string                      { return "mysql" }
func (MySQL) SupportsNativeJSON() (bool, error) { return true, nil }
func (MySQL) NativeJSON() NativeSerializer      { return JSONText{} }
func (MySQL) BindType() int                     { return sqlx.QUESTION }

func (MySQL) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m MySQL) CreateTableIfNotExists(table, columns string) string {
	return createIfNotExists(m, table, columns)
}

// QuoteLiteral escapes backslashes too, since MySQL treats them as escapes
// unless NO_BACKSLASH_ESCAPES is set.
func (MySQL) QuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (MySQL) TypeDescriptor(req TypeRequest) TypeDescriptor {
	switch req {
	case TypeJSON, TypeJSONB:
		return TypeDescriptor{Name: "JSON", Request: req}
	case TypeShortString:
		return TypeDescriptor{Name: "VARCHAR(64)", Request: req}
	case TypeSerialKey:
		return TypeDescriptor{Name: "INTEGER PRIMARY KEY AUTO_INCREMENT", Request: req}
	default:
		return TypeDescriptor{Name: "LONGTEXT", Request: TypeUnicodeText}
	}
}

// SQLite stores JSON as text. JSON1 reports native support for builds
// where the JSON1 extension and a JSON-aware driver are in use.
type SQLite struct {
	JSON1 bool
}

func (SQLite) Name() string                        { return "sqlite" }
func (s SQLite) SupportsNativeJSON() (bool, error) { return s.JSON1, nil }
func (SQLite) NativeJSON() NativeSerializer        { return JSONText{} }
func (SQLite) QuoteLiteral(s string) string        { return quoteStandard(s) }
func (SQLite) BindType() int                       { return sqlx.QUESTION }
func (SQLite) QuoteIdentifier(n string) string     { return quoteDouble(n) }

func (s SQLite) CreateTableIfNotExists(table, columns string) string {
	return createIfNotExists(s, table, columns)
}

func (SQLite) TypeDescriptor(req TypeRequest) TypeDescriptor {
	switch req {
	case TypeJSON, TypeJSONB:
		return TypeDescriptor{Name: "JSON", Request: req}
	case TypeShortString:
		return TypeDescriptor{Name: "VARCHAR(64)", Request: req}
	case TypeSerialKey:
		return TypeDescriptor{Name: "INTEGER PRIMARY KEY AUTOINCREMENT", Request: req}
	default:
		return TypeDescriptor{Name: "TEXT", Request: TypeUnicodeText}
	}
}

// SQLServer has no JSON column type; JSON lives in NVARCHAR(MAX).
type SQLServer struct{}

func (SQLServer) Name() string                      { return "mssql" }
func (SQLServer) SupportsNativeJSON() (bool, error) { return false, nil }
func (SQLServer) NativeJSON() NativeSerializer      { return JSONText{} }
func (SQLServer) QuoteLiteral(s string) string      { return "N" + quoteStandard(s) }
func (SQLServer) BindType() int                     { return sqlx.AT }

func (SQLServer) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// CreateTableIfNotExists guards with OBJECT_ID, since SQL Server has no
// IF NOT EXISTS clause for CREATE TABLE.
func (s SQLServer) CreateTableIfNotExists(table, columns string) string {
	return fmt.Sprintf("IF OBJECT_ID(%s, N'U') IS NULL CREATE TABLE %s (%s)",
		s.QuoteLiteral(table), s.QuoteIdentifier(table), columns)
}

func (SQLServer) TypeDescriptor(req TypeRequest) TypeDescriptor {
	switch req {
	case TypeShortString:
		return TypeDescriptor{Name: "NVARCHAR(64)", Request: req}
	case TypeSerialKey:
		return TypeDescriptor{Name: "INT IDENTITY(1,1) PRIMARY KEY", Request: req}
	default:
		return TypeDescriptor{Name: "NVARCHAR(MAX)", Request: req}
	}
}
