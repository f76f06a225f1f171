package jsonstore

import (
	"fmt"

	jsoncolumn "github.com/jecitDev/jec-go-jsonfield/pkg/JsonColumn"
	customvalidator "github.com/jecitDev/jec-go-jsonfield/pkg/customValidator"
	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
)

// Table describes a keyed table holding one JSON column.
type Table struct {
	Name      string            `validate:"identifier"`
	KeyColumn string            `validate:"identifier"`
	Column    string            `validate:"identifier"`
	Field     *jsoncolumn.Field `validate:"required"`
}

var tableValidator = customvalidator.NewCustomValidator()

// Validate checks the table and column names are plain identifiers, since
// they are interpolated into statements.
func (t Table) Validate() error {
	return tableValidator.Validate(t)
}

// CreateTableSQL renders the DDL for t. The JSON column type follows the
// field's representation on d.
func (t Table) CreateTableSQL(d dialect.Dialect) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	colType, err := t.Field.RenderSchemaType(d)
	if err != nil {
		return "", err
	}
	q := t.quoted(d)
	columns := fmt.Sprintf("%s %s, %s %s NOT NULL UNIQUE, %s %s",
		d.QuoteIdentifier("id"), d.TypeDescriptor(dialect.TypeSerialKey),
		q.key, d.TypeDescriptor(dialect.TypeShortString),
		q.column, colType,
	)
	return d.CreateTableIfNotExists(t.Name, columns), nil
}

// quotedNames holds the table's identifiers quoted for one dialect.
type quotedNames struct {
	table, key, column string
}

func (t Table) quoted(d dialect.Dialect) quotedNames {
	return quotedNames{
		table:  d.QuoteIdentifier(t.Name),
		key:    d.QuoteIdentifier(t.KeyColumn),
		column: d.QuoteIdentifier(t.Column),
	}
}

func (q quotedNames) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", q.column, q.table, q.key)
}

func (q quotedNames) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", q.table, q.key, q.column)
}

func (q quotedNames) updateSQL() string {
	return fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", q.table, q.column, q.key)
}

func (q quotedNames) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", q.table, q.key)
}

func (q quotedNames) keysSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", q.key, q.table, q.key)
}
