package jsoncolumn

import (
	"database/sql/driver"
)

// JsonColumn is a typed JSON column for struct fields scanned by sqlx.
// A zero Binding stores JSON text with the default codec.
//
//	type Order struct {
//		ID    int64                           `db:"id"`
//		Items jsoncolumn.JsonColumn[[]Item]   `db:"items"`
//	}
type JsonColumn[T any] struct {
	V       *T
	Binding Binding `db:"-" json:"-"`
}

// NewJsonColumn wraps v for a column bound to b.
func NewJsonColumn[T any](v *T, b Binding) JsonColumn[T] {
	return JsonColumn[T]{V: v, Binding: b}
}

func (j *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		j.V = nil
		return nil
	}
	j.V = new(T)
	return j.Binding.Into(j.V).Scan(src)
}

func (j JsonColumn[T]) Value() (driver.Value, error) {
	if j.V == nil {
		return nil, nil
	}
	return j.Binding.Value(*j.V)
}

func (j *JsonColumn[T]) Get() *T {
	return j.V
}
