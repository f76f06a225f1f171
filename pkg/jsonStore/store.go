// Package jsonstore reads and writes a keyed table with one JSON column
// through sqlx. It plays the host role for the column type: it renders the
// schema, binds values per dialect, and writes back mutable documents that
// changed in place.
package jsonstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	jsoncolumn "github.com/jecitDev/jec-go-jsonfield/pkg/JsonColumn"
	"github.com/jecitDev/jec-go-jsonfield/pkg/datachangelog"
	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
	patchtools "github.com/jecitDev/jec-go-jsonfield/pkg/patchTools"
)

var (
	// ErrNotFound is returned when no row has the requested key.
	ErrNotFound = errors.New("jsonstore: record not found")
	// ErrNotObject is returned by Patch when the stored value is not a JSON
	// object.
	ErrNotObject = errors.New("jsonstore: value is not an object")
)

// Cache holds the JSON text of column values by key. Cache failures are
// logged and never fail a read or write.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
	Delete(ctx context.Context, key string) error
}

// Record is one row. Value is a *mutable.Dict when the field is mutable and
// the stored document is an object.
type Record struct {
	Key   string
	Value any
}

// Dict returns the tracked document, or nil when Value is not one.
func (r *Record) Dict() *mutable.Dict {
	d, _ := r.Value.(*mutable.Dict)
	return d
}

type Store struct {
	db       *sqlx.DB
	dialect  dialect.Dialect
	table    Table
	names    quotedNames
	binding  jsoncolumn.Binding
	rep      jsoncolumn.Representation
	logger   *zap.Logger
	recorder *datachangelog.Recorder
	cache    Cache
	// invalidations counts cache deletes; a fill whose load raced one is
	// dropped.
	invalidations atomic.Uint64
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder logs every write to the change log.
func WithRecorder(r *datachangelog.Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

func NewStore(db *sqlx.DB, d dialect.Dialect, table Table, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("jsonstore: nil db")
	}
	if d == nil {
		return nil, fmt.Errorf("jsonstore: nil dialect")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	// Resolve the representation once so a failing probe surfaces here.
	rep, err := table.Field.Representation(d)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: d,
		table:   table,
		names:   table.quoted(d),
		binding: table.Field.Bind(d),
		rep:     rep,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(
		zap.String("table", table.Name),
		zap.String("column", table.Column),
		zap.String("dialect", d.Name()),
	)
	s.logger.Debug("json store ready", zap.Stringer("representation", rep))
	return s, nil
}

func (s *Store) Table() Table                { return s.table }
func (s *Store) Dialect() dialect.Dialect    { return s.dialect }
func (s *Store) Binding() jsoncolumn.Binding { return s.binding }

func (s *Store) rebind(query string) string {
	return sqlx.Rebind(s.dialect.BindType(), query)
}

// CreateTable creates the table if it does not exist.
func (s *Store) CreateTable(ctx context.Context) error {
	ddl, err := s.table.CreateTableSQL(s.dialect)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("jsonstore: create table %s: %w", s.table.Name, err)
	}
	s.logger.Info("table created", zap.String("ddl", ddl))
	return nil
}

// Insert adds a row. Encoding errors are returned unwrapped, as
// *jsoncolumn.SerializationError.
func (s *Store) Insert(ctx context.Context, key string, value any) error {
	dv, err := s.binding.Value(value)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(s.names.insertSQL()), key, dv); err != nil {
		return s.wrapExecErr("insert", key, err)
	}
	s.afterWrite(ctx, datachangelog.Write{Key: key, Operation: datachangelog.OperationInsert, After: value})
	return nil
}

// Update replaces the value of an existing row.
func (s *Store) Update(ctx context.Context, key string, value any) error {
	var before any
	if s.recorder != nil {
		prev, err := s.load(ctx, key)
		if err != nil {
			return err
		}
		before = prev
	}
	if err := s.update(ctx, key, value); err != nil {
		return err
	}
	s.afterWrite(ctx, datachangelog.Write{Key: key, Operation: datachangelog.OperationUpdate, Before: before, After: value})
	return nil
}

// Put updates the row for key, inserting it when missing.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	prev, err := s.load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return s.Insert(ctx, key, value)
	}
	if err != nil {
		return err
	}
	if err := s.update(ctx, key, value); err != nil {
		return err
	}
	s.afterWrite(ctx, datachangelog.Write{Key: key, Operation: datachangelog.OperationUpdate, Before: prev, After: value})
	return nil
}

// Get reads a row, from the cache when it holds the key.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	if v, ok := s.fromCache(ctx, key); ok {
		return &Record{Key: key, Value: v}, nil
	}

	gen := s.invalidations.Load()
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, key, v, gen)
	return &Record{Key: key, Value: v}, nil
}

// Flush writes back a record whose tracked document changed in place and
// marks it clean. It reports whether a write happened.
func (s *Store) Flush(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, nil
	}
	dict := rec.Dict()
	if dict == nil || !dict.Changed() {
		return false, nil
	}

	tracked := dict.Changes()
	before := dict.Snapshot()
	if err := s.update(ctx, rec.Key, dict); err != nil {
		return false, err
	}
	dict.MarkClean()

	s.afterWrite(ctx, datachangelog.Write{
		Key:       rec.Key,
		Operation: datachangelog.OperationUpdate,
		Before:    before,
		After:     dict,
		Tracked:   tracked,
	})
	return true, nil
}

// Patch applies field assignments to the object stored under key and writes
// it back. A NULL column is patched as an empty object.
func (s *Store) Patch(ctx context.Context, key string, patch []patchtools.Data) (*Record, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	var dict *mutable.Dict
	switch doc := v.(type) {
	case *mutable.Dict:
		dict = doc
	case map[string]any:
		dict = mutable.NewDict(doc)
	case nil:
		dict = mutable.NewDict(nil)
	default:
		return nil, fmt.Errorf("%w: %s holds %T", ErrNotObject, key, v)
	}
	if err := patchtools.Apply(dict, patch); err != nil {
		return nil, fmt.Errorf("jsonstore: patch %s: %w", key, err)
	}

	rec := &Record{Key: key, Value: dict}
	if _, err := s.Flush(ctx, rec); err != nil {
		return nil, err
	}
	if !s.table.Field.IsMutable() {
		rec.Value = dict.Map()
	}
	return rec, nil
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	var before any
	if s.recorder != nil {
		prev, err := s.load(ctx, key)
		if err != nil {
			return err
		}
		before = prev
	}

	res, err := s.db.ExecContext(ctx, s.rebind(s.names.deleteSQL()), key)
	if err != nil {
		return s.wrapExecErr("delete", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.afterWrite(ctx, datachangelog.Write{Key: key, Operation: datachangelog.OperationDelete, Before: before})
	return nil
}

// Keys lists every key in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, s.rebind(s.names.keysSQL())); err != nil {
		return nil, fmt.Errorf("jsonstore: list keys: %w", err)
	}
	return keys, nil
}

// InsertLiteral renders an INSERT with the value inlined as a SQL literal
// instead of a bound parameter, for scripts and migrations.
func (s *Store) InsertLiteral(key string, value any) (string, error) {
	lit, err := s.binding.Literal(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		s.names.table, s.names.key, s.names.column,
		s.dialect.QuoteLiteral(key), lit,
	), nil
}

func (s *Store) load(ctx context.Context, key string) (any, error) {
	var v any
	row := s.db.QueryRowxContext(ctx, s.rebind(s.names.selectSQL()), key)
	if err := row.Scan(s.binding.Dest(&v)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, s.wrapScanErr(key, err)
	}
	return v, nil
}

func (s *Store) update(ctx context.Context, key string, value any) error {
	dv, err := s.binding.Value(value)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(s.names.updateSQL()), dv, key)
	if err != nil {
		return s.wrapExecErr("update", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (s *Store) wrapExecErr(op, key string, err error) error {
	s.logger.Error("write failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return fmt.Errorf("jsonstore: %s %s: %w", op, key, err)
}

func (s *Store) wrapScanErr(key string, err error) error {
	s.logger.Error("read failed", zap.String("key", key), zap.Error(err))
	return fmt.Errorf("jsonstore: get %s: %w", key, err)
}

func (s *Store) afterWrite(ctx context.Context, w datachangelog.Write) {
	if s.cache != nil {
		s.invalidations.Add(1)
		if err := s.cache.Delete(ctx, s.cacheKey(w.Key)); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", w.Key), zap.Error(err))
		}
	}

	s.logger.Debug("row written", zap.String("op", w.Operation), zap.String("key", w.Key))
	if s.recorder == nil {
		return
	}

	w.Table = s.table.Name
	w.Column = s.table.Column
	w.Representation = s.rep.String()
	if _, err := s.recorder.Record(ctx, w); err != nil {
		s.logger.Warn("change log write failed", zap.String("key", w.Key), zap.Error(err))
	}
}

func (s *Store) cacheKey(key string) string {
	return s.table.Name + "." + s.table.Column + ":" + key
}

func (s *Store) fromCache(ctx context.Context, key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	text, ok, err := s.cache.Get(ctx, s.cacheKey(key))
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	v, err := s.table.Field.Codec().Decode(text)
	if err != nil {
		s.logger.Warn("cached value is not valid json", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if s.table.Field.IsMutable() {
		v = mutable.Wrap(v)
	}
	return v, true
}

// toCache stores v unless a write invalidated the cache after gen was
// taken, since v may predate that write.
func (s *Store) toCache(ctx context.Context, key string, v any, gen uint64) {
	if s.cache == nil || s.invalidations.Load() != gen {
		return
	}
	f := s.table.Field
	text, err := f.Codec().Encode(mutable.Unwrap(v), !f.EnforceUnicode())
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(key), text); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	// An invalidation between the check and Set may have run before the
	// entry existed.
	if s.invalidations.Load() != gen {
		if err := s.cache.Delete(ctx, s.cacheKey(key)); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}
