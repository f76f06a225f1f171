package columnconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jecitDev/jec-go-jsonfield/pkg/datachangelog"
	dbconnect "github.com/jecitDev/jec-go-jsonfield/pkg/dbConnect"
	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	jsonstore "github.com/jecitDev/jec-go-jsonfield/pkg/jsonStore"
	redisconnect "github.com/jecitDev/jec-go-jsonfield/pkg/redisConnect"
)

// Runtime owns the connections opened for a Config and one store per
// configured column.
type Runtime struct {
	DB       *sqlx.DB
	Dialect  dialect.Dialect
	Redis    *redis.Client
	Recorder *datachangelog.Recorder
	Stores   map[string]*jsonstore.Store
}

// Open connects the database, the optional redis cache and the change log,
// then builds the stores. Redis and Elasticsearch failures only log a
// warning; the stores run without a cache or with the in-memory log.
func Open(cfg *Config, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("column config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, d, err := dbconnect.ConnectSqlx(cfg.Database)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{DB: db, Dialect: d}

	var cache jsonstore.Cache
	if cfg.Redis != nil {
		client, err := redisconnect.ConnectRedis(*cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			rt.Redis = client
			cache = redisconnect.NewJSONCache(client, cfg.Redis.Prefix, cfg.Redis.TTL)
		}
	}

	repo, err := datachangelog.SetupRepository(&cfg.ChangeLog, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Recorder = datachangelog.NewRecorder(&cfg.ChangeLog, repo, logger)

	rt.Stores, err = NewStores(db, d, cfg.Columns,
		jsonstore.WithLogger(logger),
		jsonstore.WithRecorder(rt.Recorder),
		jsonstore.WithCache(cache),
	)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	logger.Info("json columns ready",
		zap.String("dialect", d.Name()),
		zap.Int("columns", len(rt.Stores)),
		zap.Bool("cache", cache != nil),
	)
	return rt, nil
}

// NewStores builds one store per column, keyed by "table.column".
func NewStores(db *sqlx.DB, d dialect.Dialect, columns []ColumnConfig, opts ...jsonstore.Option) (map[string]*jsonstore.Store, error) {
	stores := make(map[string]*jsonstore.Store, len(columns))
	for _, col := range columns {
		table, err := col.StoreTable()
		if err != nil {
			return nil, err
		}
		s, err := jsonstore.NewStore(db, d, table, opts...)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		stores[col.Name()] = s
	}
	return stores, nil
}

// Store returns the store for table.column.
func (r *Runtime) Store(table, column string) (*jsonstore.Store, bool) {
	s, ok := r.Stores[table+"."+column]
	return s, ok
}

// CreateTables creates every configured table.
func (r *Runtime) CreateTables(ctx context.Context) error {
	for name, s := range r.Stores {
		if err := s.CreateTable(ctx); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
	}
	return nil
}

func (r *Runtime) Close() error {
	var errs []error
	if err := r.Recorder.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
