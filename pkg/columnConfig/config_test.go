package columnconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsoncolumn "github.com/jecitDev/jec-go-jsonfield/pkg/JsonColumn"
	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
	redisconnect "github.com/jecitDev/jec-go-jsonfield/pkg/redisConnect"
)

const sampleConfig = `
database:
  driver: postgres
  host: localhost
  port: "5432"
  user: app
  password: secret
  dbname: app
redis:
  host: localhost
  port: "6379"
  prefix: app
  ttl: 5m
changelog:
  global:
    enabled: true
    sensitive_fields: [password]
  tables:
    - table: accounts
      column: settings
      operations: [UPDATE]
columns:
  - table: accounts
    column: settings
    json_type: jsonb
    mutable: true
  - table: orders
    key_column: order_no
    column: items
    codec: go-json
    enforce_string: true
    enforce_unicode: true
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.DriverName())
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "json-column-log", cfg.ChangeLog.Elasticsearch.IndexPrefix)
	require.Len(t, cfg.Columns, 2)

	accounts := cfg.Columns[0]
	assert.Equal(t, "accounts.settings", accounts.Name())
	table, err := accounts.StoreTable()
	require.NoError(t, err)
	assert.Equal(t, "key", table.KeyColumn)
	assert.True(t, table.Field.IsMutable())
	assert.Equal(t, dialect.TypeJSONB, table.Field.JSONType())

	orders, err := cfg.Columns[1].StoreTable()
	require.NoError(t, err)
	assert.Equal(t, "order_no", orders.KeyColumn)
	assert.Equal(t, "go-json", orders.Field.Codec().Name())
	assert.True(t, orders.Field.EnforceString())
	assert.True(t, orders.Field.EnforceUnicode())
	assert.False(t, orders.Field.IsMutable())
}

func TestLoadConfigRedisDefaultTTL(t *testing.T) {
	doc := strings.Replace(sampleConfig, "  ttl: 5m\n", "", 1)
	cfg, err := LoadConfig([]byte(doc))
	require.NoError(t, err)
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, redisconnect.DefaultTTL, cfg.Redis.TTL)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Malformed", "columns: ["},
		{"NoColumns", "database: {dsn: x}\n"},
		{"BadIdentifier", "database: {dsn: x}\ncolumns:\n  - {table: \"a b\", column: c}\n"},
		{"UnknownCodec", "database: {dsn: x}\ncolumns:\n  - {table: a, column: c, codec: yaml}\n"},
		{"UnknownJSONType", "database: {dsn: x}\ncolumns:\n  - {table: a, column: c, json_type: xml}\n"},
		{"UnknownDriver", "database: {dsn: x, driver: oracle}\ncolumns:\n  - {table: a, column: c}\n"},
		{"MissingHost", "database: {dbname: x}\ncolumns:\n  - {table: a, column: c}\n"},
		{"Duplicate", "database: {dsn: x}\ncolumns:\n  - {table: a, column: c}\n  - {table: a, column: c}\n"},
		{"BadOperation", "database: {dsn: x}\nchangelog:\n  tables:\n    - {table: a, column: c, operations: [UPSERT]}\ncolumns:\n  - {table: a, column: c}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("JSONCOL_DSN", "postgres://app@db/app")
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dsn: ${JSONCOL_DSN}\ncolumns:\n  - {table: a, column: c}\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db/app", cfg.Database.DataSource())
	assert.Nil(t, cfg.Redis)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewStores(t *testing.T) {
	cfg, err := LoadConfig([]byte(sampleConfig))
	require.NoError(t, err)

	// sql.Open does not connect, and building stores issues no queries.
	db, err := sqlx.Open("postgres", "host=localhost")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	stores, err := NewStores(db, dialect.Postgres{}, cfg.Columns)
	require.NoError(t, err)
	require.Len(t, stores, 2)

	rt := &Runtime{Stores: stores}
	accounts, ok := rt.Store("accounts", "settings")
	require.True(t, ok)
	rep, err := accounts.Table().Field.Representation(accounts.Dialect())
	require.NoError(t, err)
	assert.Equal(t, jsoncolumn.NativeJSON, rep)

	literal, err := accounts.InsertLiteral("k", mutable.NewDict(map[string]any{"a": "b"}))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "accounts" ("key", "settings") VALUES ('k', '{"a":"b"}')`, literal)

	orders, ok := rt.Store("orders", "items")
	require.True(t, ok)
	ddl, err := orders.Table().CreateTableSQL(orders.Dialect())
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "orders" ("id" SERIAL PRIMARY KEY, "order_no" VARCHAR(64) NOT NULL UNIQUE, "items" TEXT)`, ddl)

	_, ok = rt.Store("orders", "missing")
	assert.False(t, ok)
	assert.NoError(t, rt.Close())
}
