package columnconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	jsoncolumn "github.com/jecitDev/jec-go-jsonfield/pkg/JsonColumn"
	customvalidator "github.com/jecitDev/jec-go-jsonfield/pkg/customValidator"
	"github.com/jecitDev/jec-go-jsonfield/pkg/datachangelog"
	dbconnect "github.com/jecitDev/jec-go-jsonfield/pkg/dbConnect"
	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
	jsonstore "github.com/jecitDev/jec-go-jsonfield/pkg/jsonStore"
	redisconnect "github.com/jecitDev/jec-go-jsonfield/pkg/redisConnect"
)

// Config is the whole column config file.
type Config struct {
	Database  dbconnect.Config     `yaml:"database"`
	Redis     *redisconnect.Config `yaml:"redis" validate:"omitempty"`
	ChangeLog datachangelog.Config `yaml:"changelog"`
	Columns   []ColumnConfig       `yaml:"columns" validate:"required,min=1,dive"`
}

// ColumnConfig declares one JSON column and the keyed table holding it.
type ColumnConfig struct {
	Table          string `yaml:"table" validate:"identifier"`
	KeyColumn      string `yaml:"key_column" validate:"omitempty,identifier"`
	Column         string `yaml:"column" validate:"identifier"`
	Codec          string `yaml:"codec" validate:"omitempty,codec"`
	EnforceString  bool   `yaml:"enforce_string"`
	EnforceUnicode bool   `yaml:"enforce_unicode"`
	JSONType       string `yaml:"json_type" validate:"jsontype"`
	Mutable        bool   `yaml:"mutable"`
}

const defaultKeyColumn = "key"

var configValidator = customvalidator.NewCustomValidator()

// Field builds the column type the entry describes.
func (c ColumnConfig) Field() (*jsoncolumn.Field, error) {
	codec := jsoncodec.Default
	if c.Codec != "" {
		var ok bool
		codec, ok = jsoncodec.ByName(c.Codec)
		if !ok {
			return nil, fmt.Errorf("column %s.%s: unknown codec %q", c.Table, c.Column, c.Codec)
		}
	}
	f := jsoncolumn.New(
		jsoncolumn.WithEnforceString(c.EnforceString),
		jsoncolumn.WithEnforceUnicode(c.EnforceUnicode),
		jsoncolumn.WithCodec(codec),
		jsoncolumn.WithJSONType(dialect.TypeRequest(c.JSONType)),
	)
	if c.Mutable {
		f = f.Mutable()
	}
	return f, nil
}

func (c ColumnConfig) StoreTable() (jsonstore.Table, error) {
	f, err := c.Field()
	if err != nil {
		return jsonstore.Table{}, err
	}
	key := c.KeyColumn
	if key == "" {
		key = defaultKeyColumn
	}
	return jsonstore.Table{Name: c.Table, KeyColumn: key, Column: c.Column, Field: f}, nil
}

// Name is the table.column label used as the store key.
func (c ColumnConfig) Name() string {
	return c.Table + "." + c.Column
}

// LoadConfig parses and validates a column config document.
func LoadConfig(configYAML []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(configYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse column config: %w", err)
	}

	cfg.ChangeLog.SetDefaults()
	if cfg.Redis != nil {
		cfg.Redis.SetDefaults()
	}
	if err := configValidator.Validate(cfg); err != nil {
		return nil, err
	}
	if err := cfg.ChangeLog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid change log config: %w", err)
	}

	seen := map[string]bool{}
	for _, col := range cfg.Columns {
		if seen[col.Name()] {
			return nil, fmt.Errorf("invalid config: column %s declared twice", col.Name())
		}
		seen[col.Name()] = true
	}
	return &cfg, nil
}

// LoadConfigFile reads path, expands ${VAR} references from the
// environment and loads the result.
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column config %s: %w", path, err)
	}
	return LoadConfig([]byte(os.ExpandEnv(string(raw))))
}
