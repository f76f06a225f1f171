package datachangelog

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete change log configuration
type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Tables        []TableConfig       `yaml:"tables"`
	Global        GlobalConfig        `yaml:"global"`
}

// GlobalConfig represents global settings for change logging
type GlobalConfig struct {
	Enabled           bool     `yaml:"enabled"`
	ExcludedFields    []string `yaml:"excluded_fields"`     // Document keys to exclude from all tables
	SensitiveFields   []string `yaml:"sensitive_fields"`    // Document keys to redact in all tables
	IncludeBeforeData bool     `yaml:"include_before_data"` // Include full before snapshot
	IncludeAfterData  bool     `yaml:"include_after_data"`  // Include full after snapshot
}

// TableConfig represents change log configuration for one JSON column
type TableConfig struct {
	Table           string            `yaml:"table"`
	Column          string            `yaml:"column"`
	Enabled         bool              `yaml:"enabled"`
	Operations      []string          `yaml:"operations"` // Operations to log: INSERT, UPDATE, DELETE
	ExcludedFields  []string          `yaml:"excluded_fields"`
	SensitiveFields []string          `yaml:"sensitive_fields"`
	Metadata        map[string]string `yaml:"metadata"` // Custom metadata to include
}

// ElasticsearchConfig represents Elasticsearch connection and behavior configuration
type ElasticsearchConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Addresses          []string      `yaml:"addresses"` // e.g., ["https://localhost:9200"]
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	APIKey             string        `yaml:"api_key"` // Alternative to username/password
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	IndexPrefix        string        `yaml:"index_prefix"`  // e.g., "json-column-log"
	IndexPattern       string        `yaml:"index_pattern"` // e.g., "{prefix}-{table}-{yyyy.MM}"
	NumWorkers         int           `yaml:"num_workers"`   // Number of async workers
	BulkSize           int           `yaml:"bulk_size"`     // Batch size for bulk operations
	MaxRetries         int           `yaml:"max_retries"`
	FlushInterval      time.Duration `yaml:"flush_interval"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// LoadConfig loads change log configuration from YAML
func LoadConfig(configYAML []byte) (*Config, error) {
	var cfg Config

	err := yaml.Unmarshal(configYAML, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse change log config: %w", err)
	}

	cfg.SetDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid change log config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults fills zero values with sensible defaults
func (c *Config) SetDefaults() {
	if c.Elasticsearch.NumWorkers == 0 {
		c.Elasticsearch.NumWorkers = 2
	}
	if c.Elasticsearch.BulkSize == 0 {
		c.Elasticsearch.BulkSize = 100
	}
	if c.Elasticsearch.MaxRetries == 0 {
		c.Elasticsearch.MaxRetries = 3
	}
	if c.Elasticsearch.FlushInterval == 0 {
		c.Elasticsearch.FlushInterval = 2 * time.Second
	}
	if c.Elasticsearch.RequestTimeout == 0 {
		c.Elasticsearch.RequestTimeout = 10 * time.Second
	}
	if c.Elasticsearch.IndexPrefix == "" {
		c.Elasticsearch.IndexPrefix = "json-column-log"
	}
	if c.Elasticsearch.IndexPattern == "" {
		c.Elasticsearch.IndexPattern = "{prefix}-{table}-{yyyy}.{MM}"
	}

	for i := range c.Tables {
		if len(c.Tables[i].Operations) == 0 {
			c.Tables[i].Operations = []string{OperationInsert, OperationUpdate, OperationDelete}
		}
	}
}

// Validate performs validation checks on the configuration
func (c *Config) Validate() error {
	for _, table := range c.Tables {
		if table.Table == "" {
			return fmt.Errorf("table name must be specified for all tables")
		}
		if table.Column == "" {
			return fmt.Errorf("column must be specified for table %s", table.Table)
		}
		for _, op := range table.Operations {
			switch strings.ToUpper(op) {
			case OperationInsert, OperationUpdate, OperationDelete:
			default:
				return fmt.Errorf("unknown operation %q for table %s", op, table.Table)
			}
		}
	}

	if !c.Elasticsearch.Enabled {
		return nil // Elasticsearch not configured, changes go to the in-memory repository
	}

	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch addresses must be specified")
	}

	if c.Elasticsearch.Username == "" && c.Elasticsearch.APIKey == "" {
		return fmt.Errorf("elasticsearch authentication required: username/password or api_key")
	}

	return nil
}

// GetTable retrieves table configuration by table and column name
func (c *Config) GetTable(table, column string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].Table == table && c.Tables[i].Column == column {
			return &c.Tables[i]
		}
	}
	return nil
}

// IsOperationEnabled checks if a specific operation is logged for a column.
// Columns without a table entry follow the global switch.
func (c *Config) IsOperationEnabled(table, column, operation string) bool {
	if !c.Global.Enabled {
		return false
	}

	tableCfg := c.GetTable(table, column)
	if tableCfg == nil {
		return true
	}
	if !tableCfg.Enabled {
		return false
	}

	for _, op := range tableCfg.Operations {
		if strings.EqualFold(op, operation) {
			return true
		}
	}

	return false
}

// GetIndexName generates the Elasticsearch index name for a given table and date
func (c *Config) GetIndexName(table string, timestamp time.Time) string {
	return indexName(c.Elasticsearch.IndexPattern, c.Elasticsearch.IndexPrefix, table, timestamp)
}

func indexName(pattern, prefix, table string, timestamp time.Time) string {
	r := strings.NewReplacer(
		"{prefix}", prefix,
		"{table}", strings.ToLower(table),
		"{yyyy}", fmt.Sprintf("%04d", timestamp.Year()),
		"{MM}", fmt.Sprintf("%02d", timestamp.Month()),
		"{dd}", fmt.Sprintf("%02d", timestamp.Day()),
	)
	return r.Replace(pattern)
}

// MergeTableConfig merges global settings with table specific settings
func (c *Config) MergeTableConfig(table, column string) *MergedTableConfig {
	merged := &MergedTableConfig{
		Table:             table,
		Column:            column,
		ExcludedFields:    append([]string{}, c.Global.ExcludedFields...),
		SensitiveFields:   append([]string{}, c.Global.SensitiveFields...),
		IncludeBeforeData: c.Global.IncludeBeforeData,
		IncludeAfterData:  c.Global.IncludeAfterData,
	}

	if tableCfg := c.GetTable(table, column); tableCfg != nil {
		merged.ExcludedFields = append(merged.ExcludedFields, tableCfg.ExcludedFields...)
		merged.SensitiveFields = append(merged.SensitiveFields, tableCfg.SensitiveFields...)
		merged.Metadata = tableCfg.Metadata
	}

	return merged
}

// MergedTableConfig represents table configuration with merged global settings
type MergedTableConfig struct {
	Table             string
	Column            string
	ExcludedFields    []string
	SensitiveFields   []string
	IncludeBeforeData bool
	IncludeAfterData  bool
	Metadata          map[string]string
}
