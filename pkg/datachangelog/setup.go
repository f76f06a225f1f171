package datachangelog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// SetupRepository builds the change log sink described by config.
//
// With Elasticsearch disabled the in-memory repository is used. When the
// cluster cannot be reached or fails its health check the setup logs a
// warning and falls back to the in-memory repository as well, so a missing
// log cluster never blocks database writes.
func SetupRepository(config *Config, logger *zap.Logger) (Repository, error) {
	if config == nil {
		return nil, fmt.Errorf("change log config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if !config.Elasticsearch.Enabled {
		logger.Info("elasticsearch change log disabled, using in-memory repository")
		return NewMemoryRepository(), nil
	}

	// NewElasticsearchRepository already runs the health check.
	esRepo, err := NewElasticsearchRepository(&config.Elasticsearch, logger)
	if err != nil {
		logger.Warn("elasticsearch change log unavailable, using in-memory repository", zap.Error(err))
		return NewMemoryRepository(), nil
	}

	logger.Info("elasticsearch change log connected", zap.Strings("addresses", config.Elasticsearch.Addresses))
	return esRepo, nil
}

// SetupRecorder loads a change log YAML file and returns a recorder wired
// to the configured repository.
//
// Example:
//
//	recorder, err := datachangelog.SetupRecorder("config/changelog.yaml", logger)
//	if err != nil {
//		log.Fatalf("failed to setup change log: %v", err)
//	}
//	defer recorder.Close()
func SetupRecorder(configFilePath string, logger *zap.Logger) (*Recorder, error) {
	configYAML, err := loadAndProcessConfigYAML(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load change log config: %w", err)
	}

	config, err := LoadConfig(configYAML)
	if err != nil {
		return nil, err
	}

	repo, err := SetupRepository(config, logger)
	if err != nil {
		return nil, err
	}
	return NewRecorder(config, repo, logger), nil
}

// loadAndProcessConfigYAML loads the configuration file and substitutes
// ${VAR} environment references.
func loadAndProcessConfigYAML(configFilePath string) ([]byte, error) {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
	}
	return []byte(os.ExpandEnv(string(data))), nil
}
