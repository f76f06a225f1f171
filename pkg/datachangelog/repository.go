package datachangelog

import (
	"context"
	"time"
)

// Repository defines the interface for storing and retrieving column changes
type Repository interface {
	// Save persists a single change entry
	Save(ctx context.Context, change *ColumnChange) error

	// SaveBatch persists multiple change entries in a single operation
	SaveBatch(ctx context.Context, changes []ColumnChange) error

	// Query retrieves changes based on query parameters
	Query(ctx context.Context, query *ChangeLogQuery) (*ChangeLogQueryResult, error)

	// Close closes the repository connection/resources
	Close() error

	// Health checks if the repository is healthy and accessible
	Health(ctx context.Context) error
}

// BatchWriterStatus represents the current status of a batch writer
type BatchWriterStatus struct {
	IsRunning      bool
	QueueSize      int
	ProcessedCount int64
	FailedCount    int64
	LastFlushTime  time.Time
}
