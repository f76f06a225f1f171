package datachangelog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps changes in process. It backs tests and deployments
// without Elasticsearch.
type MemoryRepository struct {
	mu      sync.RWMutex
	changes map[string]*ColumnChange
	closed  bool
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		changes: make(map[string]*ColumnChange),
	}
}

// Save saves a single change
func (m *MemoryRepository) Save(ctx context.Context, change *ColumnChange) error {
	if change == nil {
		return fmt.Errorf("change cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("memory repository is closed")
	}
	if change.ID == "" {
		change.ID = uuid.New().String()
	}

	cp := *change
	m.changes[cp.ID] = &cp
	return nil
}

// SaveBatch saves multiple changes in a single operation
func (m *MemoryRepository) SaveBatch(ctx context.Context, changes []ColumnChange) error {
	for i := range changes {
		if err := m.Save(ctx, &changes[i]); err != nil {
			return err
		}
	}
	return nil
}

// Query retrieves changes ordered by time, then id
func (m *MemoryRepository) Query(ctx context.Context, query *ChangeLogQuery) (*ChangeLogQueryResult, error) {
	if query == nil {
		query = &ChangeLogQuery{}
	}

	m.mu.RLock()
	var results []ColumnChange
	for _, change := range m.changes {
		if matchesQuery(change, query) {
			results = append(results, *change)
		}
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if !results[i].ChangeTime.Equal(results[j].ChangeTime) {
			return results[i].ChangeTime.Before(results[j].ChangeTime)
		}
		return results[i].ID < results[j].ID
	})

	total := len(results)
	limit := query.Limit
	if limit == 0 {
		limit = 100
	}
	start := min(query.Offset, total)
	end := min(start+limit, total)

	return &ChangeLogQueryResult{
		Total:   int64(total),
		Limit:   limit,
		Offset:  query.Offset,
		Records: results[start:end],
	}, nil
}

// Len returns the number of stored changes
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.changes)
}

// Close closes the repository
func (m *MemoryRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Health reports an error once the repository is closed
func (m *MemoryRepository) Health(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("memory repository is closed")
	}
	return nil
}

func matchesQuery(change *ColumnChange, q *ChangeLogQuery) bool {
	if q.Table != "" && change.Table != q.Table {
		return false
	}
	if q.Column != "" && change.Column != q.Column {
		return false
	}
	if q.Key != "" && change.Key != q.Key {
		return false
	}
	if q.Operation != "" && change.Operation != q.Operation {
		return false
	}
	if !q.StartDate.IsZero() && change.ChangeTime.Before(q.StartDate) {
		return false
	}
	if !q.EndDate.IsZero() && change.ChangeTime.After(q.EndDate) {
		return false
	}
	return true
}

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*ElasticsearchRepository)(nil)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }
