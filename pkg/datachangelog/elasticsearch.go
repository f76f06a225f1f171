package datachangelog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBulkWriterStopped = errors.New("bulk writer is stopped")
	ErrBulkQueueFull     = errors.New("bulk writer queue is full")
)

// ElasticsearchRepository stores column changes in Elasticsearch, one index
// per table and month.
type ElasticsearchRepository struct {
	client     *elasticsearch.Client
	config     *ElasticsearchConfig
	bulkWriter *BulkIndexWriter
	logger     *zap.Logger
}

// BulkIndexWriter handles asynchronous bulk indexing of column changes
type BulkIndexWriter struct {
	repo          *ElasticsearchRepository
	queue         chan *ColumnChange
	batchSize     int
	flushInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	mutex         sync.Mutex
	status        BatchWriterStatus
}

// NewElasticsearchRepository creates a repository and checks the cluster is
// reachable.
//
// Example:
//
//	repo, err := NewElasticsearchRepository(&ElasticsearchConfig{
//		Addresses:   []string{"https://localhost:9200"},
//		Username:    "elastic",
//		Password:    "password",
//		IndexPrefix: "json-column-log",
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer repo.Close()
func NewElasticsearchRepository(config *ElasticsearchConfig, logger *zap.Logger) (*ElasticsearchRepository, error) {
	if config == nil {
		return nil, fmt.Errorf("elasticsearch config cannot be nil")
	}
	if len(config.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses must be specified")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	escfg := elasticsearch.Config{
		Addresses:  config.Addresses,
		Username:   config.Username,
		Password:   config.Password,
		APIKey:     config.APIKey,
		MaxRetries: config.MaxRetries,
	}
	if config.InsecureSkipVerify {
		escfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := elasticsearch.NewClient(escfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	repo := &ElasticsearchRepository{
		client: client,
		config: config,
		logger: logger.Named("changelog.elasticsearch"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout(config))
	defer cancel()
	if err := repo.Health(ctx); err != nil {
		return nil, err
	}

	if config.NumWorkers > 0 && config.BulkSize > 0 {
		repo.bulkWriter = NewBulkIndexWriter(repo, config.BulkSize, config.FlushInterval)
		repo.bulkWriter.Start(config.NumWorkers)
	}

	return repo, nil
}

// Save queues the change on the bulk writer when it runs. It indexes the
// change directly when there is no writer or the writer cannot take it.
func (r *ElasticsearchRepository) Save(ctx context.Context, change *ColumnChange) error {
	if change == nil {
		return fmt.Errorf("change cannot be nil")
	}
	if change.ID == "" {
		change.ID = uuid.New().String()
	}

	if r.bulkWriter != nil {
		queued := *change
		err := r.bulkWriter.Write(&queued)
		if err == nil {
			return nil
		}
		r.logger.Debug("bulk writer unavailable, indexing directly",
			zap.String("id", change.ID), zap.Error(err))
	}

	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change to JSON: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      r.indexName(change.Table, change.ChangeTime),
		DocumentID: change.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}

	r.logger.Debug("change indexed",
		zap.String("id", change.ID),
		zap.String("table", change.Table),
		zap.String("key", change.Key),
	)
	return nil
}

// SaveBatch queues changes on the bulk writer when it runs, otherwise
// writes them with one bulk request.
func (r *ElasticsearchRepository) SaveBatch(ctx context.Context, changes []ColumnChange) error {
	if len(changes) == 0 {
		return nil
	}

	for i := range changes {
		if changes[i].ID == "" {
			changes[i].ID = uuid.New().String()
		}
	}

	if r.bulkWriter != nil {
		for i := range changes {
			queued := changes[i]
			if err := r.bulkWriter.Write(&queued); err != nil {
				r.logger.Debug("bulk writer unavailable, indexing rest directly",
					zap.Int("count", len(changes)-i), zap.Error(err))
				return r.saveBatchDirect(ctx, changes[i:])
			}
		}
		return nil
	}

	return r.saveBatchDirect(ctx, changes)
}

// saveBatchDirect synchronously saves multiple changes using the bulk API
func (r *ElasticsearchRepository) saveBatchDirect(ctx context.Context, changes []ColumnChange) error {
	var buf bytes.Buffer

	for i := range changes {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": r.indexName(changes[i].Table, changes[i].ChangeTime),
				"_id":    changes[i].ID,
			},
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal bulk metadata: %w", err)
		}
		docBytes, err := json.Marshal(changes[i])
		if err != nil {
			return fmt.Errorf("failed to marshal change %s: %w", changes[i].ID, err)
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Body: &buf}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("failed to parse bulk response: %w", err)
	}
	if bulkRes.Errors {
		return fmt.Errorf("bulk request had errors, check Elasticsearch logs for details")
	}

	return nil
}

// Query retrieves changes based on query parameters
func (r *ElasticsearchRepository) Query(ctx context.Context, query *ChangeLogQuery) (*ChangeLogQueryResult, error) {
	if query == nil {
		query = &ChangeLogQuery{}
	}
	if query.Limit == 0 {
		query.Limit = 100
	}

	searchBody, err := json.Marshal(buildQuery(query))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	searchPattern := fmt.Sprintf("%s-*", r.config.IndexPrefix)
	if query.Table != "" {
		searchPattern = fmt.Sprintf("%s-%s-*", r.config.IndexPrefix, query.Table)
	}

	req := esapi.SearchRequest{
		Index: []string{searchPattern},
		Body:  bytes.NewReader(searchBody),
		Size:  &query.Limit,
		From:  &query.Offset,
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}

	var esRes searchResponse
	if err := json.NewDecoder(res.Body).Decode(&esRes); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	result := &ChangeLogQueryResult{
		Total:   esRes.Hits.Total.Value,
		Limit:   query.Limit,
		Offset:  query.Offset,
		Records: make([]ColumnChange, 0, len(esRes.Hits.Hits)),
	}
	for _, hit := range esRes.Hits.Hits {
		result.Records = append(result.Records, hit.Source)
	}
	return result, nil
}

// Close stops the bulk writer, flushing queued changes
func (r *ElasticsearchRepository) Close() error {
	if r.bulkWriter != nil {
		return r.bulkWriter.Close()
	}
	return nil
}

// Health checks if the cluster is reachable
func (r *ElasticsearchRepository) Health(ctx context.Context) error {
	res, err := r.client.Info(r.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch health check failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch health check error, status code: %d", res.StatusCode)
	}
	return nil
}

func (r *ElasticsearchRepository) indexName(table string, timestamp time.Time) string {
	return indexName(r.config.IndexPattern, r.config.IndexPrefix, table, timestamp)
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source ColumnChange `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// buildQuery constructs an Elasticsearch query from ChangeLogQuery parameters
func buildQuery(q *ChangeLogQuery) map[string]interface{} {
	must := []map[string]interface{}{}

	terms := []struct{ field, value string }{
		{"table.keyword", q.Table},
		{"column.keyword", q.Column},
		{"key.keyword", q.Key},
		{"operation.keyword", q.Operation},
	}
	for _, t := range terms {
		if t.value == "" {
			continue
		}
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{t.field: t.value},
		})
	}

	if !q.StartDate.IsZero() || !q.EndDate.IsZero() {
		rangeQuery := map[string]interface{}{}
		if !q.StartDate.IsZero() {
			rangeQuery["gte"] = q.StartDate.UTC()
		}
		if !q.EndDate.IsZero() {
			rangeQuery["lte"] = q.EndDate.UTC()
		}
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"change_timestamp": rangeQuery},
		})
	}

	query := map[string]interface{}{
		"sort": []map[string]interface{}{
			{"change_timestamp": map[string]interface{}{"order": "asc"}},
		},
	}
	if len(must) == 0 {
		query["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
		return query
	}
	query["query"] = map[string]interface{}{
		"bool": map[string]interface{}{"must": must},
	}
	return query
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("elasticsearch returned error: %s: %s", res.Status(), string(body))
}

func requestTimeout(config *ElasticsearchConfig) time.Duration {
	if config.RequestTimeout > 0 {
		return config.RequestTimeout
	}
	return 10 * time.Second
}

// NewBulkIndexWriter creates a new bulk index writer
func NewBulkIndexWriter(repo *ElasticsearchRepository, batchSize int, flushInterval time.Duration) *BulkIndexWriter {
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &BulkIndexWriter{
		repo:          repo,
		queue:         make(chan *ColumnChange, batchSize*2),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start starts the bulk writer workers
func (b *BulkIndexWriter) Start(numWorkers int) {
	b.updateStatus(func() { b.status.IsRunning = true })

	for i := 0; i < numWorkers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// worker processes changes from the queue and performs bulk writes
func (b *BulkIndexWriter) worker() {
	defer b.wg.Done()

	batch := make([]ColumnChange, 0, b.batchSize)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout(b.repo.config))
		err := b.repo.saveBatchDirect(ctx, batch)
		cancel()

		b.updateStatus(func() {
			if err != nil {
				b.status.FailedCount += int64(len(batch))
			} else {
				b.status.ProcessedCount += int64(len(batch))
			}
			b.status.LastFlushTime = time.Now()
			b.status.QueueSize = len(b.queue)
		})
		if err != nil {
			b.repo.logger.Error("bulk write failed", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]ColumnChange, 0, b.batchSize)
	}

	for {
		select {
		case <-b.stopChan:
			// Drain what is left in the queue before stopping.
			for {
				select {
				case change := <-b.queue:
					batch = append(batch, *change)
				default:
					flush()
					return
				}
			}

		case change := <-b.queue:
			batch = append(batch, *change)
			if len(batch) >= b.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// Write queues a change for batch writing. It never blocks: a full queue
// returns ErrBulkQueueFull.
func (b *BulkIndexWriter) Write(change *ColumnChange) error {
	// The running check and the send share the lock Close takes, so no
	// change is queued after the workers drained.
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.status.IsRunning {
		return ErrBulkWriterStopped
	}
	select {
	case b.queue <- change:
		b.status.QueueSize = len(b.queue)
		return nil
	default:
		return ErrBulkQueueFull
	}
}

// Close gracefully closes the writer, flushing pending changes
func (b *BulkIndexWriter) Close() error {
	b.updateStatus(func() { b.status.IsRunning = false })
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return nil
}

// Status returns the current status of the writer
func (b *BulkIndexWriter) Status() BatchWriterStatus {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.status
}

// IsRunning returns whether the bulk writer is running
func (b *BulkIndexWriter) IsRunning() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.status.IsRunning
}

func (b *BulkIndexWriter) updateStatus(fn func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	fn()
}
