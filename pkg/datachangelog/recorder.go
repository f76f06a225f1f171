package datachangelog

import (
	"context"

	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
	"go.uber.org/zap"
)

// Recorder turns writes to a JSON column into ColumnChange entries. A nil
// *Recorder records nothing.
type Recorder struct {
	config     *Config
	repository Repository
	logger     *zap.Logger
}

// NewRecorder creates a recorder. A nil config logs every operation of
// every column with no redaction.
func NewRecorder(config *Config, repository Repository, logger *zap.Logger) *Recorder {
	if config == nil {
		config = &Config{Global: GlobalConfig{Enabled: true}}
		config.SetDefaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		config:     config,
		repository: repository,
		logger:     logger.Named("changelog"),
	}
}

// Repository returns the sink changes are saved to.
func (r *Recorder) Repository() Repository {
	if r == nil {
		return nil
	}
	return r.repository
}

// Write describes one write to a JSON column.
type Write struct {
	Table          string
	Column         string
	Key            string
	Operation      string
	Representation string
	Before         interface{}
	After          interface{}
	// Tracked are the changes a mutable.Dict collected, used instead of
	// diffing Before and After when present.
	Tracked []mutable.Change
}

// Record builds and saves the change for w. It returns the saved entry, or
// nil when the operation is not logged or nothing changed.
func (r *Recorder) Record(ctx context.Context, w Write) (*ColumnChange, error) {
	if r == nil || r.repository == nil {
		return nil, nil
	}
	if !r.config.IsOperationEnabled(w.Table, w.Column, w.Operation) {
		return nil, nil
	}

	merged := r.config.MergeTableConfig(w.Table, w.Column)
	calc := NewDiffCalculator(merged.ExcludedFields)
	sanitizer := NewSanitizer(merged.SensitiveFields)

	var diffs []FieldDiff
	if len(w.Tracked) > 0 {
		diffs = calc.FromMutable(w.Tracked)
	} else {
		diffs = calc.DocumentDiff(w.Before, w.After)
	}
	if w.Operation == OperationUpdate && !CalculateDiffStats(diffs).HasSignificantChanges() {
		return nil, nil
	}

	change := &ColumnChange{
		Table:          w.Table,
		Column:         w.Column,
		Key:            w.Key,
		Operation:      w.Operation,
		Representation: w.Representation,
		Changes:        sanitizer.SanitizeFieldDiffs(diffs),
		ChangeTime:     now(),
	}
	if merged.IncludeBeforeData {
		change.BeforeData = snapshot(sanitizer, w.Before)
	}
	if merged.IncludeAfterData {
		change.AfterData = snapshot(sanitizer, w.After)
	}
	if len(merged.Metadata) > 0 {
		change.Metadata = make(map[string]interface{}, len(merged.Metadata))
		for k, v := range merged.Metadata {
			change.Metadata[k] = v
		}
	}

	if err := r.repository.Save(ctx, change); err != nil {
		return nil, err
	}

	r.logger.Debug("column change recorded",
		zap.String("table", w.Table),
		zap.String("column", w.Column),
		zap.String("key", w.Key),
		zap.String("operation", w.Operation),
		zap.Int("fields", len(change.Changes)),
	)
	return change, nil
}

// Close closes the underlying repository.
func (r *Recorder) Close() error {
	if r == nil || r.repository == nil {
		return nil
	}
	return r.repository.Close()
}

func snapshot(s *Sanitizer, v interface{}) map[string]interface{} {
	switch doc := mutable.Unwrap(v).(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return s.SanitizeMap(doc)
	default:
		return map[string]interface{}{"$": s.sanitizeNested(doc)}
	}
}
