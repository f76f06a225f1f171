package datachangelog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
)

func fixedClock(t *testing.T, ts time.Time) {
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

func TestMemoryRepositoryQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var batch []ColumnChange
	for i := 0; i < 5; i++ {
		batch = append(batch, ColumnChange{
			Table:      "accounts",
			Column:     "settings",
			Key:        fmt.Sprintf("k%d", i%2),
			Operation:  OperationUpdate,
			ChangeTime: base.Add(time.Duration(i) * time.Hour),
		})
	}
	require.NoError(t, repo.SaveBatch(ctx, batch))
	require.NoError(t, repo.Save(ctx, &ColumnChange{Table: "orders", Column: "items", Operation: OperationInsert, ChangeTime: base}))
	assert.Equal(t, 6, repo.Len())
	for _, c := range batch {
		assert.NotEmpty(t, c.ID)
	}

	res, err := repo.Query(ctx, &ChangeLogQuery{Table: "accounts", Key: "k0"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	require.Len(t, res.Records, 3)
	assert.True(t, res.Records[0].ChangeTime.Before(res.Records[1].ChangeTime))

	res, err = repo.Query(ctx, &ChangeLogQuery{Table: "accounts", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.Total)
	assert.Len(t, res.Records, 1)

	res, err = repo.Query(ctx, &ChangeLogQuery{StartDate: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = repo.Query(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 6, res.Total)

	require.NoError(t, repo.Health(ctx))
	require.NoError(t, repo.Close())
	assert.Error(t, repo.Health(ctx))
	assert.Error(t, repo.Save(ctx, &ColumnChange{}))
	assert.Error(t, repo.Save(ctx, nil))
}

func TestRecorderRecordsTrackedChanges(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, ts)

	cfg, err := LoadConfig([]byte(sampleConfig))
	require.NoError(t, err)
	repo := NewMemoryRepository()
	rec := NewRecorder(cfg, repo, zaptest.NewLogger(t))

	doc := mutable.NewDict(map[string]interface{}{"theme": "dark", "token": "abcdefghij", "updated_at": "x"})
	doc.Set("theme", "light")
	doc.Set("token", "0123456789")
	doc.Set("updated_at", "y")

	change, err := rec.Record(context.Background(), Write{
		Table:          "accounts",
		Column:         "settings",
		Key:            "acct-1",
		Operation:      OperationUpdate,
		Representation: "native_json",
		Before:         doc.Snapshot(),
		After:          doc,
		Tracked:        doc.Changes(),
	})
	require.NoError(t, err)
	require.NotNil(t, change)

	assert.NotEmpty(t, change.ID)
	assert.Equal(t, ts, change.ChangeTime)
	assert.Equal(t, []FieldDiff{
		{FieldName: "theme", FieldType: "string", Kind: KindModified, OldValue: "dark", NewValue: "light"},
		{FieldName: "token", FieldType: "string", Kind: KindModified, OldValue: "a********j", NewValue: "0********9", Sanitized: true},
	}, change.Changes)
	assert.Nil(t, change.BeforeData)
	assert.Equal(t, "0********9", change.AfterData["token"])
	assert.Equal(t, "billing", change.Metadata["team"])
	assert.Equal(t, 1, repo.Len())
}

func TestRecorderSkips(t *testing.T) {
	cfg, err := LoadConfig([]byte(sampleConfig))
	require.NoError(t, err)
	repo := NewMemoryRepository()
	rec := NewRecorder(cfg, repo, nil)
	ctx := context.Background()

	// INSERT is not logged for accounts.settings.
	change, err := rec.Record(ctx, Write{Table: "accounts", Column: "settings", Operation: OperationInsert, After: map[string]interface{}{"a": 1.0}})
	require.NoError(t, err)
	assert.Nil(t, change)

	// An update that changes nothing is not logged.
	same := map[string]interface{}{"a": 1.0}
	change, err = rec.Record(ctx, Write{Table: "orders", Column: "items", Operation: OperationUpdate, Before: same, After: same})
	require.NoError(t, err)
	assert.Nil(t, change)

	// Deletes are logged even without a diff body change.
	change, err = rec.Record(ctx, Write{Table: "orders", Column: "items", Operation: OperationDelete, Before: []interface{}{"item0"}})
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, KindRemoved, change.Changes[0].Kind)

	assert.Equal(t, 1, repo.Len())

	var nilRec *Recorder
	change, err = nilRec.Record(ctx, Write{Operation: OperationInsert})
	assert.NoError(t, err)
	assert.Nil(t, change)
	assert.NoError(t, nilRec.Close())
	assert.Nil(t, nilRec.Repository())
}

func TestRecorderDefaultConfig(t *testing.T) {
	repo := NewMemoryRepository()
	rec := NewRecorder(nil, repo, nil)

	change, err := rec.Record(context.Background(), Write{
		Table:     "orders",
		Column:    "items",
		Key:       "o1",
		Operation: OperationInsert,
		After:     []interface{}{"item0", "item1"},
	})
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, "$", change.Changes[0].FieldName)
	assert.Equal(t, KindAdded, change.Changes[0].Kind)
}
