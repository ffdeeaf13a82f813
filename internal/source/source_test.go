package source_test

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/source"
)

func discardLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func openSourceDB(t *testing.T) datastore.Manager {
	t.Helper()
	mgr, err := datastore.Open(&datastore.Config{
		Name:    "source",
		DataDir: t.TempDir(),
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())
	return mgr
}

func TestIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := source.FormatID("SalesOrder", 12, 3)
	assert.Equal(t, "SalesOrder-12-3", id)

	kind, key, err := source.ParseID(id)
	require.NoError(t, err)
	assert.Equal(t, "SalesOrder", kind)
	assert.Equal(t, []int64{12, 3}, key)

	for _, bad := range []string{"", "Plant", "Plant-x", "-1"} {
		_, _, err := source.ParseID(bad)
		require.ErrorIs(t, err, source.ErrInvalidEntity, bad)
	}
}

func TestEntityGetters(t *testing.T) {
	t.Parallel()

	e := source.Entity{Kind: "Plant", Key: []int64{1}, Fields: map[string]any{
		"name":        "Fern",
		"qty":         float64(4),
		"price":       "2.50",
		"soft_delete": true,
		"nothing":     nil,
	}}

	assert.Equal(t, "Fern", e.String("name"))
	assert.Equal(t, "4", e.String("qty"))
	n, ok := e.Int64("qty")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)
	f, ok := e.Float64("price")
	assert.True(t, ok)
	assert.InDelta(t, 2.5, f, 1e-9)
	assert.True(t, e.SoftDeleted())
	assert.False(t, e.Has("nothing"))
	assert.False(t, e.Has("missing"))

	_, ok = e.Int64("name")
	assert.False(t, ok)
}

func TestEntityValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, source.Entity{Key: []int64{1}}.Validate(), source.ErrInvalidEntity)
	require.ErrorIs(t, source.Entity{Kind: "Bad-Kind", Key: []int64{1}}.Validate(), source.ErrInvalidEntity)
	require.ErrorIs(t, source.Entity{Kind: "Plant"}.Validate(), source.ErrInvalidEntity)
	require.ErrorIs(t, source.Entity{Kind: "Plant", Key: []int64{-1}}.Validate(), source.ErrInvalidEntity)
	require.ErrorIs(t, source.Entity{Kind: "PlantGrow", Key: []int64{4, -17}}.Validate(), source.ErrInvalidEntity)
	require.NoError(t, source.Entity{Kind: "Plant", Key: []int64{1}}.Validate())
}

func TestMemorySourceRejectsNegativeKey(t *testing.T) {
	t.Parallel()

	src := source.NewMemorySource()
	err := src.PutBatch(context.Background(), []source.Entity{
		{Kind: "Plant", Key: []int64{1}},
		{Kind: "Plant", Key: []int64{-1}},
	})
	require.ErrorIs(t, err, source.ErrInvalidEntity)

	count := 0
	for _, err := range src.Query(context.Background(), "Plant") {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count, "a rejected batch must not be partially stored")
}

func TestMemorySourceQueryOrder(t *testing.T) {
	t.Parallel()

	src := source.NewMemorySource(
		source.Entity{Kind: "Plant", Key: []int64{3}, Fields: map[string]any{"name": "c"}},
		source.Entity{Kind: "Plant", Key: []int64{1}, Fields: map[string]any{"name": "a"}},
		source.Entity{Kind: "Customer", Key: []int64{1}, Fields: map[string]any{"name": "x"}},
	)

	got, err := source.Collect(src.Query(context.Background(), "Plant"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Plant-1", got[0].ID())
	assert.Equal(t, "Plant-3", got[1].ID())
	assert.Equal(t, []string{"Customer", "Plant"}, src.Kinds())

	// results are copies
	got[0].Fields["name"] = "mutated"
	again, found, err := src.GetByKey(context.Background(), "Plant-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", again.String("name"))
}

func TestMemorySourceQueryCancelled(t *testing.T) {
	t.Parallel()

	src := source.NewMemorySource(source.Entity{Kind: "Plant", Key: []int64{1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.Collect(src.Query(ctx, "Plant"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSQLSourcePaginates(t *testing.T) {
	t.Parallel()

	mgr := openSourceDB(t)
	src := source.NewSQLSource(mgr.DB(), 2, discardLogger())
	ctx := context.Background()

	batch := []source.Entity{
		{Kind: "SalesOrder", Key: []int64{1, 10}, Fields: map[string]any{"n": "1.10"}},
		{Kind: "SalesOrder", Key: []int64{1, 2}, Fields: map[string]any{"n": "1.2"}},
		{Kind: "SalesOrder", Key: []int64{2, 1}, Fields: map[string]any{"n": "2.1"}},
		{Kind: "SalesOrder", Key: []int64{100, 1}, Fields: map[string]any{"n": "100.1"}},
		{Kind: "SalesOrder", Key: []int64{9, 9}, Fields: map[string]any{"n": "9.9"}},
		{Kind: "Customer", Key: []int64{1}, Fields: map[string]any{"n": "c"}},
	}
	require.NoError(t, src.PutBatch(ctx, batch))

	got, err := source.Collect(src.Query(ctx, "SalesOrder"))
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID()
	}
	assert.Equal(t, []string{
		"SalesOrder-1-2", "SalesOrder-1-10", "SalesOrder-2-1", "SalesOrder-9-9", "SalesOrder-100-1",
	}, ids)
}

func TestSQLSourcePutReplaces(t *testing.T) {
	t.Parallel()

	mgr := openSourceDB(t)
	src := source.NewSQLSource(mgr.DB(), 0, discardLogger())
	ctx := context.Background()

	require.NoError(t, src.Put(ctx, source.Entity{Kind: "Plant", Key: []int64{5}, Fields: map[string]any{"name": "old"}}))
	require.NoError(t, src.Put(ctx, source.Entity{Kind: "Plant", Key: []int64{5}, Fields: map[string]any{"name": "new"}}))

	e, found, err := src.GetByKey(ctx, "Plant-5")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", e.String("name"))

	_, found, err = src.GetByKey(ctx, "Plant-6")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLSourceReadsRawRows(t *testing.T) {
	t.Parallel()

	mgr := openSourceDB(t)
	raw, err := sql.Open("sqlite3", mgr.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	_, err = raw.Exec(
		`INSERT INTO source_entities (entity_id, kind, sort_key, keys, data) VALUES (?, ?, ?, ?, ?)`,
		"Customer-7", "Customer", "00000000000000000007", "[7]",
		`{"name":"Acme","credit":1500,"soft_delete":false}`,
	)
	require.NoError(t, err)

	src := source.NewSQLSource(mgr.DB(), 0, discardLogger())
	e, found, err := src.GetByKey(context.Background(), "Customer-7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int64{7}, e.Key)
	assert.Equal(t, "Acme", e.String("name"))
	credit, ok := e.Int64("credit")
	assert.True(t, ok)
	assert.Equal(t, int64(1500), credit)
	assert.False(t, e.SoftDeleted())
}
