package sequence_test

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/sequence"
)

func openCounter(t *testing.T) *sequence.SQLCounter {
	t.Helper()
	return sequence.NewSQLCounter(openDB(t))
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	mgr, err := datastore.Open(&datastore.Config{
		Name:    "target",
		DataDir: t.TempDir(),
		Logger:  logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())
	return mgr.DB()
}

func TestSQLCounterMonotonicPerKind(t *testing.T) {
	t.Parallel()

	c := openCounter(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := c.Next(ctx, "Note")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(want), got)
	}

	got, err := c.Next(ctx, "Supply")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	cur, err := c.Current(ctx, "Note")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)

	cur, err = c.Current(ctx, "Unknown")
	require.NoError(t, err)
	assert.Zero(t, cur)

	_, err = c.Next(ctx, "")
	require.Error(t, err)
}

func TestSQLCounterConcurrentCallersGetDistinctValues(t *testing.T) {
	t.Parallel()

	c := openCounter(t)
	ctx := context.Background()

	const callers = 20
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range callers {
		wg.Go(func() {
			v, err := c.Next(ctx, "Supply")
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Len(t, seen, callers)
	assert.True(t, seen[strconv.Itoa(callers)])
}

func TestSQLCounterAssignIsStableAcrossCounters(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	first := sequence.NewSQLCounter(db)
	ctx := context.Background()

	v, err := first.Assign(ctx, "Note", "Note-2")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = first.Assign(ctx, "Note", "Note-2")
	require.NoError(t, err)
	assert.Equal(t, "1", v, "a recorded key must not consume another number")

	// a second counter over the same database sees the recorded number
	second := sequence.NewSQLCounter(db)
	v, err = second.Assign(ctx, "Note", "Note-2")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = second.Assign(ctx, "Note", "Note-5")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = second.Next(ctx, "Note")
	require.NoError(t, err)
	assert.Equal(t, "3", v, "Assign and Next share one sequence")

	cur, err := first.Current(ctx, "Note")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)

	_, err = first.Assign(ctx, "Note", "")
	require.Error(t, err)
}

func TestSQLCounterConcurrentAssignAgrees(t *testing.T) {
	t.Parallel()

	c := openCounter(t)
	ctx := context.Background()

	const callers = 10
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range callers {
		wg.Go(func() {
			v, err := c.Assign(ctx, "Supply", "Supply-1")
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Len(t, seen, 1)
}

func TestMemoryCounterAssign(t *testing.T) {
	t.Parallel()

	c := sequence.NewMemoryCounter(nil)
	ctx := context.Background()

	a, err := c.Assign(ctx, "Note", "Note-2")
	require.NoError(t, err)
	b, err := c.Assign(ctx, "Note", "Note-2")
	require.NoError(t, err)
	other, err := c.Assign(ctx, "Note", "Note-3")
	require.NoError(t, err)

	assert.Equal(t, "1", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "2", other)
}

func TestMemoryCounter(t *testing.T) {
	t.Parallel()

	c := sequence.NewMemoryCounter(map[string]int64{"Note": 41})
	v, err := c.Next(context.Background(), "Note")
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	v, err = c.Next(context.Background(), "Supply")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}
