package migration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
)

func newAccumulator(backend docstore.Backend, opts AccumulatorOptions) (*BatchAccumulator, *docstore.Client) {
	client := docstore.NewClient(backend)
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	return NewBatchAccumulator(client, opts), client
}

func TestAccumulatorThresholdFlush(t *testing.T) {
	t.Parallel()

	mem := docstore.NewMemoryBackend()
	acc, client := newAccumulator(mem, AccumulatorOptions{Kind: "Plant", MaxWrites: 400})
	ctx := context.Background()

	for i := range 401 {
		ref := client.Document(fmt.Sprintf("plants/Plant-%d", i))
		require.NoError(t, acc.Set(ctx, ref, docstore.Document{"n": float64(i)}))
		if i == 399 {
			assert.Equal(t, 1, acc.Commits(), "400th operation commits")
			assert.Zero(t, acc.Pending())
		}
	}
	assert.Equal(t, 1, acc.Commits())
	assert.Equal(t, 1, acc.Pending())
	assert.Equal(t, 400, mem.Len())

	require.NoError(t, acc.Commit(ctx))
	assert.Equal(t, 2, acc.Commits())
	assert.Zero(t, acc.Pending())
	assert.Equal(t, 401, mem.Len())
}

func TestAccumulatorEmptyCommitIsSkipped(t *testing.T) {
	t.Parallel()

	rec := newRecordingBackend(docstore.NewMemoryBackend())
	acc, _ := newAccumulator(rec, AccumulatorOptions{MaxWrites: 10})

	require.NoError(t, acc.Commit(context.Background()))
	assert.Zero(t, acc.Commits())
	assert.Zero(t, rec.Commits())
}

func TestAccumulatorQuiesceExclusion(t *testing.T) {
	t.Parallel()

	const (
		writers   = 8
		perWriter = 250
		maxWrites = 50
	)

	rec := newRecordingBackend(docstore.NewMemoryBackend())
	rec.maxDelay = 3 * time.Millisecond

	var (
		inCommit   atomic.Bool
		violations atomic.Int64
		maxSeen    atomic.Int64
	)
	acc, client := newAccumulator(rec, AccumulatorOptions{
		MaxWrites: maxWrites,
		OnCommitStart: func(pending int) {
			if !inCommit.CompareAndSwap(false, true) {
				violations.Add(1)
			}
			if int64(pending) > maxSeen.Load() {
				maxSeen.Store(int64(pending))
			}
		},
	})
	// clear the in-commit flag once the store commit has returned
	inner := rec.failCommit
	rec.failCommit = func(writes []docstore.Write) error {
		defer inCommit.Store(false)
		if inner != nil {
			return inner(writes)
		}
		return nil
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for w := range writers {
		wg.Go(func() {
			for i := range perWriter {
				ref := client.Document(fmt.Sprintf("docs/w%d-%d", w, i))
				assert.NoError(t, acc.Set(ctx, ref, docstore.Document{"w": float64(w)}))
			}
		})
	}
	wg.Wait()
	require.NoError(t, acc.Commit(ctx))

	assert.Zero(t, violations.Load(), "commits overlapped")
	assert.LessOrEqual(t, maxSeen.Load(), int64(maxWrites))
	assert.Equal(t, writers*perWriter/maxWrites, acc.Commits())
	assert.Equal(t, writers*perWriter, len(rec.Backend.(*docstore.MemoryBackend).Snapshot()))
}

func TestAccumulatorCommitFailurePoisons(t *testing.T) {
	t.Parallel()

	boom := errors.NewStd("disk full")
	rec := newRecordingBackend(docstore.NewMemoryBackend())
	rec.failCommit = func([]docstore.Write) error { return boom }

	acc, client := newAccumulator(rec, AccumulatorOptions{MaxWrites: 2})
	ctx := context.Background()

	require.NoError(t, acc.Set(ctx, client.Document("c/a"), docstore.Document{"v": "a"}))
	err := acc.Set(ctx, client.Document("c/b"), docstore.Document{"v": "b"})
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	assert.True(t, errors.IsCategory(err, errors.CategoryCommit))
	assert.Equal(t, 2, acc.Pending(), "failed window is not reset")

	err = acc.Set(ctx, client.Document("c/c"), docstore.Document{"v": "c"})
	require.ErrorIs(t, err, ErrAccumulatorPoisoned)
	require.ErrorIs(t, err, boom)

	require.ErrorIs(t, acc.Commit(ctx), ErrAccumulatorPoisoned)
	assert.Zero(t, acc.Commits())
}

// blockingBackend holds every commit until release is closed.
type blockingBackend struct {
	docstore.Backend
	release chan struct{}
}

func (b *blockingBackend) Commit(ctx context.Context, writes []docstore.Write) error {
	<-b.release
	return b.Backend.Commit(ctx, writes)
}

func TestAccumulatorQuiesceTimeout(t *testing.T) {
	t.Parallel()

	backend := &blockingBackend{Backend: docstore.NewMemoryBackend(), release: make(chan struct{})}
	started := make(chan struct{})
	acc, client := newAccumulator(backend, AccumulatorOptions{
		MaxWrites:      1,
		QuiesceTimeout: 20 * time.Millisecond,
		OnCommitStart:  func(int) { close(started) },
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- acc.Set(ctx, client.Document("c/first"), docstore.Document{"v": "1"})
	}()
	<-started

	err := acc.Set(ctx, client.Document("c/second"), docstore.Document{"v": "2"})
	require.ErrorIs(t, err, ErrQuiesceTimeout)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))

	close(backend.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, acc.Commits())
}

func TestAccumulatorWaitHonoursCancellation(t *testing.T) {
	t.Parallel()

	backend := &blockingBackend{Backend: docstore.NewMemoryBackend(), release: make(chan struct{})}
	started := make(chan struct{})
	acc, client := newAccumulator(backend, AccumulatorOptions{
		MaxWrites:     1,
		OnCommitStart: func(int) { close(started) },
	})

	done := make(chan error, 1)
	go func() {
		done <- acc.Set(context.Background(), client.Document("c/first"), docstore.Document{"v": "1"})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := acc.Delete(ctx, client.Document("c/first"))
	require.ErrorIs(t, err, context.Canceled)

	close(backend.release)
	require.NoError(t, <-done)
}

func TestAccumulatorRejectsInvalidPaths(t *testing.T) {
	t.Parallel()

	acc, client := newAccumulator(docstore.NewMemoryBackend(), AccumulatorOptions{MaxWrites: 5})
	err := acc.Set(context.Background(), client.Document("collection-only"), docstore.Document{})
	require.ErrorIs(t, err, docstore.ErrInvalidPath)
	assert.Zero(t, acc.Pending())
}
