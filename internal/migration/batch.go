package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/observability/metrics"
)

// AccumulatorOptions configures a BatchAccumulator.
type AccumulatorOptions struct {
	// Kind labels metrics and logs.
	Kind           string
	MaxWrites      int
	QuiesceTimeout time.Duration
	Metrics        metrics.SyncRecorder
	Logger         logger.Logger
	// OnCommitStart is called with the window size just before the store
	// commit, outside the accumulator lock.
	OnCommitStart func(pending int)
}

// BatchAccumulator funnels concurrent writes into one store batch and
// commits it whenever MaxWrites operations are pending.
//
// While a commit is in flight the accumulator is quiesced: callers block on
// the gate channel until the commit returns, so no operation is added to a
// window after its commit has started. A failed commit poisons the
// accumulator and every later call returns ErrAccumulatorPoisoned.
type BatchAccumulator struct {
	client         *docstore.Client
	kind           string
	maxWrites      int
	quiesceTimeout time.Duration
	metrics        metrics.SyncRecorder
	log            logger.Logger
	onCommitStart  func(pending int)

	mu       sync.Mutex
	batch    *docstore.WriteBatch
	pending  int
	quiesced bool
	gate     chan struct{} // closed when not quiesced
	poisoned error
	commits  int
}

// NewBatchAccumulator returns an accumulator writing through client.
func NewBatchAccumulator(client *docstore.Client, opts AccumulatorOptions) *BatchAccumulator {
	if opts.MaxWrites <= 0 {
		opts.MaxWrites = DefaultMaxWrites
	}
	if opts.QuiesceTimeout <= 0 {
		opts.QuiesceTimeout = DefaultQuiesceTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("migration.batch")
	}
	gate := make(chan struct{})
	close(gate)
	return &BatchAccumulator{
		client:         client,
		kind:           opts.Kind,
		maxWrites:      opts.MaxWrites,
		quiesceTimeout: opts.QuiesceTimeout,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		onCommitStart:  opts.OnCommitStart,
		batch:          client.NewBatch(),
		gate:           gate,
	}
}

// Set queues an upsert of doc at ref.
func (a *BatchAccumulator) Set(ctx context.Context, ref docstore.DocumentRef, doc docstore.Document) error {
	return a.add(ctx, docstore.OpSet, ref, doc)
}

// Create queues a create of doc at ref. The window's commit fails if the
// document exists by then.
func (a *BatchAccumulator) Create(ctx context.Context, ref docstore.DocumentRef, doc docstore.Document) error {
	return a.add(ctx, docstore.OpCreate, ref, doc)
}

// Delete queues a delete of ref.
func (a *BatchAccumulator) Delete(ctx context.Context, ref docstore.DocumentRef) error {
	return a.add(ctx, docstore.OpDelete, ref, nil)
}

// Commit flushes the pending window. An empty window is not committed.
func (a *BatchAccumulator) Commit(ctx context.Context) error {
	if err := a.acquire(ctx); err != nil {
		return err
	}
	return a.commitLocked(ctx)
}

// Commits returns the number of successful commits.
func (a *BatchAccumulator) Commits() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commits
}

// Pending returns the number of operations in the open window.
func (a *BatchAccumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Err returns the poisoning error, if any.
func (a *BatchAccumulator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.poisoned
}

func (a *BatchAccumulator) add(ctx context.Context, op docstore.Op, ref docstore.DocumentRef, doc docstore.Document) error {
	if err := a.acquire(ctx); err != nil {
		return err
	}

	var err error
	switch op {
	case docstore.OpSet:
		err = a.batch.Set(ref, doc)
	case docstore.OpCreate:
		err = a.batch.Create(ref, doc)
	case docstore.OpDelete:
		err = a.batch.Delete(ref)
	}
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.pending++
	a.metrics.RecordWrite(a.kind, op.String())

	if a.pending < a.maxWrites {
		a.mu.Unlock()
		return nil
	}
	return a.commitLocked(ctx)
}

// acquire returns with a.mu held and the accumulator open, or with an error
// and the lock released.
func (a *BatchAccumulator) acquire(ctx context.Context) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		a.mu.Lock()
		if a.poisoned != nil {
			err := a.poisoned
			a.mu.Unlock()
			return err
		}
		if !a.quiesced {
			return nil
		}
		gate := a.gate
		a.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(a.quiesceTimeout)
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.New(fmt.Errorf("%w after %s", ErrQuiesceTimeout, a.quiesceTimeout)).
				Component("migration.batch").
				Category(errors.CategoryTimeout).
				Context("kind", a.kind).
				Build()
		}
	}
}

// commitLocked must be called with a.mu held and the accumulator open. It
// releases the lock while the store commit runs.
func (a *BatchAccumulator) commitLocked(ctx context.Context) error {
	if a.pending == 0 {
		a.mu.Unlock()
		return nil
	}

	a.quiesced = true
	a.gate = make(chan struct{})
	batch, pending := a.batch, a.pending
	a.mu.Unlock()

	if a.onCommitStart != nil {
		a.onCommitStart(pending)
	}
	start := time.Now()
	err := batch.Commit(ctx)
	elapsed := time.Since(start)

	a.mu.Lock()
	defer a.mu.Unlock()
	defer close(a.gate)
	a.quiesced = false

	if err != nil {
		a.metrics.RecordCommit(metrics.StatusError, elapsed.Seconds())
		a.poisoned = fmt.Errorf("%w: %w", ErrAccumulatorPoisoned, err)
		a.log.Error("batch commit failed",
			logger.String("kind", a.kind),
			logger.Int("operations", pending),
			logger.Error(err))
		return errors.New(fmt.Errorf("commit of %d operations failed: %w", pending, err)).
			Component("migration.batch").
			Category(errors.CategoryCommit).
			Context("kind", a.kind).
			Context("operations", pending).
			Timing("batch_commit", elapsed).
			Build()
	}

	a.metrics.RecordCommit(metrics.StatusSuccess, elapsed.Seconds())
	a.commits++
	a.batch = a.client.NewBatch()
	a.pending = 0
	a.log.Debug("batch committed",
		logger.String("kind", a.kind),
		logger.Int("operations", pending),
		logger.Duration("duration", elapsed))
	return nil
}
