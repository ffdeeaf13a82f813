package migration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/observability/metrics"
	"github.com/tphakala/invsync/internal/source"
)

// RunOptions controls a single pass.
type RunOptions struct {
	// SkipDelete upserts over the existing subtree instead of deleting it first.
	SkipDelete bool
	// Strategy overrides Config.Strategy when set.
	Strategy Strategy
}

// PassResult summarizes a pass.
type PassResult struct {
	RunID            string
	Kind             string
	Phase            Phase
	Strategy         Strategy
	SkipDelete       bool
	Pulled           int
	Filtered         int
	Transformed      int
	DeletesAttempted int
	DeletesFailed    int
	Loaded           int
	Commits          int
	Duration         time.Duration

	recorded bool
}

// RunRecorder persists pass progress.
type RunRecorder interface {
	StartRun(ctx context.Context, kind string, strategy Strategy, skipDelete bool) (string, error)
	RecordPhase(ctx context.Context, runID string, from, to Phase) error
	FinishRun(ctx context.Context, result *PassResult, runErr error) error
}

// Hooks observe a pass. They run on the goroutine that triggers them.
type Hooks struct {
	OnPhase       func(kind string, from, to Phase)
	OnCommitStart func(kind string, pending int)
}

// Orchestrator drives passes for one kind and answers lookups for it.
type Orchestrator struct {
	engine   *Engine
	pipeline Pipeline
	cache    *EntityCache
	log      logger.Logger

	phase   atomic.Int32
	running sync.Mutex

	// deleteDoc queues one delete. Replaced in tests.
	deleteDoc func(ctx context.Context, acc *BatchAccumulator, ref docstore.DocumentRef) error
}

func newOrchestrator(e *Engine, p Pipeline) *Orchestrator {
	return &Orchestrator{
		engine:   e,
		pipeline: p,
		cache:    NewEntityCache(),
		log:      e.log.Module(p.Descriptor.Kind),
		deleteDoc: func(ctx context.Context, acc *BatchAccumulator, ref docstore.DocumentRef) error {
			return acc.Delete(ctx, ref)
		},
	}
}

// Kind returns the kind this orchestrator migrates.
func (o *Orchestrator) Kind() string { return o.pipeline.Descriptor.Kind }

// Descriptor returns the kind descriptor.
func (o *Orchestrator) Descriptor() KindDescriptor { return o.pipeline.Descriptor }

// RootPath returns the kind's root collection path.
func (o *Orchestrator) RootPath() string {
	return o.pipeline.Descriptor.RootPath(&o.engine.cfg)
}

// Phase returns the current phase of the latest pass.
func (o *Orchestrator) Phase() Phase { return Phase(o.phase.Load()) }

// Cache returns the entity cache.
func (o *Orchestrator) Cache() *EntityCache { return o.cache }

// Run executes one pass: pull, transform, delete (unless skipped), load and
// final commit. Delete failures are logged and skipped; any load failure
// fails the pass. Batch windows committed before a failure are kept.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*PassResult, error) {
	if !o.running.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrPassInProgress, o.Kind())
	}
	defer o.running.Unlock()

	e := o.engine
	strategy := opts.Strategy
	if strategy == "" {
		strategy = e.cfg.Strategy
	}
	res := &PassResult{Kind: o.Kind(), Strategy: strategy, SkipDelete: opts.SkipDelete}
	start := time.Now()

	o.phase.Store(int32(PhaseIdle))
	res.RunID = o.startRun(ctx, res)
	log := o.log.With(logger.String("run_id", res.RunID))
	log.Info("sync pass started",
		logger.String("strategy", string(strategy)),
		logger.Bool("skip_delete", opts.SkipDelete))

	acc := NewBatchAccumulator(e.store, AccumulatorOptions{
		Kind:           o.Kind(),
		MaxWrites:      e.cfg.MaxWrites,
		QuiesceTimeout: e.cfg.QuiesceTimeout,
		Metrics:        e.metrics,
		Logger:         log,
		OnCommitStart:  o.commitHook(),
	})

	err := o.run(ctx, res, acc, opts.SkipDelete, log)
	res.Commits = acc.Commits()
	res.Duration = time.Since(start)

	status := metrics.StatusSuccess
	if err != nil {
		failedIn := o.Phase()
		o.transition(ctx, res, PhaseFailed)
		status = metrics.StatusError
		err = o.phaseError(failedIn, err)
		log.Error("sync pass failed",
			logger.String("phase", failedIn.String()),
			logger.Int("loaded", res.Loaded),
			logger.Int("commits", res.Commits),
			logger.Error(err))
	} else {
		log.Info("sync pass completed",
			logger.Int("pulled", res.Pulled),
			logger.Int("transformed", res.Transformed),
			logger.Int("deleted", res.DeletesAttempted-res.DeletesFailed),
			logger.Int("loaded", res.Loaded),
			logger.Int("commits", res.Commits),
			logger.Duration("duration", res.Duration))
	}
	res.Phase = o.Phase()
	e.metrics.RecordPass(o.Kind(), status, res.Duration.Seconds())
	o.finishRun(ctx, res, err)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, res *PassResult, acc *BatchAccumulator, skipDelete bool, log logger.Logger) error {
	o.transition(ctx, res, PhasePulling)
	rows, err := o.pull(ctx, res)
	if err != nil {
		return err
	}

	o.transition(ctx, res, PhaseTransforming)
	working, err := o.transform(ctx, rows)
	if err != nil {
		return err
	}
	res.Transformed = working.Len()
	for id, doc := range working.All() {
		o.cache.Set(id, doc)
	}

	limiter := newLimiter(o.engine.cfg.RateLimit, o.engine.cfg.Workers)

	if !skipDelete {
		o.transition(ctx, res, PhaseDeleting)
		if err := o.deletePhase(ctx, res, acc, limiter, log); err != nil {
			return err
		}
	}

	o.transition(ctx, res, PhaseLoading)
	if err := o.loadPhase(ctx, res, acc, working, limiter, log); err != nil {
		return err
	}

	o.transition(ctx, res, PhaseCommitting)
	if err := acc.Commit(ctx); err != nil {
		return err
	}
	o.transition(ctx, res, PhaseDone)
	return nil
}

func (o *Orchestrator) pull(ctx context.Context, res *PassResult) ([]source.Entity, error) {
	desc := &o.pipeline.Descriptor
	var rows []source.Entity
	for raw, err := range o.engine.src.Query(ctx, desc.Kind) {
		if err != nil {
			return nil, fmt.Errorf("pull %s: %w", desc.Kind, err)
		}
		res.Pulled++
		if desc.FilterSoftDeletes && raw.SoftDeleted() {
			res.Filtered++
			continue
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

// transform folds rows into a fresh working set, post-processes and
// addresses it. Both the bulk pass and GetEntry go through here.
func (o *Orchestrator) transform(ctx context.Context, rows []source.Entity) (*Working, error) {
	w := newWorking()
	tc := &TransformContext{
		ctx:        ctx,
		Descriptor: o.pipeline.Descriptor,
		RootPath:   o.RootPath(),
		Identity:   o.engine.identity,
		Out:        w,
		engine:     o.engine,
	}
	for _, raw := range rows {
		if err := o.pipeline.Transform(tc, raw); err != nil {
			return nil, fmt.Errorf("transform %s: %w", raw.ID(), err)
		}
	}
	if tc.Descriptor.PostProcess && o.pipeline.PostProcess != nil {
		if err := o.pipeline.PostProcess(tc); err != nil {
			return nil, fmt.Errorf("post-process %s: %w", o.Kind(), err)
		}
	}
	if err := address(w, tc.RootPath); err != nil {
		return nil, err
	}
	return w, nil
}

// deleteRoots returns the kind's root collection plus, for nested kinds,
// the sub-collection under every parent document.
func (o *Orchestrator) deleteRoots(ctx context.Context) ([]docstore.CollectionRef, error) {
	e := o.engine
	desc := &o.pipeline.Descriptor
	roots := []docstore.CollectionRef{e.store.Collection(o.RootPath())}
	if desc.NestedUnder == "" {
		return roots, nil
	}
	parent, ok := e.orchestrators[desc.NestedUnder]
	if !ok {
		return roots, nil
	}
	parents, err := e.store.Collection(parent.RootPath()).ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", desc.NestedUnder, err)
	}
	for _, p := range parents {
		roots = append(roots, p.Collection(desc.Collection))
	}
	return roots, nil
}

func (o *Orchestrator) deletePhase(ctx context.Context, res *PassResult, acc *BatchAccumulator, limiter *rate.Limiter, log logger.Logger) error {
	roots, err := o.deleteRoots(ctx)
	if err != nil {
		return err
	}
	instructions, err := NewTreeWalker(acc).Enumerate(ctx, roots...)
	if err != nil {
		return err
	}
	res.DeletesAttempted = len(instructions)

	var failed atomic.Int64
	err = o.dispatch(ctx, res.Strategy, limiter, len(instructions), func(ctx context.Context, i int) error {
		in := instructions[i]
		err := o.deleteDoc(ctx, in.Batch, in.Doc)
		if err == nil {
			return nil
		}
		if in.Batch.Err() != nil || ctx.Err() != nil || errors.Is(err, ErrQuiesceTimeout) {
			return err
		}
		failed.Add(1)
		o.engine.metrics.RecordDeleteFailure(o.Kind())
		log.Warn("failed to delete document, continuing",
			logger.String("path", in.Doc.Path()),
			logger.Error(err))
		return nil
	})
	res.DeletesFailed = int(failed.Load())
	if err != nil {
		return err
	}

	// the pool has drained; loading starts only after this commit returns
	return acc.Commit(ctx)
}

func (o *Orchestrator) loadPhase(ctx context.Context, res *PassResult, acc *BatchAccumulator, w *Working, limiter *rate.Limiter, log logger.Logger) error {
	type loadItem struct {
		id  string
		doc docstore.Document
	}
	items := make([]loadItem, 0, w.Len())
	for id, doc := range w.All() {
		items = append(items, loadItem{id: id, doc: doc})
	}

	var loaded atomic.Int64
	err := o.dispatch(ctx, res.Strategy, limiter, len(items), func(ctx context.Context, i int) error {
		it := items[i]
		if err := o.loadOne(ctx, acc, it.doc); err != nil {
			log.Error("failed to load document",
				logger.String("id", it.id),
				logger.String("path", it.doc.String(FieldPath)),
				logger.Error(err))
			return err
		}
		loaded.Add(1)
		return nil
	})
	res.Loaded = int(loaded.Load())
	return err
}

// loadOne upserts doc at its path: Set when it exists, Create otherwise.
func (o *Orchestrator) loadOne(ctx context.Context, acc *BatchAccumulator, doc docstore.Document) error {
	ref := o.engine.store.Document(doc.String(FieldPath))
	snap, err := ref.Get(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", ref.Path(), err)
	}
	if snap.Exists {
		return acc.Set(ctx, ref, doc)
	}
	return acc.Create(ctx, ref, doc)
}

func (o *Orchestrator) dispatch(ctx context.Context, strategy Strategy, limiter *rate.Limiter, n int, fn func(ctx context.Context, i int) error) error {
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
	}
	if strategy == StrategyLinear {
		return RunLinear(ctx, indexes, fn)
	}
	return RunParallel(ctx, indexes, PoolOptions{Workers: o.engine.cfg.Workers, Limiter: limiter}, fn)
}

// GetEntry returns the migrated document for id. On a cache miss the entity
// is fetched from the source, transformed and memoized. Ids produced only by
// aggregation are not found this way.
func (o *Orchestrator) GetEntry(ctx context.Context, id string) (docstore.Document, bool, error) {
	if doc, ok := o.cache.Get(id); ok {
		return doc, true, nil
	}

	raw, found, err := o.engine.src.GetByKey(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !found || raw.Kind != o.Kind() {
		return nil, false, nil
	}
	if o.pipeline.Descriptor.FilterSoftDeletes && raw.SoftDeleted() {
		return nil, false, nil
	}

	w, err := o.transform(ctx, []source.Entity{raw})
	if err != nil {
		return nil, false, err
	}
	doc, ok := w.Get(id)
	if !ok {
		return nil, false, nil
	}
	o.cache.Set(id, doc)
	o.log.Trace("entry resolved lazily", logger.String("id", id))
	return doc.Clone(), true, nil
}

func (o *Orchestrator) transition(ctx context.Context, res *PassResult, to Phase) {
	from := Phase(o.phase.Swap(int32(to)))
	e := o.engine
	e.metrics.SetPhase(o.Kind(), int(to))
	if e.runs != nil && res.recorded {
		if err := e.runs.RecordPhase(context.WithoutCancel(ctx), res.RunID, from, to); err != nil {
			o.log.Warn("failed to record phase transition",
				logger.String("run_id", res.RunID),
				logger.String("to", to.String()),
				logger.Error(err))
		}
	}
	if e.hooks.OnPhase != nil {
		e.hooks.OnPhase(o.Kind(), from, to)
	}
}

func (o *Orchestrator) commitHook() func(int) {
	hook := o.engine.hooks.OnCommitStart
	if hook == nil {
		return nil
	}
	kind := o.Kind()
	return func(pending int) { hook(kind, pending) }
}

func (o *Orchestrator) startRun(ctx context.Context, res *PassResult) string {
	runs := o.engine.runs
	if runs == nil {
		return uuid.NewString()
	}
	id, err := runs.StartRun(context.WithoutCancel(ctx), res.Kind, res.Strategy, res.SkipDelete)
	if err != nil {
		o.log.Warn("failed to record run start", logger.Error(err))
		return uuid.NewString()
	}
	res.recorded = true
	return id
}

func (o *Orchestrator) finishRun(ctx context.Context, res *PassResult, runErr error) {
	runs := o.engine.runs
	if runs == nil || !res.recorded {
		return
	}
	if err := runs.FinishRun(context.WithoutCancel(ctx), res, runErr); err != nil {
		o.log.Warn("failed to record run result",
			logger.String("run_id", res.RunID),
			logger.Error(err))
	}
}

func (o *Orchestrator) phaseError(phase Phase, err error) error {
	return errors.New(&PhaseError{Kind: o.Kind(), Phase: phase, Err: err}).
		Component("migration").
		Category(errors.CategorySyncPhase).
		Priority(errors.PriorityHigh).
		Context("kind", o.Kind()).
		Context("phase", phase.String()).
		Build()
}
