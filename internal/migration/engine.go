package migration

import (
	"context"
	"fmt"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/observability/metrics"
	"github.com/tphakala/invsync/internal/sequence"
	"github.com/tphakala/invsync/internal/source"
)

// EngineOptions wires an Engine. Registry, Source and Store are required.
type EngineOptions struct {
	Config   Config
	Registry *Registry
	Source   source.Source
	Store    *docstore.Client
	// Counter mints display numbers. Kinds that mint fail without it.
	Counter sequence.Counter
	Metrics metrics.SyncRecorder
	Runs    RunRecorder
	Logger  logger.Logger
	Hooks   Hooks
}

// Engine owns one Orchestrator per registered kind and resolves
// cross-kind lookups between them.
type Engine struct {
	cfg      Config
	registry *Registry
	src      source.Source
	store    *docstore.Client
	counter  sequence.Counter
	metrics  metrics.SyncRecorder
	runs     RunRecorder
	log      logger.Logger
	hooks    Hooks
	identity *IdentityResolver

	orchestrators map[string]*Orchestrator
}

// NewEngine validates opts and builds the orchestrators.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Registry == nil || opts.Source == nil || opts.Store == nil {
		return nil, errors.ValidationError("engine needs a registry, a source and a store")
	}
	cfg := opts.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("migration")
	}

	e := &Engine{
		cfg:           cfg,
		registry:      opts.Registry,
		src:           opts.Source,
		store:         opts.Store,
		counter:       opts.Counter,
		metrics:       opts.Metrics,
		runs:          opts.Runs,
		log:           opts.Logger,
		hooks:         opts.Hooks,
		identity:      NewIdentityResolver(cfg.TargetProject),
		orchestrators: make(map[string]*Orchestrator),
	}
	for _, kind := range opts.Registry.Kinds() {
		p, _ := opts.Registry.Get(kind)
		e.orchestrators[kind] = newOrchestrator(e, p)
	}
	if _, err := opts.Registry.Order(); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Identity returns the identity resolver.
func (e *Engine) Identity() *IdentityResolver { return e.identity }

// Orchestrator returns the orchestrator for kind.
func (e *Engine) Orchestrator(kind string) (*Orchestrator, bool) {
	o, ok := e.orchestrators[kind]
	return o, ok
}

// Lookup returns the migrated document id of kind. Unregistered kinds are
// reported as not found.
func (e *Engine) Lookup(ctx context.Context, kind, id string) (docstore.Document, bool, error) {
	o, ok := e.orchestrators[kind]
	if !ok {
		return nil, false, nil
	}
	return o.GetEntry(ctx, id)
}

// Plan returns the kinds a Sync of kinds would run, in order.
func (e *Engine) Plan(kinds ...string) ([]string, error) {
	return e.registry.Order(kinds...)
}

// Sync runs passes for kinds and their dependencies in dependency order,
// stopping at the first failed pass.
func (e *Engine) Sync(ctx context.Context, opts RunOptions, kinds ...string) ([]*PassResult, error) {
	order, err := e.Plan(kinds...)
	if err != nil {
		return nil, err
	}
	e.log.Info("sync started",
		logger.Any("kinds", order),
		logger.String("source_project", e.cfg.SourceProject),
		logger.String("target_project", e.cfg.TargetProject))

	results := make([]*PassResult, 0, len(order))
	for _, kind := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.orchestrators[kind].Run(ctx, opts)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// mint returns the sequence value recorded for (kind, key).
func (e *Engine) mint(ctx context.Context, kind, key string) (string, error) {
	if e.counter == nil {
		return "", fmt.Errorf("no sequence counter configured for %s", kind)
	}
	return e.counter.Assign(ctx, kind, key)
}
