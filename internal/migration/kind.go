package migration

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/source"
)

// BasePathStrategy selects which configured base path a kind lives under.
type BasePathStrategy string

const (
	BasePathConverted BasePathStrategy = "converted"
	BasePathLegacy    BasePathStrategy = "legacy"
)

// KindDescriptor describes how one source kind is migrated.
type KindDescriptor struct {
	Kind string `yaml:"kind"`
	// Collection is the collection id under the base path.
	Collection        string           `yaml:"collection"`
	BasePathStrategy  BasePathStrategy `yaml:"base_path_strategy"`
	FilterSoftDeletes bool             `yaml:"filter_soft_deletes"`
	PostProcess       bool             `yaml:"post_process"`
	// DependsOn lists kinds whose documents this kind embeds. They are
	// synced first.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// NestedUnder names a kind whose documents may hold a Collection
	// sub-collection of this kind's documents.
	NestedUnder string `yaml:"nested_under,omitempty"`
}

// RootPath returns the kind's root collection path.
func (d *KindDescriptor) RootPath(cfg *Config) string {
	return docstore.Join(cfg.basePath(d.BasePathStrategy), d.Collection)
}

// TransformFunc folds one raw entity into tc.Out. It runs on a single
// goroutine per pass, so it may mutate buckets created by earlier rows.
type TransformFunc func(tc *TransformContext, raw source.Entity) error

// PostProcessFunc runs once over tc.Out after all rows are folded.
type PostProcessFunc func(tc *TransformContext) error

// Pipeline binds a descriptor to its transform functions.
type Pipeline struct {
	Descriptor  KindDescriptor
	Transform   TransformFunc
	PostProcess PostProcessFunc
}

// KindOverride changes descriptor policy without code changes. Nil fields
// are left alone.
type KindOverride struct {
	Kind              string            `yaml:"kind"`
	BasePathStrategy  *BasePathStrategy `yaml:"base_path_strategy,omitempty"`
	FilterSoftDeletes *bool             `yaml:"filter_soft_deletes,omitempty"`
	PostProcess       *bool             `yaml:"post_process,omitempty"`
}

// Registry maps kinds to pipelines.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]*Pipeline)}
}

func validateDescriptor(d *KindDescriptor) error {
	switch {
	case d.Kind == "":
		return errors.ValidationError("kind name is required")
	case strings.Contains(d.Kind, source.IDSeparator):
		return errors.ValidationError(fmt.Sprintf("kind %q must not contain %q", d.Kind, source.IDSeparator))
	case d.Collection == "" || strings.Contains(d.Collection, docstore.PathSeparator):
		return errors.ValidationError(fmt.Sprintf("kind %s needs a single-segment collection id", d.Kind))
	}
	switch d.BasePathStrategy {
	case BasePathConverted, BasePathLegacy:
	default:
		return errors.ValidationError(fmt.Sprintf("kind %s has unknown base path strategy %q", d.Kind, d.BasePathStrategy))
	}
	return nil
}

// Register adds p. Kinds may be registered once.
func (r *Registry) Register(p Pipeline) error {
	if p.Descriptor.BasePathStrategy == "" {
		p.Descriptor.BasePathStrategy = BasePathConverted
	}
	if err := validateDescriptor(&p.Descriptor); err != nil {
		return err
	}
	if p.Transform == nil {
		return errors.ValidationError(fmt.Sprintf("kind %s has no transform", p.Descriptor.Kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pipelines[p.Descriptor.Kind]; exists {
		return errors.Newf("kind %s already registered", p.Descriptor.Kind).
			Component("migration").
			Category(errors.CategoryConflict).
			Build()
	}
	p.Descriptor.DependsOn = slices.Clone(p.Descriptor.DependsOn)
	r.pipelines[p.Descriptor.Kind] = &p
	r.order = append(r.order, p.Descriptor.Kind)
	return nil
}

// MustRegister is Register for package initialization.
func (r *Registry) MustRegister(p Pipeline) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get returns a copy of the pipeline for kind.
func (r *Registry) Get(kind string) (Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[kind]
	if !ok {
		return Pipeline{}, false
	}
	return *p, true
}

// Kinds returns registered kinds in registration order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []KindDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]KindDescriptor, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.pipelines[k].Descriptor)
	}
	return out
}

// Apply updates the descriptor policy of o.Kind.
func (r *Registry) Apply(o KindOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[o.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, o.Kind)
	}
	d := p.Descriptor
	if o.BasePathStrategy != nil {
		d.BasePathStrategy = *o.BasePathStrategy
	}
	if o.FilterSoftDeletes != nil {
		d.FilterSoftDeletes = *o.FilterSoftDeletes
	}
	if o.PostProcess != nil {
		d.PostProcess = *o.PostProcess
	}
	if err := validateDescriptor(&d); err != nil {
		return err
	}
	p.Descriptor = d
	return nil
}

// Order returns kinds plus their transitive dependencies, dependencies
// first. Kinds nested under a selected kind are included after it, since
// deleting the parent subtree removes their documents. An empty selection
// means every registered kind.
func (r *Registry) Order(kinds ...string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(kinds) == 0 {
		kinds = r.order
	}
	selected := make(map[string]bool)
	queue := slices.Clone(kinds)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if selected[k] {
			continue
		}
		p, ok := r.pipelines[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
		}
		selected[k] = true
		queue = append(queue, p.Descriptor.DependsOn...)
		for _, other := range r.order {
			if r.pipelines[other].Descriptor.NestedUnder == k {
				queue = append(queue, other)
			}
		}
	}

	const (
		_ = iota
		visiting
		visited
	)
	state := make(map[string]int, len(selected))
	out := make([]string, 0, len(selected))
	var visit func(k string, chain []string) error
	visit = func(k string, chain []string) error {
		switch state[k] {
		case visited:
			return nil
		case visiting:
			return errors.Newf("kind dependency cycle: %s", strings.Join(slices.Concat(chain, []string{k}), " -> ")).
				Component("migration").
				Category(errors.CategoryConfiguration).
				Build()
		}
		state[k] = visiting
		p := r.pipelines[k]
		deps := slices.Clone(p.Descriptor.DependsOn)
		if p.Descriptor.NestedUnder != "" {
			deps = append(deps, p.Descriptor.NestedUnder)
		}
		for _, dep := range deps {
			if _, ok := r.pipelines[dep]; !ok {
				return fmt.Errorf("%w: %s (dependency of %s)", ErrUnknownKind, dep, k)
			}
			if !selected[dep] {
				continue
			}
			if err := visit(dep, slices.Concat(chain, []string{k})); err != nil {
				return err
			}
		}
		state[k] = visited
		out = append(out, k)
		return nil
	}

	// registration order keeps the result deterministic
	for _, k := range r.order {
		if !selected[k] {
			continue
		}
		if err := visit(k, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
