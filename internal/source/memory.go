package source

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
)

// MemorySource keeps entities in memory. Query yields them in key order.
type MemorySource struct {
	mu     sync.RWMutex
	byID   map[string]Entity
	byKind map[string][]string
}

// NewMemorySource returns a MemorySource holding entities.
func NewMemorySource(entities ...Entity) *MemorySource {
	m := &MemorySource{
		byID:   make(map[string]Entity),
		byKind: make(map[string][]string),
	}
	_ = m.PutBatch(context.Background(), entities)
	return m
}

// Put stores or replaces e.
func (m *MemorySource) Put(ctx context.Context, e Entity) error {
	return m.PutBatch(ctx, []Entity{e})
}

// PutBatch stores or replaces every entity in batch.
func (m *MemorySource) PutBatch(_ context.Context, batch []Entity) error {
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range batch {
		e := batch[i].Clone()
		id := e.ID()
		if _, exists := m.byID[id]; !exists {
			m.byKind[e.Kind] = append(m.byKind[e.Kind], id)
		}
		m.byID[id] = e
	}
	return nil
}

// Query implements Source.
func (m *MemorySource) Query(ctx context.Context, kind string) iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		m.mu.RLock()
		snapshot := make([]Entity, 0, len(m.byKind[kind]))
		for _, id := range m.byKind[kind] {
			snapshot = append(snapshot, m.byID[id].Clone())
		}
		m.mu.RUnlock()

		slices.SortFunc(snapshot, func(a, b Entity) int {
			return slices.Compare(a.Key, b.Key)
		})
		for _, e := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(Entity{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// GetByKey implements Source.
func (m *MemorySource) GetByKey(ctx context.Context, id string) (Entity, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entity{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	if !ok {
		return Entity{}, false, nil
	}
	return e.Clone(), true, nil
}

// Kinds returns the kinds present, sorted.
func (m *MemorySource) Kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.byKind))
}
