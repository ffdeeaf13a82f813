package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryBackend is an in-process Backend. It is safe for concurrent use.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryBackend returns an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]Document)}
}

// ListDocumentIDs implements Backend.
func (m *MemoryBackend) ListDocumentIDs(ctx context.Context, collectionPath string) ([]string, error) {
	return m.children(ctx, collectionPath)
}

// ListCollectionIDs implements Backend.
func (m *MemoryBackend) ListCollectionIDs(ctx context.Context, documentPath string) ([]string, error) {
	return m.children(ctx, documentPath)
}

func (m *MemoryBackend) children(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for p := range m.docs {
		if id := childSegment(prefix, p); id != "" {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, documentPath string) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[documentPath]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

// Commit implements Backend. Either every write is applied or none is.
func (m *MemoryBackend) Commit(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// validate against the state the batch itself produces
	exists := make(map[string]bool, len(writes))
	for _, w := range writes {
		present, seen := exists[w.Path]
		if !seen {
			_, present = m.docs[w.Path]
		}
		switch w.Op {
		case OpCreate:
			if present {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, w.Path)
			}
			exists[w.Path] = true
		case OpSet:
			exists[w.Path] = true
		case OpDelete:
			exists[w.Path] = false
		}
	}

	for _, w := range writes {
		if w.Op == OpDelete {
			delete(m.docs, w.Path)
			continue
		}
		m.docs[w.Path] = w.Data.Clone()
	}
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Snapshot returns a deep copy of every stored document keyed by path.
func (m *MemoryBackend) Snapshot() map[string]Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDocs(m.docs)
}
