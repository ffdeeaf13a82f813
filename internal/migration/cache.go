package migration

import (
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/invsync/internal/docstore"
)

// EntityCache maps entity ids to transformed documents for one kind.
// Entries never expire. Concurrent fills of the same id are last-writer-wins.
type EntityCache struct {
	c *cache.Cache
}

// NewEntityCache returns an empty cache. No janitor goroutine is started.
func NewEntityCache() *EntityCache {
	return &EntityCache{c: cache.New(cache.NoExpiration, 0)}
}

// Get returns a copy of the cached document.
func (e *EntityCache) Get(id string) (docstore.Document, bool) {
	v, ok := e.c.Get(id)
	if !ok {
		return nil, false
	}
	return v.(docstore.Document).Clone(), true
}

// Set stores a copy of doc.
func (e *EntityCache) Set(id string, doc docstore.Document) {
	e.c.Set(id, doc.Clone(), cache.NoExpiration)
}

// Len returns the number of cached documents.
func (e *EntityCache) Len() int {
	return e.c.ItemCount()
}

// Snapshot returns copies of every cached document keyed by id.
func (e *EntityCache) Snapshot() map[string]docstore.Document {
	items := e.c.Items()
	out := make(map[string]docstore.Document, len(items))
	for id, item := range items {
		out[id] = item.Object.(docstore.Document).Clone()
	}
	return out
}
