package source

import (
	"context"
	"iter"
)

// Source is the flat source-of-record store.
type Source interface {
	// Query streams every entity of kind. Pagination is internal; iteration
	// stops at the first error.
	Query(ctx context.Context, kind string) iter.Seq2[Entity, error]
	// GetByKey performs a point lookup by entity id.
	GetByKey(ctx context.Context, id string) (Entity, bool, error)
}

// Writer stores source entities. It is used for seeding.
type Writer interface {
	Put(ctx context.Context, e Entity) error
	PutBatch(ctx context.Context, batch []Entity) error
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq2[Entity, error]) ([]Entity, error) {
	var out []Entity
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
