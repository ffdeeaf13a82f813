package kinds

import (
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

// masterPipeline migrates a master data kind one row per document,
// copying fields as they are.
func masterPipeline(kind, collection string, fields ...string) migration.Pipeline {
	return migration.Pipeline{
		Descriptor: migration.KindDescriptor{
			Kind:              kind,
			Collection:        collection,
			FilterSoftDeletes: true,
		},
		Transform: func(tc *migration.TransformContext, raw source.Entity) error {
			doc := baseDocument(raw)
			for _, f := range fields {
				if v, ok := raw.Fields[f]; ok {
					doc[f] = v
				}
			}
			tc.Out.Put(raw.ID(), doc)
			return nil
		},
	}
}
