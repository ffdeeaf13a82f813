package kinds

import (
	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

const notesCollection = "notes"

func notePipeline() migration.Pipeline {
	return migration.Pipeline{
		Descriptor: migration.KindDescriptor{
			Kind:        Note,
			Collection:  notesCollection,
			DependsOn:   []string{Customer},
			NestedUnder: Customer,
		},
		Transform: transformNote,
	}
}

// transformNote stores a note under its customer document. Notes whose
// customer does not resolve stay under the kind root. Soft-deleted notes
// keep their flag.
func transformNote(tc *migration.TransformContext, raw source.Entity) error {
	doc := baseDocument(raw)
	doc["body"] = raw.String("body")

	number := raw.String("note_number")
	if number == "" {
		minted, err := tc.Mint(raw.ID())
		if err != nil {
			return err
		}
		number = minted
	}
	doc["note_number"] = number
	if doc.String(fieldName) == "" {
		doc[fieldName] = "Note " + number
	}

	if custID, ok := tc.Identity.RefID(Customer, raw, "customer_id"); ok {
		customer, err := tc.Ref(Customer, custID)
		if err != nil {
			return err
		}
		doc["customer"] = customer.Map()
		if customer.Found() {
			parent := customer.PathOr("")
			doc[migration.FieldPath] = docstore.Join(parent, notesCollection, raw.ID())
		}
	}

	tc.Out.Put(raw.ID(), doc)
	return nil
}
