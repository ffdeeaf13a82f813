// Package kinds registers the migration pipelines for the inventory
// domain: master data kinds, sales orders with embedded lines, weekly
// plant grow and supply aggregations, and customer notes.
package kinds

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

// Kind names.
const (
	Customer   = "Customer"
	Supplier   = "Supplier"
	Plant      = "Plant"
	Product    = "Product"
	SalesOrder = "SalesOrder"
	PlantGrow  = "PlantGrow"
	Supply     = "Supply"
	Note       = "Note"
)

// Common document fields.
const (
	fieldID         = "id"
	fieldName       = "name"
	fieldType       = "type"
	fieldSoftDelete = source.SoftDeleteField
	fieldItemType   = "item_type"
)

// Default returns a registry holding every domain kind.
func Default() *migration.Registry {
	reg := migration.NewRegistry()
	Register(reg)
	return reg
}

// Register adds every domain kind to reg. It panics on duplicates.
func Register(reg *migration.Registry) {
	reg.MustRegister(masterPipeline(Customer, "customers", "email", "phone"))
	reg.MustRegister(masterPipeline(Supplier, "suppliers", "contact", "phone"))
	reg.MustRegister(masterPipeline(Plant, "plants", "genus", "size"))
	reg.MustRegister(masterPipeline(Product, "products", "sku", "price"))
	reg.MustRegister(salesOrderPipeline())
	reg.MustRegister(plantGrowPipeline())
	reg.MustRegister(supplyPipeline())
	reg.MustRegister(notePipeline())
}

var titleCaser = cases.Title(language.English)

// displayName trims and title-cases a free-text name.
func displayName(s string) string {
	return titleCaser.String(strings.Join(strings.Fields(s), " "))
}

// canonicalKey folds a name so that spelling variants of the same item
// share an aggregation slot.
func canonicalKey(s string) string {
	s = norm.NFC.String(strings.Join(strings.Fields(s), " "))
	return cases.Fold().String(s)
}

// baseDocument holds the fields every migrated document carries.
func baseDocument(raw source.Entity) docstore.Document {
	return docstore.Document{
		fieldID:         raw.ID(),
		fieldName:       displayName(raw.String(fieldName)),
		fieldType:       raw.Kind,
		fieldSoftDelete: raw.SoftDeleted(),
	}
}

// ref resolves the kind entity referenced by raw's field into an embedded
// reference map. A missing field yields nil.
func ref(tc *migration.TransformContext, kind string, raw source.Entity, field string) (map[string]any, error) {
	id, ok := tc.Identity.RefID(kind, raw, field)
	if !ok {
		return nil, nil
	}
	r, err := tc.Ref(kind, id)
	if err != nil {
		return nil, err
	}
	return r.Map(), nil
}
