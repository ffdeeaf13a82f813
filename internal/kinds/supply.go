package kinds

import (
	"fmt"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

func supplyPipeline() migration.Pipeline {
	return migration.Pipeline{
		Descriptor: migration.KindDescriptor{
			Kind:              Supply,
			Collection:        "supplies",
			FilterSoftDeletes: true,
			DependsOn:         []string{Supplier, Product},
		},
		Transform: transformSupply,
	}
}

// transformSupply groups supply rows by finish week and product. Each
// group gets one supply number, minted when the group is first seen.
func transformSupply(tc *migration.TransformContext, raw source.Entity) error {
	week := raw.String(fieldFinishWeek)
	if week == "" {
		return migration.MalformedEntityError(raw.ID(), fieldFinishWeek, errMissingWeek)
	}
	productID, ok := raw.Int64("product_id")
	if !ok {
		return migration.MalformedEntityError(raw.ID(), "product_id", errNotInteger)
	}

	bucketID := fmt.Sprintf("%s-%d", week, productID)
	bucket, created := tc.Out.Bucket(bucketID, func() docstore.Document {
		return docstore.Document{
			fieldID:         bucketID,
			fieldType:       Supply,
			fieldSoftDelete: false,
			fieldItemType:   "product",
			fieldFinishWeek: week,
			"quantity":      0.0,
			"lots":          []any{},
		}
	})
	if created {
		product, err := tc.Ref(Product, source.FormatID(Product, productID))
		if err != nil {
			return err
		}
		bucket["product"] = product.Map()
		bucket[fieldName] = product.Name + " " + week

		number, err := tc.Mint(bucketID)
		if err != nil {
			return err
		}
		bucket["supply_number"] = number
	}

	supplier, err := ref(tc, Supplier, raw, "supplier_id")
	if err != nil {
		return err
	}
	qty, _ := raw.Float64("qty")
	bucket["quantity"] = bucket["quantity"].(float64) + qty
	bucket["lots"] = append(bucket["lots"].([]any), map[string]any{
		"key":      tc.Identity.ChildKey(bucketID, raw.ID()),
		"source":   raw.ID(),
		"supplier": supplier,
		"qty":      qty,
	})
	return nil
}
