package kinds

import (
	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

const (
	fieldFinishWeek = "finish_week"
	fieldItems      = "items"
	plantsSuffix    = "-plants"
)

var (
	errMissingWeek = errors.NewStd("finish week is empty")
	errNotInteger  = errors.NewStd("missing or not an integer")
)

func plantGrowPipeline() migration.Pipeline {
	return migration.Pipeline{
		Descriptor: migration.KindDescriptor{
			Kind:              PlantGrow,
			Collection:        "plant_grows",
			BasePathStrategy:  migration.BasePathLegacy,
			FilterSoftDeletes: true,
			PostProcess:       true,
			DependsOn:         []string{Plant},
		},
		Transform:   transformPlantGrow,
		PostProcess: totalPlantGrows,
	}
}

// transformPlantGrow folds grow rows into one document per finish week.
// Rows for the same plant name add up in a single item.
func transformPlantGrow(tc *migration.TransformContext, raw source.Entity) error {
	week := raw.String(fieldFinishWeek)
	if week == "" {
		return migration.MalformedEntityError(raw.ID(), fieldFinishWeek, errMissingWeek)
	}

	bucketID := week + plantsSuffix
	bucket, _ := tc.Out.Bucket(bucketID, func() docstore.Document {
		return docstore.Document{
			fieldID:             bucketID,
			fieldName:           "Plants " + week,
			fieldType:           PlantGrow,
			fieldSoftDelete:     false,
			fieldItemType:       "plant",
			fieldFinishWeek:     week,
			fieldItems:          map[string]any{},
			migration.FieldPath: tc.DocPath(bucketID),
		}
	})

	plant, err := ref(tc, Plant, raw, "plant_id")
	if err != nil {
		return err
	}
	name := raw.String("plant_name")
	if name == "" && plant != nil {
		name, _ = plant[fieldName].(string)
	}
	qty, _ := raw.Float64("qty")

	items := bucket[fieldItems].(map[string]any)
	key := canonicalKey(name)
	item, ok := items[key].(map[string]any)
	if !ok {
		item = map[string]any{
			fieldName: displayName(name),
			"plant":   plant,
			"qty":     0.0,
			"rows":    0.0,
		}
		items[key] = item
	}
	item["qty"] = item["qty"].(float64) + qty
	item["rows"] = item["rows"].(float64) + 1
	return nil
}

// totalPlantGrows adds week totals once every row is folded.
func totalPlantGrows(tc *migration.TransformContext) error {
	for _, doc := range tc.Out.All() {
		items := doc[fieldItems].(map[string]any)
		total := 0.0
		for _, it := range items {
			total += it.(map[string]any)["qty"].(float64)
		}
		doc["total_qty"] = total
		doc["item_count"] = float64(len(items))
	}
	return nil
}
