package source

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
)

// DefaultPageSize is the number of rows fetched per Query page.
const DefaultPageSize = 500

// insertBatchSize bounds rows per INSERT in PutBatch.
const insertBatchSize = 200

// SQLSource reads entities from the source_entities table.
type SQLSource struct {
	db       *gorm.DB
	pageSize int
	log      logger.Logger
}

// NewSQLSource wraps an initialized database. pageSize <= 0 selects
// DefaultPageSize.
func NewSQLSource(db *gorm.DB, pageSize int, log logger.Logger) *SQLSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = logger.Global().Module("source")
	}
	return &SQLSource{db: db, pageSize: pageSize, log: log}
}

// sortKey renders key components so that string order matches tuple order
// for non-negative keys.
func sortKey(key []int64) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = fmt.Sprintf("%020d", k)
	}
	return strings.Join(parts, ".")
}

// Query implements Source using keyset pagination on (kind, sort_key).
func (s *SQLSource) Query(ctx context.Context, kind string) iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		var lastKey string
		pages := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(Entity{}, fmt.Errorf("query %s cancelled: %w", kind, err))
				return
			}

			var rows []entities.SourceEntityRow
			err := s.db.WithContext(ctx).
				Where("kind = ? AND sort_key > ?", kind, lastKey).
				Order("sort_key").
				Limit(s.pageSize).
				Find(&rows).Error
			if err != nil {
				yield(Entity{}, queryError(err, kind, lastKey))
				return
			}
			pages++

			for i := range rows {
				if !yield(rowToEntity(&rows[i]), nil) {
					return
				}
				lastKey = rows[i].SortKey
			}

			if len(rows) < s.pageSize {
				s.log.Debug("source query drained",
					logger.String("kind", kind),
					logger.Int("pages", pages))
				return
			}
		}
	}
}

// GetByKey implements Source.
func (s *SQLSource) GetByKey(ctx context.Context, id string) (Entity, bool, error) {
	var row entities.SourceEntityRow
	err := s.db.WithContext(ctx).Where("entity_id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entity{}, false, nil
	}
	if err != nil {
		return Entity{}, false, errors.New(fmt.Errorf("get source entity %s: %w", id, err)).
			Component("source").
			Category(errors.CategoryDatabase).
			Context("entity_id", id).
			Build()
	}
	return rowToEntity(&row), true, nil
}

// Put stores or replaces e.
func (s *SQLSource) Put(ctx context.Context, e Entity) error {
	return s.PutBatch(ctx, []Entity{e})
}

// PutBatch upserts batch in one transaction.
func (s *SQLSource) PutBatch(ctx context.Context, batch []Entity) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]entities.SourceEntityRow, 0, len(batch))
	for i := range batch {
		e := &batch[i]
		if err := e.Validate(); err != nil {
			return err
		}
		rows = append(rows, entities.SourceEntityRow{
			EntityID: e.ID(),
			Kind:     e.Kind,
			SortKey:  sortKey(e.Key),
			Keys:     e.Key,
			Data:     e.Fields,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}},
			UpdateAll: true,
		}).CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return errors.New(fmt.Errorf("store source entities: %w", err)).
			Component("source").
			Category(errors.CategoryDatabase).
			Context("count", len(rows)).
			Build()
	}
	return nil
}

func rowToEntity(row *entities.SourceEntityRow) Entity {
	fields := row.Data
	if fields == nil {
		fields = map[string]any{}
	}
	return Entity{Kind: row.Kind, Key: row.Keys, Fields: fields}
}

func queryError(err error, kind, after string) error {
	return errors.New(fmt.Errorf("query %s after %q: %w", kind, after, err)).
		Component("source").
		Category(errors.CategoryDatabase).
		Context("kind", kind).
		Build()
}
