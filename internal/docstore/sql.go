package docstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/errors"
)

// SQLBackend stores documents in the gorm-managed "documents" table, one row
// per document keyed by its full path.
type SQLBackend struct {
	db *gorm.DB
}

// NewSQLBackend wraps an initialized database. The schema is created by
// datastore.Manager.Initialize.
func NewSQLBackend(db *gorm.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

// likeEscaper escapes LIKE wildcards using '!' as the escape character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func descendantsPattern(prefix string) string {
	return likeEscaper.Replace(prefix+PathSeparator) + "%"
}

// ListDocumentIDs implements Backend.
func (s *SQLBackend) ListDocumentIDs(ctx context.Context, collectionPath string) ([]string, error) {
	return s.children(ctx, collectionPath, "list_documents")
}

// ListCollectionIDs implements Backend.
func (s *SQLBackend) ListCollectionIDs(ctx context.Context, documentPath string) ([]string, error) {
	return s.children(ctx, documentPath, "list_collections")
}

func (s *SQLBackend) children(ctx context.Context, prefix, operation string) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).
		Model(&entities.DocumentRow{}).
		Where("path LIKE ? ESCAPE '!'", descendantsPattern(prefix)).
		Pluck("path", &paths).Error
	if err != nil {
		return nil, dbError(err, operation, prefix)
	}

	seen := make(map[string]struct{}, len(paths))
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		id := childSegment(prefix, p)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Get implements Backend.
func (s *SQLBackend) Get(ctx context.Context, documentPath string) (Document, bool, error) {
	var row entities.DocumentRow
	err := s.db.WithContext(ctx).Where("path = ?", documentPath).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dbError(err, "get", documentPath)
	}
	if row.Data == nil {
		return Document{}, true, nil
	}
	return Document(row.Data), true, nil
}

// Commit implements Backend. All writes run in one transaction.
func (s *SQLBackend) Commit(ctx context.Context, writes []Write) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range writes {
			if err := applyWrite(tx, &writes[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyWrite(tx *gorm.DB, w *Write) error {
	if w.Op == OpDelete {
		if err := tx.Where("path = ?", w.Path).Delete(&entities.DocumentRow{}).Error; err != nil {
			return dbError(err, "delete", w.Path)
		}
		return nil
	}

	parent, id := Split(w.Path)
	row := entities.DocumentRow{
		Path:       w.Path,
		ParentPath: parent,
		DocID:      id,
		Data:       map[string]any(w.Data),
	}

	switch w.Op {
	case OpCreate:
		err := tx.Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(fmt.Errorf("%w: %s", ErrAlreadyExists, w.Path)).
				Component("docstore").
				Category(errors.CategoryConflict).
				Context("path", w.Path).
				Build()
		}
		if err != nil {
			return dbError(err, "create", w.Path)
		}
	default:
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			UpdateAll: true,
		}).Create(&row).Error
		if err != nil {
			return dbError(err, "set", w.Path)
		}
	}
	return nil
}

func dbError(err error, operation, path string) error {
	return errors.New(fmt.Errorf("docstore %s %s: %w", operation, path, err)).
		Component("docstore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
