// Package sequence issues monotonically increasing display numbers per kind.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/errors"
)

// Counter issues decimal display numbers per kind.
type Counter interface {
	// Next returns the next value for kind.
	Next(ctx context.Context, kind string) (string, error)
	// Assign returns the value recorded for key, issuing and recording the
	// next value for kind the first time key is seen.
	Assign(ctx context.Context, kind, key string) (string, error)
}

// SQLCounter persists counters in the sequences table.
type SQLCounter struct {
	db *gorm.DB
}

// NewSQLCounter wraps an initialized database.
func NewSQLCounter(db *gorm.DB) *SQLCounter {
	return &SQLCounter{db: db}
}

// Next implements Counter. The increment and the read share one transaction.
func (c *SQLCounter) Next(ctx context.Context, kind string) (string, error) {
	if kind == "" {
		return "", errors.ValidationError("sequence kind is required")
	}

	var value int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		value, err = increment(tx, kind)
		return err
	})
	if err != nil {
		return "", sequenceError(fmt.Errorf("next sequence for %s: %w", kind, err), kind)
	}
	return strconv.FormatInt(value, 10), nil
}

// Assign implements Counter. The assignment lives in the same database as
// the counter, so numbers survive restarts and are shared between
// processes. When two writers race on a new key the loser's increment is
// discarded and both return the stored value.
func (c *SQLCounter) Assign(ctx context.Context, kind, key string) (string, error) {
	if kind == "" || key == "" {
		return "", errors.ValidationError("sequence kind and key are required")
	}

	var value string
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := lookupAssignment(tx, kind, key)
		if err != nil || found != "" {
			value = found
			return err
		}

		n, err := increment(tx, kind)
		if err != nil {
			return err
		}
		row := entities.SequenceAssignment{Kind: kind, EntityKey: key, Value: strconv.FormatInt(n, 10)}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		value, err = lookupAssignment(tx, kind, key)
		return err
	})
	if err != nil {
		return "", sequenceError(fmt.Errorf("assign sequence for %s %s: %w", kind, key, err), kind)
	}
	return value, nil
}

func increment(tx *gorm.DB, kind string) (int64, error) {
	row := entities.SequenceRow{Kind: kind, Value: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}},
		DoUpdates: clause.Assignments(map[string]any{"value": gorm.Expr("value + 1")}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}
	var value int64
	err = tx.Model(&entities.SequenceRow{}).
		Where("kind = ?", kind).
		Pluck("value", &value).Error
	return value, err
}

func lookupAssignment(tx *gorm.DB, kind, key string) (string, error) {
	var values []string
	err := tx.Model(&entities.SequenceAssignment{}).
		Where("kind = ? AND entity_key = ?", kind, key).
		Pluck("value", &values).Error
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

func sequenceError(err error, kind string) error {
	return errors.New(err).
		Component("sequence").
		Category(errors.CategoryDatabase).
		Context("kind", kind).
		Build()
}

// Current returns the last issued value for kind, or 0.
func (c *SQLCounter) Current(ctx context.Context, kind string) (int64, error) {
	var values []int64
	err := c.db.WithContext(ctx).Model(&entities.SequenceRow{}).
		Where("kind = ?", kind).
		Pluck("value", &values).Error
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}

// MemoryCounter is an in-process Counter.
type MemoryCounter struct {
	mu       sync.Mutex
	values   map[string]int64
	assigned map[string]string
}

// NewMemoryCounter returns a counter starting every kind at start.
func NewMemoryCounter(start map[string]int64) *MemoryCounter {
	values := make(map[string]int64, len(start))
	for k, v := range start {
		values[k] = v
	}
	return &MemoryCounter{values: values, assigned: make(map[string]string)}
}

// Next implements Counter.
func (c *MemoryCounter) Next(ctx context.Context, kind string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[kind]++
	return strconv.FormatInt(c.values[kind], 10), nil
}

// Assign implements Counter.
func (c *MemoryCounter) Assign(ctx context.Context, kind, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	memo := kind + "\x00" + key
	if v, ok := c.assigned[memo]; ok {
		return v, nil
	}
	c.values[kind]++
	v := strconv.FormatInt(c.values[kind], 10)
	c.assigned[memo] = v
	return v, nil
}
