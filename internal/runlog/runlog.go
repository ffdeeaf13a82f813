// Package runlog persists per-kind sync pass history in the target database.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/migration"
)

// DefaultRecentLimit is used by Recent when limit is not positive.
const DefaultRecentLimit = 20

// maxErrorLength truncates stored error messages.
const maxErrorLength = 2000

// ErrStaleTransition is returned when a phase update does not match the
// stored phase.
var ErrStaleTransition = errors.NewStd("run is not in the expected phase")

// Store records passes in the sync_runs table. It implements
// migration.RunRecorder.
type Store struct {
	db  *gorm.DB
	log logger.Logger
	now func() time.Time
}

var _ migration.RunRecorder = (*Store)(nil)

// NewStore wraps an initialized database.
func NewStore(db *gorm.DB, log logger.Logger) *Store {
	if log == nil {
		log = logger.Global().Module("runlog")
	}
	return &Store{db: db, log: log, now: time.Now}
}

// StartRun inserts a running row and returns its id.
func (s *Store) StartRun(ctx context.Context, kind string, strategy migration.Strategy, skipDelete bool) (string, error) {
	run := entities.SyncRun{
		ID:         uuid.NewString(),
		Kind:       kind,
		Phase:      migration.PhaseIdle.String(),
		Status:     entities.SyncRunStatusRunning,
		Strategy:   string(strategy),
		SkipDelete: skipDelete,
		StartedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return "", dbError(err, "start run", kind)
	}
	s.log.Debug("run recorded", logger.String("run_id", run.ID), logger.String("kind", kind))
	return run.ID, nil
}

// RecordPhase moves runID from one phase to the next. The update only
// applies while the row is still in from.
func (s *Store) RecordPhase(ctx context.Context, runID string, from, to migration.Phase) error {
	res := s.db.WithContext(ctx).
		Model(&entities.SyncRun{}).
		Where("id = ? AND phase = ?", runID, from.String()).
		Update("phase", to.String())
	if res.Error != nil {
		return dbError(res.Error, "record phase", runID)
	}
	if res.RowsAffected == 0 {
		return errors.New(fmt.Errorf("%w: run %s, %s -> %s", ErrStaleTransition, runID, from, to)).
			Component("runlog").
			Category(errors.CategoryState).
			Context("run_id", runID).
			Build()
	}
	return nil
}

// FinishRun stores the final phase, counters and error of a pass.
func (s *Store) FinishRun(ctx context.Context, result *migration.PassResult, runErr error) error {
	if result == nil {
		return errors.ValidationError("finish run needs a result")
	}
	status := entities.SyncRunStatusCompleted
	msg := ""
	if runErr != nil {
		status = entities.SyncRunStatusFailed
		msg = runErr.Error()
		if len(msg) > maxErrorLength {
			msg = msg[:maxErrorLength]
		}
	}
	completed := s.now()

	res := s.db.WithContext(ctx).
		Model(&entities.SyncRun{}).
		Where("id = ?", result.RunID).
		Updates(map[string]any{
			"phase":             result.Phase.String(),
			"status":            status,
			"completed_at":      &completed,
			"pulled":            result.Pulled,
			"transformed":       result.Transformed,
			"deletes_attempted": result.DeletesAttempted,
			"deletes_failed":    result.DeletesFailed,
			"loaded":            result.Loaded,
			"commits":           result.Commits,
			"error_message":     msg,
		})
	if res.Error != nil {
		return dbError(res.Error, "finish run", result.RunID)
	}
	if res.RowsAffected == 0 {
		return errors.Newf("run %s not found", result.RunID).
			Component("runlog").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// Get returns one run.
func (s *Store) Get(ctx context.Context, runID string) (*entities.SyncRun, error) {
	var run entities.SyncRun
	err := s.db.WithContext(ctx).Where("id = ?", runID).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Newf("run %s not found", runID).
			Component("runlog").
			Category(errors.CategoryNotFound).
			Build()
	}
	if err != nil {
		return nil, dbError(err, "get run", runID)
	}
	return &run, nil
}

// Recent returns the latest runs, newest first. A non-empty kind filters
// by kind.
func (s *Store) Recent(ctx context.Context, kind string, limit int) ([]entities.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var runs []entities.SyncRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, dbError(err, "list runs", kind)
	}
	return runs, nil
}

// Active returns runs still marked as running. After a crash these are
// passes that never finished.
func (s *Store) Active(ctx context.Context) ([]entities.SyncRun, error) {
	var runs []entities.SyncRun
	err := s.db.WithContext(ctx).
		Where("status = ?", entities.SyncRunStatusRunning).
		Order("started_at").
		Find(&runs).Error
	if err != nil {
		return nil, dbError(err, "list active runs", "")
	}
	return runs, nil
}

func dbError(err error, op, subject string) error {
	return errors.New(fmt.Errorf("%s %s: %w", op, subject, err)).
		Component("runlog").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}
