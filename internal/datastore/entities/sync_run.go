package entities

import "time"

// SyncRunStatus represents the outcome of a per-kind sync pass.
type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// SyncRun records one per-kind pass and its counters.
type SyncRun struct {
	ID               string        `gorm:"primaryKey;size:36"`
	Kind             string        `gorm:"size:64;not null;index"`
	Phase            string        `gorm:"type:varchar(20);not null;default:'idle'"`
	Status           SyncRunStatus `gorm:"type:varchar(20);not null;default:'running'"`
	Strategy         string        `gorm:"type:varchar(20)"`
	SkipDelete       bool
	StartedAt        time.Time `gorm:"index"`
	CompletedAt      *time.Time
	Pulled           int
	Transformed      int
	DeletesAttempted int
	DeletesFailed    int
	Loaded           int
	Commits          int
	ErrorMessage     string    `gorm:"type:text"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (SyncRun) TableName() string {
	return "sync_runs"
}

// Duration returns how long the pass ran, or 0 while it is still running.
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// IsActive returns true while the pass has not finished.
func (r *SyncRun) IsActive() bool {
	return r.Status == SyncRunStatusRunning
}
