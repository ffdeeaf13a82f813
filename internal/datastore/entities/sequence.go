package entities

import "time"

// SequenceRow holds the last issued display number for a kind.
type SequenceRow struct {
	Kind      string    `gorm:"primaryKey;size:64"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (SequenceRow) TableName() string {
	return "sequences"
}

// SequenceAssignment records the number issued to one source entity so a
// re-run reuses it.
type SequenceAssignment struct {
	Kind      string    `gorm:"primaryKey;size:64"`
	EntityKey string    `gorm:"primaryKey;size:191"`
	Value     string    `gorm:"not null;size:32"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (SequenceAssignment) TableName() string {
	return "sequence_assignments"
}
