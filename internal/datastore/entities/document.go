// Package entities holds the gorm models backing the sync stores.
package entities

import "time"

// DocumentRow is one document of the hierarchical target store.
// Path is the full slash-separated document path; ParentPath is the
// owning collection path.
type DocumentRow struct {
	Path       string         `gorm:"primaryKey;size:512"`
	ParentPath string         `gorm:"size:512;not null;index:idx_documents_parent"`
	DocID      string         `gorm:"size:255;not null"`
	Data       map[string]any `gorm:"serializer:json;type:longtext"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (DocumentRow) TableName() string {
	return "documents"
}
