package entities

// SourceEntityRow is one flat source-of-record entity.
// EntityID is the derived "<kind>-<k1>-<k2>..." identifier.
type SourceEntityRow struct {
	EntityID string         `gorm:"primaryKey;size:191"`
	Kind     string         `gorm:"size:64;not null;index:idx_source_kind_id,priority:1"`
	SortKey  string         `gorm:"size:191;not null;index:idx_source_kind_id,priority:2"`
	Keys     []int64        `gorm:"serializer:json;type:text"`
	Data     map[string]any `gorm:"serializer:json;type:longtext"`
}

// TableName returns the table name for GORM.
func (SourceEntityRow) TableName() string {
	return "source_entities"
}
