package conflict

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SnapshotSourceManual   = "manual"
	SnapshotSourceCapture  = "automated_capture"
	SnapshotSourcePeriodic = "periodic"
)

// TerritorySnapshot is an immutable dated version of one faction's control geometry.
// Rows are inserted and pruned, never updated.
type TerritorySnapshot struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FactionID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_snapshot_faction_effective,priority:1" json:"faction_id"`
	EffectiveDate time.Time      `gorm:"column:effective_date;not null;index:idx_snapshot_faction_effective,priority:2" json:"effective_date"`
	EndDate       *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	IsPermanent   bool           `gorm:"column:is_permanent;not null;default:false" json:"is_permanent"`
	Territory     datatypes.JSON `gorm:"column:territory_geojson" json:"territory_geojson"`
	Source        string         `gorm:"column:source;not null;index" json:"source"`
	SourceEventID *uuid.UUID     `gorm:"type:uuid;column:source_event_id" json:"source_event_id,omitempty"`
	Notes         string         `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (TerritorySnapshot) TableName() string { return "territory_snapshot" }

func (s *TerritorySnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
