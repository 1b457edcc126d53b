package conflict

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Faction holds the live control geometry as a GeoJSON FeatureCollection.
type Faction struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WarID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"war_id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	ShortName string         `gorm:"column:short_name;not null;default:''" json:"short_name"`
	Color     string         `gorm:"column:color;not null;default:'#888888'" json:"color"`
	Territory datatypes.JSON `gorm:"column:territory_geojson" json:"territory_geojson"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (Faction) TableName() string { return "faction" }

func (f *Faction) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
