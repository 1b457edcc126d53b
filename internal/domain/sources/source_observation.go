package sources

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceObservation counts one source's outcomes for one UTC calendar day.
type SourceObservation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_observation_source_day,priority:1" json:"source_id"`
	Day           time.Time `gorm:"column:day;not null;uniqueIndex:idx_observation_source_day,priority:2" json:"day"`
	ItemsFound    int       `gorm:"column:items_found;not null;default:0" json:"items_found"`
	ItemsAccepted int       `gorm:"column:items_accepted;not null;default:0" json:"items_accepted"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (SourceObservation) TableName() string { return "source_observation" }

func (o *SourceObservation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
