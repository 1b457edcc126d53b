package conflict

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// War scopes factions and events. DefaultLat/DefaultLng is the anchor used when
// a non-strict ingestion path cannot place an event.
type War struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Country    string    `gorm:"column:country;not null;default:''" json:"country"`
	DefaultLat float64   `gorm:"column:default_lat;not null;default:0" json:"default_lat"`
	DefaultLng float64   `gorm:"column:default_lng;not null;default:0" json:"default_lng"`
	StartDate  time.Time `gorm:"column:start_date;not null" json:"start_date"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (War) TableName() string { return "war" }

func (w *War) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
