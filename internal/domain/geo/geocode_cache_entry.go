package geo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GeocodeCacheEntry maps a normalized search term to a resolved point. Entries are never invalidated.
type GeocodeCacheEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SearchTerm  string    `gorm:"column:search_term;not null;uniqueIndex" json:"search_term"`
	Lat         float64   `gorm:"column:lat;not null" json:"lat"`
	Lng         float64   `gorm:"column:lng;not null" json:"lng"`
	DisplayName string    `gorm:"column:display_name" json:"display_name"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (GeocodeCacheEntry) TableName() string { return "geocode_cache" }

func (e *GeocodeCacheEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
