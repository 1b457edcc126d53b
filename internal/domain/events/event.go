package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CategoryCombat     = "COMBAT"
	CategoryClash      = "CLASH"
	CategoryPolitical  = "POLITICAL"
	CategoryCasualties = "CASUALTIES"
	CategoryProtest    = "PROTEST"
)

// Event is one persisted, dated, geolocated occurrence. A multi-location report yields one
// Event per location; they share OriginURL and differ in LocationIndex and HashKey.
type Event struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WarID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_event_war_date,priority:1" json:"war_id"`
	Title         string     `gorm:"column:title;not null" json:"title"`
	Description   string     `gorm:"column:description" json:"description"`
	Category      string     `gorm:"column:category;index" json:"category"`
	EventDate     time.Time  `gorm:"column:event_date;not null;index:idx_event_war_date,priority:2" json:"event_date"`
	Lat           float64    `gorm:"column:lat;not null" json:"lat"`
	Lng           float64    `gorm:"column:lng;not null" json:"lng"`
	LocationName  string     `gorm:"column:location_name" json:"location_name,omitempty"`
	OriginURL     string     `gorm:"column:origin_url;not null;uniqueIndex:idx_event_origin_location,priority:1" json:"origin_url"`
	LocationIndex int        `gorm:"column:location_index;not null;default:0;uniqueIndex:idx_event_origin_location,priority:2" json:"location_index"`
	ImageURL      string     `gorm:"column:image_url" json:"image_url,omitempty"`
	VideoURL      string     `gorm:"column:video_url" json:"video_url,omitempty"`
	HashKey       string     `gorm:"column:hash_key;not null;uniqueIndex" json:"hash_key"`
	DedupKey      string     `gorm:"column:dedup_key;index" json:"dedup_key,omitempty"`
	EvidenceScore int        `gorm:"column:evidence_score;not null;default:1;index" json:"evidence_score"`
	SourceID      *uuid.UUID `gorm:"type:uuid;column:source_id;index" json:"source_id,omitempty"`
	Captured      bool       `gorm:"column:captured;not null;default:false" json:"captured"`
	Victor        string     `gorm:"column:victor" json:"victor,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string { return "event" }

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
