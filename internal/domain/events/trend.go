package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Trend is a keyword learned from recent event text. Active trends extend historical searches.
type Trend struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WarID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_trend_war_keyword,priority:1" json:"war_id"`
	Keyword   string    `gorm:"column:keyword;not null;uniqueIndex:idx_trend_war_keyword,priority:2" json:"keyword"`
	Score     float64   `gorm:"column:score;not null;default:0" json:"score"`
	Active    bool      `gorm:"column:active;not null;default:true;index" json:"active"`
	LastSeen  time.Time `gorm:"column:last_seen;not null" json:"last_seen"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Trend) TableName() string { return "trend" }

func (t *Trend) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
