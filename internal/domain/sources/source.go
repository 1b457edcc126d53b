package sources

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusProbation = "probation"
	StatusTrusted   = "trusted"
	StatusBanned    = "banned"

	DefaultReliabilityScore = 50.0
)

// Source is a content origin account (platform + handle). Sources are demoted, never deleted.
type Source struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Platform         string     `gorm:"column:platform;not null;uniqueIndex:idx_source_platform_handle,priority:1" json:"platform"`
	Handle           string     `gorm:"column:handle;not null;uniqueIndex:idx_source_platform_handle,priority:2" json:"handle"`
	Name             string     `gorm:"column:name" json:"name"`
	Status           string     `gorm:"column:status;not null;default:'probation';index" json:"status"`
	ReliabilityScore float64    `gorm:"column:reliability_score;not null;default:50" json:"reliability_score"`
	LastCrawledAt    *time.Time `gorm:"column:last_crawled_at;index" json:"last_crawled_at,omitempty"`
	LastDispatchedAt *time.Time `gorm:"column:last_dispatched_at" json:"last_dispatched_at,omitempty"`
	TotalItemsFound  int        `gorm:"column:total_items_found;not null;default:0" json:"total_items_found"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (Source) TableName() string { return "source" }

func (s *Source) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
