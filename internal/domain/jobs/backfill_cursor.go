package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BackfillCursor is the last target date a war's backfill has scheduled. The next step
// resumes at the following day.
type BackfillCursor struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WarID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"war_id"`
	LastDate  time.Time `gorm:"column:last_date;not null" json:"last_date"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (BackfillCursor) TableName() string { return "backfill_cursor" }

func (c *BackfillCursor) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
