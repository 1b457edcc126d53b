package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskStatusQueued    = "queued"
	TaskStatusRunning   = "running"
	TaskStatusSucceeded = "succeeded"
	TaskStatusFailed    = "failed"
	TaskStatusDeferred  = "deferred"
)

// IngestTask is one unit of queued ingestion work (a source crawl, a candidate item, a historical search).
type IngestTask struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TaskType    string         `gorm:"column:task_type;not null;index" json:"task_type"`
	DedupeKey   string         `gorm:"column:dedupe_key;not null;uniqueIndex" json:"dedupe_key"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Deferrals   int            `gorm:"column:deferrals;not null;default:0" json:"deferrals"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	NotBefore   *time.Time     `gorm:"column:not_before;index" json:"not_before,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result" json:"result"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (IngestTask) TableName() string { return "ingest_task" }

func (t *IngestTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
