package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/frontline-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureEventIndexes adds the descending read index used by the date-page query.
// Both dialects accept this form.
func EnsureEventIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_event_war_date_evidence ON event (war_id, event_date, evidence_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_task_runnable ON ingest_task (status, not_before, created_at)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	if err := AutoMigrateAll(s.db); err != nil {
		return err
	}
	if err := EnsureEventIndexes(s.db); err != nil {
		return err
	}
	s.log.Info("Schema migrated")
	return nil
}
