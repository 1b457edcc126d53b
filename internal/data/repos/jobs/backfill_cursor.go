package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type BackfillCursorRepo interface {
	// Get returns nil when the war has never been backfilled.
	Get(dbc dbctx.Context, warID uuid.UUID) (*types.BackfillCursor, error)
	Advance(dbc dbctx.Context, warID uuid.UUID, day time.Time) error
	Reset(dbc dbctx.Context, warID uuid.UUID) error
}

type backfillCursorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBackfillCursorRepo(db *gorm.DB, baseLog *logger.Logger) BackfillCursorRepo {
	return &backfillCursorRepo{
		db:  db,
		log: baseLog.With("repo", "BackfillCursorRepo"),
	}
}

func (r *backfillCursorRepo) Get(dbc dbctx.Context, warID uuid.UUID) (*types.BackfillCursor, error) {
	var rows []*types.BackfillCursor
	if err := dbc.Conn(r.db).Where("war_id = ?", warID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Advance records day as the last scheduled date.
func (r *backfillCursorRepo) Advance(dbc dbctx.Context, warID uuid.UUID, day time.Time) error {
	d := day.UTC()
	row := &types.BackfillCursor{
		WarID:    warID,
		LastDate: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "war_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_date", "updated_at"}),
		}).
		Create(row).Error
}

func (r *backfillCursorRepo) Reset(dbc dbctx.Context, warID uuid.UUID) error {
	return dbc.Conn(r.db).Where("war_id = ?", warID).Delete(&types.BackfillCursor{}).Error
}
