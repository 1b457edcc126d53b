package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type TrendRepo interface {
	// Upsert sets the score and reactivates the keyword.
	Upsert(dbc dbctx.Context, warID uuid.UUID, keyword string, score float64, at time.Time) error
	// DeactivateExcept turns off every active keyword of the war not in keep.
	DeactivateExcept(dbc dbctx.Context, warID uuid.UUID, keep []string) (int64, error)
	// ListActive returns active keywords by descending score.
	ListActive(dbc dbctx.Context, warID uuid.UUID, limit int) ([]*types.Trend, error)
}

type trendRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrendRepo(db *gorm.DB, baseLog *logger.Logger) TrendRepo {
	return &trendRepo{
		db:  db,
		log: baseLog.With("repo", "TrendRepo"),
	}
}

func (r *trendRepo) Upsert(dbc dbctx.Context, warID uuid.UUID, keyword string, score float64, at time.Time) error {
	row := &types.Trend{
		WarID:    warID,
		Keyword:  keyword,
		Score:    score,
		Active:   true,
		LastSeen: at.UTC(),
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "war_id"}, {Name: "keyword"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "active", "last_seen"}),
		}).
		Create(row).Error
}

func (r *trendRepo) DeactivateExcept(dbc dbctx.Context, warID uuid.UUID, keep []string) (int64, error) {
	q := dbc.Conn(r.db).
		Model(&types.Trend{}).
		Where("war_id = ? AND active = ?", warID, true)
	if len(keep) > 0 {
		q = q.Where("keyword NOT IN ?", keep)
	}
	res := q.Update("active", false)
	return res.RowsAffected, res.Error
}

func (r *trendRepo) ListActive(dbc dbctx.Context, warID uuid.UUID, limit int) ([]*types.Trend, error) {
	var out []*types.Trend
	q := dbc.Conn(r.db).
		Where("war_id = ? AND active = ?", warID, true).
		Order("score DESC").
		Order("keyword ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
