package conflict

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// TerritorySnapshotRepo inserts, reads and prunes. Snapshots are never updated.
type TerritorySnapshotRepo interface {
	Create(dbc dbctx.Context, s *types.TerritorySnapshot) (*types.TerritorySnapshot, error)
	Latest(dbc dbctx.Context, factionID uuid.UUID) (*types.TerritorySnapshot, error)
	// LatestAsOf resolves the newest snapshot with effective_date <= date whose end_date, if set, is >= date.
	LatestAsOf(dbc dbctx.Context, factionID uuid.UUID, date time.Time) (*types.TerritorySnapshot, error)
	ExistsOnDate(dbc dbctx.Context, factionID uuid.UUID, date time.Time) (bool, error)
	ListForFaction(dbc dbctx.Context, factionID uuid.UUID) ([]*types.TerritorySnapshot, error)
	ListBefore(dbc dbctx.Context, factionID uuid.UUID, cutoff time.Time) ([]*types.TerritorySnapshot, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type territorySnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTerritorySnapshotRepo(db *gorm.DB, baseLog *logger.Logger) TerritorySnapshotRepo {
	return &territorySnapshotRepo{db: db, log: baseLog.With("repo", "TerritorySnapshotRepo")}
}

func (r *territorySnapshotRepo) Create(dbc dbctx.Context, s *types.TerritorySnapshot) (*types.TerritorySnapshot, error) {
	if err := dbc.Conn(r.db).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *territorySnapshotRepo) first(q *gorm.DB) (*types.TerritorySnapshot, error) {
	var s types.TerritorySnapshot
	err := q.Order("effective_date DESC").Order("created_at DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *territorySnapshotRepo) Latest(dbc dbctx.Context, factionID uuid.UUID) (*types.TerritorySnapshot, error) {
	return r.first(dbc.Conn(r.db).Where("faction_id = ?", factionID))
}

func (r *territorySnapshotRepo) LatestAsOf(dbc dbctx.Context, factionID uuid.UUID, date time.Time) (*types.TerritorySnapshot, error) {
	return r.first(dbc.Conn(r.db).
		Where("faction_id = ? AND effective_date <= ?", factionID, date).
		Where("end_date IS NULL OR end_date >= ?", date))
}

func (r *territorySnapshotRepo) ExistsOnDate(dbc dbctx.Context, factionID uuid.UUID, date time.Time) (bool, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var n int64
	err := dbc.Conn(r.db).
		Model(&types.TerritorySnapshot{}).
		Where("faction_id = ? AND effective_date >= ? AND effective_date < ?", factionID, start, start.AddDate(0, 0, 1)).
		Count(&n).Error
	return n > 0, err
}

func (r *territorySnapshotRepo) ListForFaction(dbc dbctx.Context, factionID uuid.UUID) ([]*types.TerritorySnapshot, error) {
	var out []*types.TerritorySnapshot
	err := dbc.Conn(r.db).
		Where("faction_id = ?", factionID).
		Order("effective_date ASC").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *territorySnapshotRepo) ListBefore(dbc dbctx.Context, factionID uuid.UUID, cutoff time.Time) ([]*types.TerritorySnapshot, error) {
	var out []*types.TerritorySnapshot
	err := dbc.Conn(r.db).
		Where("faction_id = ? AND effective_date < ?", factionID, cutoff).
		Order("effective_date ASC").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *territorySnapshotRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.Conn(r.db).Where("id IN ?", ids).Delete(&types.TerritorySnapshot{})
	return res.RowsAffected, res.Error
}
