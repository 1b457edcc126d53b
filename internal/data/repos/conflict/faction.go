package conflict

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type FactionRepo interface {
	Create(dbc dbctx.Context, f *types.Faction) (*types.Faction, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Faction, error)
	ListByWar(dbc dbctx.Context, warID uuid.UUID) ([]*types.Faction, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Faction, error)
	UpdateTerritory(dbc dbctx.Context, id uuid.UUID, territory datatypes.JSON) error
}

type factionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFactionRepo(db *gorm.DB, baseLog *logger.Logger) FactionRepo {
	return &factionRepo{db: db, log: baseLog.With("repo", "FactionRepo")}
}

func (r *factionRepo) Create(dbc dbctx.Context, f *types.Faction) (*types.Faction, error) {
	if err := dbc.Conn(r.db).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func (r *factionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Faction, error) {
	var f types.Faction
	err := dbc.Conn(r.db).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *factionRepo) ListByWar(dbc dbctx.Context, warID uuid.UUID) ([]*types.Faction, error) {
	var out []*types.Faction
	if err := dbc.Conn(r.db).
		Where("war_id = ?", warID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *factionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Faction, error) {
	var f types.Faction
	err := dbc.Conn(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *factionRepo) UpdateTerritory(dbc dbctx.Context, id uuid.UUID, territory datatypes.JSON) error {
	return dbc.Conn(r.db).
		Model(&types.Faction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"territory_geojson": territory,
			"updated_at":        time.Now().UTC(),
		}).Error
}
