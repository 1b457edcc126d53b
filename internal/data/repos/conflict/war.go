package conflict

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/db"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type WarRepo interface {
	Create(dbc dbctx.Context, war *types.War) (*types.War, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.War, error)
	GetByName(dbc dbctx.Context, name string) (*types.War, error)
	List(dbc dbctx.Context) ([]*types.War, error)
}

type warRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWarRepo(db *gorm.DB, baseLog *logger.Logger) WarRepo {
	return &warRepo{db: db, log: baseLog.With("repo", "WarRepo")}
}

func (r *warRepo) Create(dbc dbctx.Context, war *types.War) (*types.War, error) {
	if err := dbc.Conn(r.db).Create(war).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("war %q: %w", war.Name, apperr.ErrDuplicate)
		}
		return nil, err
	}
	return war, nil
}

func (r *warRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.War, error) {
	var w types.War
	err := dbc.Conn(r.db).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *warRepo) GetByName(dbc dbctx.Context, name string) (*types.War, error) {
	var w types.War
	err := dbc.Conn(r.db).Where("name = ?", name).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *warRepo) List(dbc dbctx.Context) ([]*types.War, error) {
	var out []*types.War
	if err := dbc.Conn(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
