package geo

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type GeocodeCacheRepo interface {
	Get(dbc dbctx.Context, searchTerm string) (*types.GeocodeCacheEntry, error)
	// Put stores entry; an existing row for the same term wins.
	Put(dbc dbctx.Context, entry *types.GeocodeCacheEntry) error
	Count(dbc dbctx.Context) (int64, error)
}

type geocodeCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeocodeCacheRepo(db *gorm.DB, baseLog *logger.Logger) GeocodeCacheRepo {
	return &geocodeCacheRepo{
		db:  db,
		log: baseLog.With("repo", "GeocodeCacheRepo"),
	}
}

// NormalizeTerm is the cache key form of a place name.
func NormalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *geocodeCacheRepo) Get(dbc dbctx.Context, searchTerm string) (*types.GeocodeCacheEntry, error) {
	key := NormalizeTerm(searchTerm)
	if key == "" {
		return nil, nil
	}
	var row types.GeocodeCacheEntry
	if err := dbc.Conn(r.db).Where("search_term = ?", key).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.SearchTerm == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *geocodeCacheRepo) Put(dbc dbctx.Context, entry *types.GeocodeCacheEntry) error {
	if entry == nil {
		return nil
	}
	entry.SearchTerm = NormalizeTerm(entry.SearchTerm)
	if entry.SearchTerm == "" {
		return nil
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "search_term"}}, DoNothing: true}).
		Create(entry).Error
}

func (r *geocodeCacheRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).Model(&types.GeocodeCacheEntry{}).Count(&n).Error
	return n, err
}
