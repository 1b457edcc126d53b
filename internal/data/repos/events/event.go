package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type EventRepo interface {
	// CreateIfAbsent inserts ev unless any unique key (hash, origin+location) already exists.
	CreateIfAbsent(dbc dbctx.Context, ev *types.Event) (bool, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Event, error)
	ExistsByURLOrHash(dbc dbctx.Context, originURL, hashKey string) (bool, error)
	ExistsByDedupKey(dbc dbctx.Context, warID uuid.UUID, dedupKey string) (bool, error)
	CountByOriginURL(dbc dbctx.Context, originURL string) (int64, error)
	// ListOnDay returns events dated on day ordered by evidence then recency.
	ListOnDay(dbc dbctx.Context, warID uuid.UUID, day time.Time, limit int, minEvidence int) ([]*types.Event, error)
	ListLatest(dbc dbctx.Context, warID uuid.UUID, limit int) ([]*types.Event, error)
	// ListCreatedSince returns events ingested at or after since, newest first.
	ListCreatedSince(dbc dbctx.Context, warID uuid.UUID, since time.Time, limit int) ([]*types.Event, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{
		db:  db,
		log: baseLog.With("repo", "EventRepo"),
	}
}

func (r *eventRepo) CreateIfAbsent(dbc dbctx.Context, ev *types.Event) (bool, error) {
	if ev == nil {
		return false, nil
	}
	res := dbc.Conn(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Event, error) {
	var ev types.Event
	err := dbc.Conn(r.db).Where("id = ?", id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *eventRepo) ExistsByURLOrHash(dbc dbctx.Context, originURL, hashKey string) (bool, error) {
	if originURL == "" && hashKey == "" {
		return false, nil
	}
	var count int64
	err := dbc.Conn(r.db).
		Model(&types.Event{}).
		Where("origin_url = ? OR hash_key = ?", originURL, hashKey).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *eventRepo) ExistsByDedupKey(dbc dbctx.Context, warID uuid.UUID, dedupKey string) (bool, error) {
	if dedupKey == "" {
		return false, nil
	}
	var count int64
	err := dbc.Conn(r.db).
		Model(&types.Event{}).
		Where("war_id = ? AND dedup_key = ?", warID, dedupKey).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *eventRepo) CountByOriginURL(dbc dbctx.Context, originURL string) (int64, error) {
	var count int64
	err := dbc.Conn(r.db).
		Model(&types.Event{}).
		Where("origin_url = ?", originURL).
		Count(&count).Error
	return count, err
}

func (r *eventRepo) ListOnDay(dbc dbctx.Context, warID uuid.UUID, day time.Time, limit int, minEvidence int) ([]*types.Event, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	var out []*types.Event
	if limit <= 0 {
		return out, nil
	}
	err := dbc.Conn(r.db).
		Where("war_id = ? AND event_date >= ? AND event_date < ? AND evidence_score >= ?", warID, start, end, minEvidence).
		Order("evidence_score DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) ListLatest(dbc dbctx.Context, warID uuid.UUID, limit int) ([]*types.Event, error) {
	var out []*types.Event
	err := dbc.Conn(r.db).
		Where("war_id = ?", warID).
		Order("event_date DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) ListCreatedSince(dbc dbctx.Context, warID uuid.UUID, since time.Time, limit int) ([]*types.Event, error) {
	var out []*types.Event
	q := dbc.Conn(r.db).
		Where("war_id = ? AND created_at >= ?", warID, since.UTC()).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
