package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const (
	DefaultDayLimit    = 50
	MaxDayLimit        = 500
	LatestEventsLimit  = 100
	SurplusMinEvidence = 3
)

type EventQuery struct {
	WarID uuid.UUID
	// Date nil selects the latest events regardless of day.
	Date        *time.Time
	Limit       int
	MinEvidence int
}

type EventService interface {
	// EventsOnDate lists the day's events by evidence. A quiet day is topped up with the
	// previous day's major events.
	EventsOnDate(ctx context.Context, q EventQuery) ([]*types.Event, error)
}

type eventService struct {
	db     *gorm.DB
	log    *logger.Logger
	wars   repos.WarRepo
	events repos.EventRepo
}

func NewEventService(db *gorm.DB, baseLog *logger.Logger, wars repos.WarRepo, events repos.EventRepo) EventService {
	return &eventService{
		db:     db,
		log:    baseLog.With("service", "EventService"),
		wars:   wars,
		events: events,
	}
}

func (s *eventService) EventsOnDate(ctx context.Context, q EventQuery) ([]*types.Event, error) {
	if q.WarID == uuid.Nil {
		return nil, fmt.Errorf("missing war id: %w", apperr.ErrInvalidArgument)
	}
	if q.MinEvidence < 0 {
		return nil, fmt.Errorf("min_evidence must be >= 0: %w", apperr.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx, Tx: s.db}
	war, err := s.wars.GetByID(dbc, q.WarID)
	if err != nil {
		return nil, err
	}
	if war == nil {
		return nil, fmt.Errorf("war %s: %w", q.WarID, apperr.ErrNotFound)
	}
	if q.Date == nil {
		return s.events.ListLatest(dbc, q.WarID, LatestEventsLimit)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultDayLimit
	}
	if limit > MaxDayLimit {
		limit = MaxDayLimit
	}
	out, err := s.events.ListOnDay(dbc, q.WarID, *q.Date, limit, q.MinEvidence)
	if err != nil {
		return nil, fmt.Errorf("list events on day: %w", err)
	}
	if len(out) >= limit {
		return out, nil
	}
	floor := SurplusMinEvidence
	if q.MinEvidence > floor {
		floor = q.MinEvidence
	}
	prev := q.Date.AddDate(0, 0, -1)
	surplus, err := s.events.ListOnDay(dbc, q.WarID, prev, limit-len(out), floor)
	if err != nil {
		// The day's own events still answer the query.
		s.log.Warn("surplus lookup failed", "war_id", q.WarID, "day", prev.Format("2006-01-02"), "error", err)
		return out, nil
	}
	return append(out, surplus...), nil
}
