package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// TrendAnalyzer refreshes a war's learned keywords before a day is scheduled.
type TrendAnalyzer interface {
	Analyze(ctx context.Context, warID uuid.UUID, now time.Time) ([]string, error)
}

type cycleRunner interface {
	IsHistorical(target time.Time) bool
	RunCycle(ctx context.Context, warID uuid.UUID, target time.Time) (*Report, error)
}

/*
Backfill walks a war from its start date toward today, one target date per Step, through
RunCycle. The last scheduled date is persisted so a restarted process resumes at the next day.
The walk stops once the next date falls inside the live window, which the periodic live
cycle already covers.
*/
type Backfill struct {
	log     *logger.Logger
	wars    repos.WarRepo
	cursors repos.BackfillCursorRepo
	cycles  cycleRunner
	trends  TrendAnalyzer
	now     func() time.Time
}

// trends may be nil.
func NewBackfill(baseLog *logger.Logger, wars repos.WarRepo, cursors repos.BackfillCursorRepo, sched *Scheduler, trends TrendAnalyzer) *Backfill {
	return &Backfill{
		log:     baseLog.With("service", "Backfill"),
		wars:    wars,
		cursors: cursors,
		cycles:  sched,
		trends:  trends,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Next returns the date the war's next Step would schedule and whether it is still historical.
func (b *Backfill) Next(ctx context.Context, warID uuid.UUID) (time.Time, bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	war, err := b.wars.GetByID(dbc, warID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load war: %w", err)
	}
	if war == nil {
		return time.Time{}, false, fmt.Errorf("war %s: %w", warID, apperr.ErrNotFound)
	}
	cur, err := b.cursors.Get(dbc, warID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor: %w", err)
	}
	next := truncateDay(war.StartDate)
	if cur != nil {
		next = truncateDay(cur.LastDate).AddDate(0, 0, 1)
	}
	return next, b.cycles.IsHistorical(next), nil
}

// Step schedules the war's next backfill date and advances the cursor. It returns a nil report
// once the backfill has caught up with the live window. A failed cycle leaves the cursor in
// place so the same date is retried.
func (b *Backfill) Step(ctx context.Context, warID uuid.UUID) (*Report, error) {
	next, historical, err := b.Next(ctx, warID)
	if err != nil {
		return nil, err
	}
	if !historical {
		b.log.Debug("backfill caught up", "war_id", warID, "next", next.Format("2006-01-02"))
		return nil, nil
	}

	if b.trends != nil {
		if _, err := b.trends.Analyze(ctx, warID, b.now()); err != nil {
			b.log.Warn("trend analysis failed", "war_id", warID, "error", err)
		}
	}

	rep, err := b.cycles.RunCycle(ctx, warID, next)
	if err != nil {
		return nil, fmt.Errorf("backfill %s: %w", next.Format("2006-01-02"), err)
	}
	if err := b.cursors.Advance(dbctx.Context{Ctx: ctx}, warID, next); err != nil {
		return nil, fmt.Errorf("advance cursor: %w", err)
	}
	b.log.Info("backfill step", "war_id", warID, "target_date", rep.TargetDate, "mode", rep.Mode, "dispatched", rep.Dispatched)
	return rep, nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
