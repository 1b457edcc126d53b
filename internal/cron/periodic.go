package cronrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/scheduler"
)

const (
	SnapshotSpec   = "0 5 0 * * *"
	CompactionSpec = "0 0 3 * * 0"
)

type Snapshotter interface {
	SnapshotAllWars(ctx context.Context, date time.Time) (int, error)
	Compact(ctx context.Context, now time.Time) (int64, error)
}

type CycleRunner interface {
	RunCycle(ctx context.Context, warID uuid.UUID, target time.Time) (*scheduler.Report, error)
}

type Backfiller interface {
	// Step returns a nil report once the war has caught up.
	Step(ctx context.Context, warID uuid.UUID) (*scheduler.Report, error)
}

type PeriodicConfig struct {
	// ScheduleInterval spaces live scheduling cycles; 0 disables them.
	ScheduleInterval time.Duration
	// BackfillInterval spaces backfill steps; 0 disables them.
	BackfillInterval time.Duration
}

// Periodic holds the recurring maintenance jobs.
type Periodic struct {
	log       *logger.Logger
	wars      repos.WarRepo
	territory Snapshotter
	scheduler CycleRunner
	backfill  Backfiller
	cfg       PeriodicConfig
	now       func() time.Time
}

func NewPeriodic(
	baseLog *logger.Logger,
	wars repos.WarRepo,
	territory Snapshotter,
	sched CycleRunner,
	backfill Backfiller,
	cfg PeriodicConfig,
) *Periodic {
	return &Periodic{
		log:       baseLog.With("service", "Periodic"),
		wars:      wars,
		territory: territory,
		scheduler: sched,
		backfill:  backfill,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register adds the nightly snapshot and the weekly compaction, then the scheduling cycle and
// the backfill step when their intervals are set.
func (p *Periodic) Register(r *Runner) error {
	if _, err := r.Add("snapshot", SnapshotSpec, p.Snapshot); err != nil {
		return fmt.Errorf("register snapshot: %w", err)
	}
	if _, err := r.Add("compact", CompactionSpec, p.Compact); err != nil {
		return fmt.Errorf("register compaction: %w", err)
	}
	if p.cfg.ScheduleInterval > 0 {
		spec := "@every " + p.cfg.ScheduleInterval.String()
		if _, err := r.Add("schedule", spec, p.Schedule); err != nil {
			return fmt.Errorf("register schedule: %w", err)
		}
	}
	if p.cfg.BackfillInterval > 0 && p.backfill != nil {
		spec := "@every " + p.cfg.BackfillInterval.String()
		if _, err := r.Add("backfill", spec, p.Backfill); err != nil {
			return fmt.Errorf("register backfill: %w", err)
		}
	}
	return nil
}

func (p *Periodic) Snapshot(ctx context.Context) error {
	n, err := p.territory.SnapshotAllWars(ctx, p.now())
	if err != nil {
		return err
	}
	p.log.Info("nightly snapshot", "written", n)
	return nil
}

func (p *Periodic) Compact(ctx context.Context) error {
	n, err := p.territory.Compact(ctx, p.now())
	if err != nil {
		return err
	}
	p.log.Info("snapshot compaction", "deleted", n)
	return nil
}

// Schedule runs one live cycle for today per war. A failing war does not stop the others.
func (p *Periodic) Schedule(ctx context.Context) error {
	wars, err := p.wars.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return fmt.Errorf("list wars: %w", err)
	}
	today := p.now()
	var errs []error
	for _, w := range wars {
		rep, err := p.scheduler.RunCycle(ctx, w.ID, today)
		if err != nil {
			errs = append(errs, fmt.Errorf("war %s: %w", w.ID, err))
			continue
		}
		p.log.Info("scheduling cycle", "war_id", w.ID, "mode", rep.Mode, "eligible", rep.Eligible, "dispatched", rep.Dispatched)
	}
	return errors.Join(errs...)
}

// Backfill advances every war that is still behind by one target date.
func (p *Periodic) Backfill(ctx context.Context) error {
	wars, err := p.wars.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return fmt.Errorf("list wars: %w", err)
	}
	var errs []error
	for _, w := range wars {
		if _, err := p.backfill.Step(ctx, w.ID); err != nil {
			errs = append(errs, fmt.Errorf("war %s: %w", w.ID, err))
		}
	}
	return errors.Join(errs...)
}
