package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const (
	ModeLive       = "live"
	ModeHistorical = "historical"
)

// Enqueuer turns scheduling decisions into queued tasks.
type Enqueuer interface {
	// EnqueueCrawls returns the crawls that were queued; the rest were already queued.
	EnqueueCrawls(ctx context.Context, crawls []tasks.CrawlSource) ([]tasks.CrawlSource, error)
	EnqueueHistorical(ctx context.Context, p tasks.HistoricalSearch) (bool, error)
}

type Config struct {
	MaxSources int
	// HistoryGapDays is how far behind today a target date may be before historical mode is used.
	HistoryGapDays int
	Weights        Weights
}

func DefaultConfig() Config {
	return Config{
		MaxSources:     50,
		HistoryGapDays: 2,
		Weights:        DefaultWeights(),
	}
}

type Report struct {
	Mode       string    `json:"mode"`
	WarID      uuid.UUID `json:"war_id"`
	TargetDate string    `json:"target_date"`
	Eligible   int       `json:"eligible"`
	Dispatched int       `json:"dispatched"`
}

type Scheduler struct {
	log      *logger.Logger
	sources  repos.SourceRepo
	enqueuer Enqueuer
	cfg      Config

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func New(baseLog *logger.Logger, sources repos.SourceRepo, enqueuer Enqueuer, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = def.MaxSources
	}
	if cfg.HistoryGapDays <= 0 {
		cfg.HistoryGapDays = def.HistoryGapDays
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	return &Scheduler{
		log:      baseLog.With("service", "SourceScheduler"),
		sources:  sources,
		enqueuer: enqueuer,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IsHistorical reports whether target lies more than HistoryGapDays before today.
func (s *Scheduler) IsHistorical(target time.Time) bool {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	t := target.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(day).Hours()/24) > s.cfg.HistoryGapDays
}

// RunCycle schedules one cycle for the war and target date.
func (s *Scheduler) RunCycle(ctx context.Context, warID uuid.UUID, target time.Time) (rep *Report, err error) {
	ctx, span := observability.StartSpan(ctx, "scheduler.cycle",
		attribute.String("war_id", warID.String()),
		attribute.String("target_date", tasks.FormatDate(target)))
	defer func() { observability.EndSpan(span, err) }()

	if s.IsHistorical(target) {
		return s.runHistorical(ctx, warID, target)
	}
	return s.runLive(ctx, warID, target)
}

func (s *Scheduler) runHistorical(ctx context.Context, warID uuid.UUID, target time.Time) (*Report, error) {
	rep := &Report{Mode: ModeHistorical, WarID: warID, TargetDate: tasks.FormatDate(target)}
	created, err := s.enqueuer.EnqueueHistorical(ctx, tasks.HistoricalSearch{WarID: warID, TargetDate: rep.TargetDate})
	if err != nil {
		return nil, fmt.Errorf("enqueue historical search: %w", err)
	}
	if created {
		rep.Dispatched = 1
	}
	observability.Current().AddSchedulerDispatch(ModeHistorical, rep.Dispatched)
	s.log.Info("historical cycle scheduled", "war_id", warID, "target_date", rep.TargetDate, "created", created)
	return rep, nil
}

func (s *Scheduler) runLive(ctx context.Context, warID uuid.UUID, target time.Time) (*Report, error) {
	rep := &Report{Mode: ModeLive, WarID: warID, TargetDate: tasks.FormatDate(target)}
	dbc := dbctx.Context{Ctx: ctx}
	all, err := s.sources.ListNotBanned(dbc)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	now := s.now()
	eligible := make([]*types.Source, 0, len(all))
	for _, src := range all {
		if s.cfg.Weights.Eligible(src, now) {
			eligible = append(eligible, src)
		}
	}
	rep.Eligible = len(eligible)
	if len(eligible) == 0 {
		s.log.Info("no eligible sources", "war_id", warID, "sources", len(all))
		return rep, nil
	}

	s.mu.Lock()
	picked := s.cfg.Weights.Pick(eligible, s.cfg.MaxSources, s.rng)
	s.mu.Unlock()

	crawls := make([]tasks.CrawlSource, 0, len(picked))
	for _, src := range picked {
		crawls = append(crawls, tasks.CrawlSource{
			SourceID:   src.ID,
			WarID:      warID,
			TargetDate: rep.TargetDate,
			Since:      tasks.CrawlSince(src.LastCrawledAt),
		})
	}
	queued, err := s.enqueuer.EnqueueCrawls(ctx, crawls)
	if err != nil {
		return nil, fmt.Errorf("enqueue crawls: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(queued))
	for _, c := range queued {
		ids = append(ids, c.SourceID)
	}
	// Dispatch is recorded here; last_crawled_at moves only when the crawl task runs.
	if err := s.sources.MarkDispatched(dbc, ids, now); err != nil {
		s.log.Warn("mark dispatched failed", "error", err)
	}
	n := len(queued)
	rep.Dispatched = n
	observability.Current().AddSchedulerDispatch(ModeLive, n)
	s.log.Info("live cycle scheduled", "war_id", warID, "target_date", rep.TargetDate, "eligible", rep.Eligible, "dispatched", n)
	return rep, nil
}
