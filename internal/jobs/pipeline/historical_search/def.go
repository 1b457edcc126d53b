package historical_search

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/scheduler"
)

type Config struct {
	// Queries caps the keyword searches per run.
	Queries int
	// PerQuery caps the results taken from each search.
	PerQuery int
	// Learned caps the learned keywords added on top of the era keywords.
	Learned int
}

func DefaultConfig() Config {
	return Config{Queries: 5, PerQuery: 10, Learned: 3}
}

// LearnedKeywords supplies keywords learned from recent coverage of a war.
type LearnedKeywords interface {
	Active(ctx context.Context, warID uuid.UUID, n int) ([]string, error)
}

type Pipeline struct {
	log      *logger.Logger
	origins  *origin.Registry
	keywords *scheduler.EraKeywords
	learned  LearnedKeywords
	items    tasks.ItemEnqueuer
	cfg      Config
}

// learned may be nil.
func New(
	baseLog *logger.Logger,
	origins *origin.Registry,
	keywords *scheduler.EraKeywords,
	learned LearnedKeywords,
	items tasks.ItemEnqueuer,
	cfg Config,
) *Pipeline {
	def := DefaultConfig()
	if cfg.Queries <= 0 {
		cfg.Queries = def.Queries
	}
	if cfg.PerQuery <= 0 {
		cfg.PerQuery = def.PerQuery
	}
	if cfg.Learned < 0 {
		cfg.Learned = 0
	}
	return &Pipeline{
		log:      baseLog.With("job", tasks.TypeHistoricalSearch),
		origins:  origins,
		keywords: keywords,
		learned:  learned,
		items:    items,
		cfg:      cfg,
	}
}

func (p *Pipeline) Type() string { return tasks.TypeHistoricalSearch }
