package crawl_source

import (
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const DefaultItemLimit = 30

type Pipeline struct {
	db      *gorm.DB
	log     *logger.Logger
	sources repos.SourceRepo
	origins *origin.Registry
	items   tasks.ItemEnqueuer
	limit   int
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	sources repos.SourceRepo,
	origins *origin.Registry,
	items tasks.ItemEnqueuer,
	limit int,
) *Pipeline {
	if limit <= 0 {
		limit = DefaultItemLimit
	}
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", tasks.TypeCrawlSource),
		sources: sources,
		origins: origins,
		items:   items,
		limit:   limit,
	}
}

func (p *Pipeline) Type() string { return tasks.TypeCrawlSource }
