package process_item

import (
	"context"

	"github.com/yungbote/frontline-backend/internal/ingestion/pipeline"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// Processor runs one candidate item through ingestion.
type Processor interface {
	Process(ctx context.Context, item tasks.ProcessItem) (*pipeline.Result, error)
}

type Pipeline struct {
	log  *logger.Logger
	proc Processor
}

func New(baseLog *logger.Logger, proc Processor) *Pipeline {
	return &Pipeline{
		log:  baseLog.With("job", tasks.TypeProcessItem),
		proc: proc,
	}
}

func (p *Pipeline) Type() string { return tasks.TypeProcessItem }
