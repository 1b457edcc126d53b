package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/ctxutil"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/temporalx/taskrun"
)

// TaskService writes ingestion tasks to the queue table and, when Temporal is configured,
// starts one workflow per new task.
type TaskService interface {
	EnqueueCrawls(ctx context.Context, crawls []tasks.CrawlSource) ([]tasks.CrawlSource, error)
	EnqueueHistorical(ctx context.Context, p tasks.HistoricalSearch) (bool, error)
	EnqueueItems(ctx context.Context, items []tasks.ProcessItem) (int, error)
	Dispatch(ctx context.Context, ids []uuid.UUID) error
}

type dedupePayload interface {
	DedupeKey() string
}

type taskService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.IngestTaskRepo

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
	dispatchLimit     int
}

func NewTaskService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.IngestTaskRepo,
	tc temporalsdkclient.Client,
	taskQueue string,
) TaskService {
	return &taskService{
		db:                db,
		log:               baseLog.With("service", "TaskService"),
		repo:              repo,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
		dispatchLimit:     8,
	}
}

func (s *taskService) EnqueueCrawls(ctx context.Context, crawls []tasks.CrawlSource) ([]tasks.CrawlSource, error) {
	payloads := make([]dedupePayload, 0, len(crawls))
	byKey := make(map[string]tasks.CrawlSource, len(crawls))
	for _, c := range crawls {
		payloads = append(payloads, c)
		byKey[c.DedupeKey()] = c
	}
	created, err := s.enqueue(ctx, tasks.TypeCrawlSource, payloads)
	out := make([]tasks.CrawlSource, 0, len(created))
	for _, t := range created {
		if c, ok := byKey[t.DedupeKey]; ok {
			out = append(out, c)
		}
	}
	return out, err
}

func (s *taskService) EnqueueHistorical(ctx context.Context, p tasks.HistoricalSearch) (bool, error) {
	created, err := s.enqueue(ctx, tasks.TypeHistoricalSearch, []dedupePayload{p})
	return len(created) > 0, err
}

func (s *taskService) EnqueueItems(ctx context.Context, items []tasks.ProcessItem) (int, error) {
	payloads := make([]dedupePayload, 0, len(items))
	for _, it := range items {
		payloads = append(payloads, it)
	}
	created, err := s.enqueue(ctx, tasks.TypeProcessItem, payloads)
	return len(created), err
}

func (s *taskService) enqueue(ctx context.Context, taskType string, payloads []dedupePayload) ([]*types.IngestTask, error) {
	ctx = ctxutil.Default(ctx)
	if len(payloads) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	rows := make([]*types.IngestTask, 0, len(payloads))
	for _, p := range payloads {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", taskType, err)
		}
		rows = append(rows, &types.IngestTask{
			ID:        uuid.New(),
			TaskType:  taskType,
			DedupeKey: p.DedupeKey(),
			Status:    types.TaskStatusQueued,
			Payload:   datatypes.JSON(b),
			Result:    datatypes.JSON([]byte(`{}`)),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	created, err := s.repo.Enqueue(dbctx.Context{Ctx: ctx, Tx: s.db}, rows)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	if len(created) == 0 {
		return created, nil
	}
	s.log.Debug("Tasks enqueued",
		append(ctxutil.LogFields(ctx), "task_type", taskType, "requested", len(rows), "created", len(created))...)
	if s.temporal == nil {
		return created, nil
	}
	ids := make([]uuid.UUID, 0, len(created))
	for _, t := range created {
		ids = append(ids, t.ID)
	}
	if err := s.Dispatch(ctx, ids); err != nil {
		return created, err
	}
	return created, nil
}

// Dispatch starts the task workflow for each id. A workflow that already exists for an id is
// not an error. Rows whose start fails stay queued with the error recorded.
func (s *taskService) Dispatch(ctx context.Context, ids []uuid.UUID) error {
	if s == nil || s.temporal == nil {
		return fmt.Errorf("temporal not configured (TEMPORAL_ADDRESS)")
	}
	ctx = ctxutil.Default(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.dispatchLimit)
	for _, id := range ids {
		id := id
		if id == uuid.Nil {
			continue
		}
		g.Go(func() error {
			err := s.startTaskWorkflow(gctx, id)
			if err == nil {
				return nil
			}
			var started *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(err, &started) {
				return nil
			}
			now := time.Now().UTC()
			_ = s.repo.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx), Tx: s.db}, id, map[string]interface{}{
				"error":         "dispatch: " + err.Error(),
				"last_error_at": now,
			})
			return fmt.Errorf("start temporal workflow for task %s: %w", id, err)
		})
	}
	return g.Wait()
}

func (s *taskService) startTaskWorkflow(ctx context.Context, taskID uuid.UUID) error {
	tq := s.temporalTaskQueue
	if tq == "" {
		tq = "frontline"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    taskID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, taskrun.WorkflowName)
	return err
}
