package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type Config struct {
	Concurrency    int
	PollInterval   time.Duration
	StaleRunning   time.Duration
	HeartbeatEvery time.Duration
	// DeferDelay is how long a deferred task waits before it is runnable again.
	DeferDelay time.Duration
	Retry      runtime.RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		Concurrency:    4,
		PollInterval:   time.Second,
		StaleRunning:   10 * time.Minute,
		HeartbeatEvery: 30 * time.Second,
		DeferDelay:     15 * time.Second,
		Retry:          runtime.DefaultRetryPolicy(),
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.IngestTaskRepo
	registry *runtime.Registry
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.IngestTaskRepo, registry *runtime.Registry, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.StaleRunning <= 0 {
		cfg.StaleRunning = def.StaleRunning
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = def.HeartbeatEvery
	}
	if cfg.DeferDelay <= 0 {
		cfg.DeferDelay = def.DeferDelay
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "IngestWorker"),
		repo:     repo,
		registry: registry,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting ingest worker pool", "concurrency", w.cfg.Concurrency, "task_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain while there is work instead of waiting a tick per task.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one runnable task.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	task, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.Retry.MaxAttempts, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	w.Execute(ctx, task)
	return true, nil
}

// Execution is the state a task was left in by one run.
type Execution struct {
	Status    string
	NotBefore *time.Time
	Terminal  bool
}

// ExecuteByID claims one named task and runs it. It returns nil when the task is already
// terminal or missing.
func (w *Worker) ExecuteByID(ctx context.Context, id uuid.UUID) (*Execution, error) {
	task, err := w.repo.ClaimByID(dbctx.Context{Ctx: ctx}, id, w.cfg.Retry.MaxAttempts)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	jc := w.Execute(ctx, task)
	t := jc.Task
	terminal := t.Status == types.TaskStatusSucceeded ||
		(t.Status == types.TaskStatusFailed && t.Attempts >= w.cfg.Retry.MaxAttempts)
	return &Execution{Status: t.Status, NotBefore: t.NotBefore, Terminal: terminal}, nil
}

// Execute runs a claimed task to a terminal transition and returns the context for inspection.
func (w *Worker) Execute(ctx context.Context, task *types.IngestTask) *runtime.Context {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "task."+task.TaskType,
		attribute.String("task_id", task.ID.String()),
		attribute.Int("attempt", task.Attempts))
	var runErr error
	defer func() { observability.EndSpan(span, runErr) }()

	jc := runtime.NewContext(ctx, w.db, task, w.repo, w.cfg.Retry)
	h, ok := w.registry.Get(task.TaskType)
	if !ok {
		w.log.Warn("No handler registered for task_type", "task_type", task.TaskType, "task_id", task.ID)
		jc.Fail(&missingHandlerError{TaskType: task.TaskType}, true)
		observability.Current().ObserveTask(task.TaskType, jc.Outcome(), time.Since(start))
		return jc
	}

	hbCtx, stopHB := context.WithCancel(ctx)
	go w.heartbeat(hbCtx, jc)
	runErr = w.safeRun(h, jc)
	stopHB()

	w.finalize(jc, runErr)
	observability.Current().ObserveTask(task.TaskType, jc.Outcome(), time.Since(start))
	return jc
}

func (w *Worker) safeRun(h runtime.Handler, jc *runtime.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Task handler panic", "task_id", jc.Task.ID, "task_type", jc.Task.TaskType, "panic", r)
			err = &panicError{Val: r}
		}
	}()
	return h.Run(jc)
}

// finalize maps a handler's return onto the queue: deferrals wait without spending an attempt,
// rejections and duplicates are normal completions, permanent errors are not retried.
func (w *Worker) finalize(jc *runtime.Context, runErr error) {
	if jc.Finalized() {
		return
	}
	task := jc.Task
	switch {
	case runErr == nil:
		jc.Succeed(nil)
	case errors.Is(runErr, apperr.ErrDeferred):
		w.log.Info("task deferred", "task_id", task.ID, "task_type", task.TaskType, "reason", runErr)
		jc.Defer(runErr, w.cfg.DeferDelay)
	case errors.Is(runErr, apperr.ErrRejected), errors.Is(runErr, apperr.ErrDuplicate):
		jc.Succeed(map[string]any{"outcome": outcomeOf(runErr), "reason": runErr.Error()})
	case errors.Is(runErr, apperr.ErrPermanent):
		w.log.Warn("task failed permanently", "task_id", task.ID, "task_type", task.TaskType, "error", runErr)
		jc.Fail(runErr, true)
	default:
		w.log.Warn("task failed", "task_id", task.ID, "task_type", task.TaskType, "attempt", task.Attempts, "error", runErr)
		jc.Fail(runErr, false)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, apperr.ErrDuplicate) {
		return "duplicate"
	}
	return "rejected"
}

func (w *Worker) heartbeat(ctx context.Context, jc *runtime.Context) {
	t := time.NewTicker(w.cfg.HeartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			jc.Heartbeat()
		}
	}
}

type missingHandlerError struct{ TaskType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for task_type=" + e.TaskType
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
