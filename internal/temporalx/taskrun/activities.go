package taskrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/jobs/worker"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// Executor runs a claimed task to a terminal transition.
type Executor interface {
	ExecuteByID(ctx context.Context, id uuid.UUID) (*worker.Execution, error)
}

type Activities struct {
	Log   *logger.Logger
	Tasks repos.IngestTaskRepo
	Exec  Executor
}

// Run claims the task and executes it once. A task that cannot be claimed is terminal.
func (a *Activities) Run(ctx context.Context, taskID string) (RunResult, error) {
	res := RunResult{TaskID: strings.TrimSpace(taskID)}
	if a == nil || a.Tasks == nil || a.Exec == nil {
		return res, fmt.Errorf("taskrun: activity not configured")
	}
	id, err := uuid.Parse(res.TaskID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("taskrun: invalid task id %q", taskID)
	}

	stop := a.heartbeat(ctx)
	defer stop()

	ex, err := a.Exec.ExecuteByID(ctx, id)
	if err != nil {
		return res, err
	}
	if ex == nil {
		rows, err := a.Tasks.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{id})
		if err != nil {
			return res, err
		}
		if len(rows) == 0 {
			return res, fmt.Errorf("taskrun: task %s not found", id)
		}
		res.Status = rows[0].Status
		res.Terminal = true
		return res, nil
	}
	res.Status = ex.Status
	res.NotBefore = ex.NotBefore
	res.Terminal = ex.Terminal
	if a.Log != nil {
		a.Log.Debug("task run finished", "task_id", id, "status", res.Status)
	}
	return res, nil
}

func (a *Activities) heartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
