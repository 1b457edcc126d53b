package taskrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/frontline-backend/internal/domain"
)

const (
	minWait         = 2 * time.Second
	maxWait         = 15 * time.Minute
	continueRuns    = 200
	continueHistory = 10000
)

// Workflow drives one ingest task; the workflow ID is the task ID. Each activity run claims the
// row and executes it once, and the workflow sleeps until the row's not_before between runs.
func Workflow(ctx workflow.Context) error {
	taskID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if taskID == "" {
		return fmt.Errorf("taskrun: missing task id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    time.Minute,
		// Task retries are tracked on the row, not by Temporal.
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	for runs := 1; ; runs++ {
		var out RunResult
		if err := workflow.ExecuteActivity(ctx, ActivityRun, taskID).Get(ctx, &out); err != nil {
			return err
		}
		if out.Terminal {
			if out.Status == types.TaskStatusFailed {
				return fmt.Errorf("task %s failed", taskID)
			}
			return nil
		}
		if err := workflow.Sleep(ctx, nextWait(ctx, out.NotBefore)); err != nil {
			return err
		}
		if runs >= continueRuns || workflow.GetInfo(ctx).GetCurrentHistoryLength() >= continueHistory {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}

func nextWait(ctx workflow.Context, notBefore *time.Time) time.Duration {
	if notBefore == nil || notBefore.IsZero() {
		return minWait
	}
	d := notBefore.Sub(workflow.Now(ctx))
	if d < minWait {
		return minWait
	}
	if d > maxWait {
		return maxWait
	}
	return d
}
