package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

/*
Context is the execution handle for one claimed ingest task.
Handlers decode their input through it and end the run through exactly one of
Succeed, Fail or Defer. The worker finalizes runs that return without doing so.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Task   *types.IngestTask
	Repo   repos.IngestTaskRepo
	Policy RetryPolicy

	finalized bool
	outcome   string
}

// RetryPolicy is the task-level retry budget.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxDeferrals int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    30 * time.Second,
		MaxDelay:     10 * time.Minute,
		MaxDeferrals: 20,
	}
}

// Delay is BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func NewContext(ctx context.Context, db *gorm.DB, task *types.IngestTask, repo repos.IngestTaskRepo, policy RetryPolicy) *Context {
	return &Context{
		Ctx:    ctx,
		DB:     db,
		Task:   task,
		Repo:   repo,
		Policy: policy,
	}
}

// Decode unmarshals the task payload into v. A malformed payload is permanent.
func (c *Context) Decode(v any) error {
	if c.Task == nil || len(c.Task.Payload) == 0 {
		return fmt.Errorf("empty payload: %w", apperr.ErrPermanent)
	}
	if err := json.Unmarshal(c.Task.Payload, v); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, apperr.ErrPermanent)
	}
	return nil
}

func (c *Context) Finalized() bool { return c.finalized }

// Outcome is the terminal transition taken: succeeded, failed, deferred or "".
func (c *Context) Outcome() string { return c.outcome }

func (c *Context) Heartbeat() {
	if c.Repo == nil || c.Task == nil || c.Task.ID == uuid.Nil {
		return
	}
	_ = c.Repo.Heartbeat(dbctx.Context{Ctx: c.ctx()}, c.Task.ID)
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	// Terminal writes must land even when the run context was canceled.
	return context.WithoutCancel(c.Ctx)
}

func (c *Context) update(updates map[string]interface{}) {
	if c.Repo == nil || c.Task == nil || c.Task.ID == uuid.Nil {
		return
	}
	_ = c.Repo.UpdateFields(dbctx.Context{Ctx: c.ctx()}, c.Task.ID, updates)
}

func (c *Context) Succeed(result any) {
	if c == nil || c.finalized {
		return
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	c.update(map[string]interface{}{
		"status":       types.TaskStatusSucceeded,
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
	})
	if c.Task != nil {
		c.Task.Status = types.TaskStatusSucceeded
		c.Task.Result = res
		c.Task.LockedAt = nil
	}
	c.finalized = true
	c.outcome = types.TaskStatusSucceeded
}

// Fail records err and schedules a retry after the policy delay while attempts remain.
// permanent exhausts the budget immediately.
func (c *Context) Fail(err error, permanent bool) {
	if c == nil || c.finalized {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	updates := map[string]interface{}{
		"status":        types.TaskStatusFailed,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
	}
	attempts := 0
	if c.Task != nil {
		attempts = c.Task.Attempts
	}
	if permanent {
		attempts = max(attempts, c.Policy.MaxAttempts)
		updates["attempts"] = attempts
	} else {
		nb := now.Add(c.Policy.Delay(attempts))
		updates["not_before"] = nb
		if c.Task != nil {
			c.Task.NotBefore = &nb
		}
	}
	c.update(updates)
	if c.Task != nil {
		c.Task.Status = types.TaskStatusFailed
		c.Task.Error = msg
		c.Task.Attempts = attempts
		c.Task.LastErrorAt = &now
		c.Task.LockedAt = nil
	}
	c.finalized = true
	c.outcome = types.TaskStatusFailed
}

// Defer parks the task until now+delay and gives back the attempt the claim consumed.
// Past MaxDeferrals the task fails instead.
func (c *Context) Defer(reason error, delay time.Duration) {
	if c == nil || c.finalized {
		return
	}
	if c.Task != nil && c.Policy.MaxDeferrals > 0 && c.Task.Deferrals >= c.Policy.MaxDeferrals {
		c.Fail(fmt.Errorf("deferred %d times: %w", c.Task.Deferrals, reason), true)
		return
	}
	now := time.Now().UTC()
	nb := now.Add(delay)
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	c.update(map[string]interface{}{
		"status":     types.TaskStatusDeferred,
		"error":      msg,
		"not_before": nb,
		"locked_at":  nil,
		"attempts":   gorm.Expr("CASE WHEN attempts > 0 THEN attempts - 1 ELSE 0 END"),
		"deferrals":  gorm.Expr("deferrals + 1"),
	})
	if c.Task != nil {
		c.Task.Status = types.TaskStatusDeferred
		c.Task.NotBefore = &nb
		c.Task.LockedAt = nil
		if c.Task.Attempts > 0 {
			c.Task.Attempts--
		}
		c.Task.Deferrals++
	}
	c.finalized = true
	c.outcome = types.TaskStatusDeferred
}
