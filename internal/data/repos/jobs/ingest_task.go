package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type IngestTaskRepo interface {
	// Enqueue inserts tasks whose dedupe key is new and returns only the inserted ones.
	Enqueue(dbc dbctx.Context, tasks []*types.IngestTask) ([]*types.IngestTask, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.IngestTask, error)
	GetByDedupeKey(dbc dbctx.Context, key string) (*types.IngestTask, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, staleRunning time.Duration) (*types.IngestTask, error)
	ClaimByID(dbc dbctx.Context, id uuid.UUID, maxAttempts int) (*types.IngestTask, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

type ingestTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestTaskRepo(db *gorm.DB, baseLog *logger.Logger) IngestTaskRepo {
	return &ingestTaskRepo{
		db:  db,
		log: baseLog.With("repo", "IngestTaskRepo"),
	}
}

func (r *ingestTaskRepo) Enqueue(dbc dbctx.Context, tasks []*types.IngestTask) ([]*types.IngestTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := []*types.IngestTask{}
	for _, t := range tasks {
		if t == nil || t.DedupeKey == "" {
			continue
		}
		if t.Status == "" {
			t.Status = types.TaskStatusQueued
		}
		res := transaction.WithContext(dbc.Ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
			Create(t)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *ingestTaskRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.IngestTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.IngestTask
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ingestTaskRepo) GetByDedupeKey(dbc dbctx.Context, key string) (*types.IngestTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var task types.IngestTask
	err := transaction.WithContext(dbc.Ctx).
		Where("dedupe_key = ?", key).
		Limit(1).
		Find(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == uuid.Nil {
		return nil, nil
	}
	return &task, nil
}

// ClaimNextRunnable locks the oldest runnable task and marks it running. Runnable means queued,
// deferred, or failed with attempts left, each past its not_before, or running with a stale heartbeat.
func (r *ingestTaskRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, staleRunning time.Duration) (*types.IngestTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.IngestTask
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var task types.IngestTask
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          (
            status IN ?
            AND (not_before IS NULL OR not_before <= ?)
          )
          OR (
            status = ?
            AND attempts < ?
            AND (not_before IS NULL OR not_before <= ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, []string{types.TaskStatusQueued, types.TaskStatusDeferred}, now,
				types.TaskStatusFailed, maxAttempts, now,
				types.TaskStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&task).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		if err := markRunning(txx, &task, now); err != nil {
			return err
		}
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimByID is the Temporal path: the workflow already names the task, so only terminal
// or exhausted tasks are refused.
func (r *ingestTaskRepo) ClaimByID(dbc dbctx.Context, id uuid.UUID, maxAttempts int) (*types.IngestTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	var claimed *types.IngestTask
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var task types.IngestTask
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&task).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		if task.Status == types.TaskStatusSucceeded {
			return nil
		}
		if task.Status == types.TaskStatusFailed && task.Attempts >= maxAttempts {
			return nil
		}
		if err := markRunning(txx, &task, now); err != nil {
			return err
		}
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func markRunning(txx *gorm.DB, task *types.IngestTask, now time.Time) error {
	uErr := txx.Model(&types.IngestTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"status":       types.TaskStatusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
	if uErr != nil {
		return uErr
	}
	task.Status = types.TaskStatusRunning
	task.Attempts++
	task.LockedAt = &now
	task.HeartbeatAt = &now
	task.UpdatedAt = now
	return nil
}

func (r *ingestTaskRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.IngestTask{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *ingestTaskRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.IngestTask{}).
		Where("id = ? AND status = ?", id, types.TaskStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *ingestTaskRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.IngestTask{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.N
	}
	return out, nil
}
