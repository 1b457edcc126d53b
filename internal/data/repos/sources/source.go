package sources

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type SourceRepo interface {
	Create(dbc dbctx.Context, src *types.Source) (*types.Source, error)
	// EnsureExists creates src unless (platform, handle) is taken. created reports which happened.
	EnsureExists(dbc dbctx.Context, src *types.Source) (out *types.Source, created bool, err error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Source, error)
	GetByPlatformHandle(dbc dbctx.Context, platform, handle string) (*types.Source, error)
	ListNotBanned(dbc dbctx.Context) ([]*types.Source, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Source, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	MarkCrawled(dbc dbctx.Context, id uuid.UUID, at time.Time, itemsFound int) error
	MarkDispatched(dbc dbctx.Context, ids []uuid.UUID, at time.Time) error
}

type sourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return &sourceRepo{
		db:  db,
		log: baseLog.With("repo", "SourceRepo"),
	}
}

func normalizeHandle(platform, handle string) (string, string) {
	return strings.ToLower(strings.TrimSpace(platform)), strings.TrimSpace(handle)
}

func (r *sourceRepo) Create(dbc dbctx.Context, src *types.Source) (*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	src.Platform, src.Handle = normalizeHandle(src.Platform, src.Handle)
	if src.Status == "" {
		src.Status = types.SourceStatusProbation
	}
	if err := transaction.WithContext(dbc.Ctx).Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

func (r *sourceRepo) EnsureExists(dbc dbctx.Context, src *types.Source) (*types.Source, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	src.Platform, src.Handle = normalizeHandle(src.Platform, src.Handle)
	if src.Status == "" {
		src.Status = types.SourceStatusProbation
	}
	if src.ReliabilityScore == 0 {
		src.ReliabilityScore = types.DefaultReliabilityScore
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "handle"}},
			DoNothing: true,
		}).
		Create(src)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return src, true, nil
	}
	existing, err := r.GetByPlatformHandle(dbc, src.Platform, src.Handle)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *sourceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var src types.Source
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (r *sourceRepo) GetByPlatformHandle(dbc dbctx.Context, platform, handle string) (*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	platform, handle = normalizeHandle(platform, handle)
	var src types.Source
	err := transaction.WithContext(dbc.Ctx).
		Where("platform = ? AND handle = ?", platform, handle).
		First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (r *sourceRepo) ListNotBanned(dbc dbctx.Context) ([]*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Source
	if err := transaction.WithContext(dbc.Ctx).
		Where("status <> ?", types.SourceStatusBanned).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockByID selects the row FOR UPDATE. Only meaningful inside a transaction.
func (r *sourceRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var src types.Source
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (r *sourceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Source{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sourceRepo) MarkCrawled(dbc dbctx.Context, id uuid.UUID, at time.Time, itemsFound int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_crawled_at":   at.UTC(),
			"total_items_found": gorm.Expr("total_items_found + ?", itemsFound),
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *sourceRepo) MarkDispatched(dbc dbctx.Context, ids []uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Source{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"last_dispatched_at": at.UTC(),
			"updated_at":         time.Now().UTC(),
		}).Error
}
