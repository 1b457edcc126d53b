package sources

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type SourceObservationRepo interface {
	// Record adds found/accepted to the (source, day) row, creating it when missing.
	Record(dbc dbctx.Context, sourceID uuid.UUID, day time.Time, found, accepted int) error
	// WindowTotals sums the rows whose day falls in [from, to].
	WindowTotals(dbc dbctx.Context, sourceID uuid.UUID, from, to time.Time) (found int, accepted int, err error)
	ListForSource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.SourceObservation, error)
}

type sourceObservationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceObservationRepo(db *gorm.DB, baseLog *logger.Logger) SourceObservationRepo {
	return &sourceObservationRepo{
		db:  db,
		log: baseLog.With("repo", "SourceObservationRepo"),
	}
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *sourceObservationRepo) Record(dbc dbctx.Context, sourceID uuid.UUID, day time.Time, found, accepted int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	day = DayOf(day)
	now := time.Now().UTC()
	row := &types.SourceObservation{
		SourceID:      sourceID,
		Day:           day,
		ItemsFound:    found,
		ItemsAccepted: accepted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"items_found":    gorm.Expr("source_observation.items_found + ?", found),
				"items_accepted": gorm.Expr("source_observation.items_accepted + ?", accepted),
				"updated_at":     now,
			}),
		}).
		Create(row).Error
}

func (r *sourceObservationRepo) WindowTotals(dbc dbctx.Context, sourceID uuid.UUID, from, to time.Time) (int, int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var totals struct {
		Found    int
		Accepted int
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.SourceObservation{}).
		Select("COALESCE(SUM(items_found), 0) AS found, COALESCE(SUM(items_accepted), 0) AS accepted").
		Where("source_id = ? AND day >= ? AND day <= ?", sourceID, DayOf(from), DayOf(to)).
		Scan(&totals).Error
	if err != nil {
		return 0, 0, err
	}
	return totals.Found, totals.Accepted, nil
}

func (r *sourceObservationRepo) ListForSource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.SourceObservation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SourceObservation
	if err := transaction.WithContext(dbc.Ctx).
		Where("source_id = ?", sourceID).
		Order("day ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
