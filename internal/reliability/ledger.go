package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/sources"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type Result struct {
	SourceID  uuid.UUID
	OldScore  float64
	NewScore  float64
	Delta     float64
	OldStatus string
	NewStatus string
	Window    Window
}

type Ledger struct {
	db      *gorm.DB
	log     *logger.Logger
	sources repos.SourceRepo
	obs     repos.SourceObservationRepo
	params  Params
}

func NewLedger(db *gorm.DB, baseLog *logger.Logger, sourceRepo repos.SourceRepo, obsRepo repos.SourceObservationRepo, params Params) *Ledger {
	if params.WindowDays <= 0 {
		params = DefaultParams()
	}
	return &Ledger{
		db:      db,
		log:     baseLog.With("service", "ReliabilityLedger"),
		sources: sourceRepo,
		obs:     obsRepo,
		params:  params,
	}
}

func (l *Ledger) Params() Params { return l.params }

// Record applies one ingestion outcome for the source on day. The source row is locked for the
// whole read-modify-write so concurrent outcomes for one source serialize.
func (l *Ledger) Record(ctx context.Context, sourceID uuid.UUID, day time.Time, o Outcome) (*Result, error) {
	if sourceID == uuid.Nil {
		return nil, fmt.Errorf("record outcome: %w", apperr.ErrInvalidArgument)
	}
	day = sources.DayOf(day)
	accepted := 0
	if o.Accepted {
		accepted = 1
	}

	var res *Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		src, err := l.sources.LockByID(dbc, sourceID)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("source %s: %w", sourceID, apperr.ErrNotFound)
		}
		if err := l.obs.Record(dbc, sourceID, day, 1, accepted); err != nil {
			return fmt.Errorf("record observation: %w", err)
		}
		from := day.AddDate(0, 0, -(l.params.WindowDays - 1))
		found, acc, err := l.obs.WindowTotals(dbc, sourceID, from, day)
		if err != nil {
			return fmt.Errorf("window totals: %w", err)
		}
		w := Window{Found: found, Accepted: acc}
		score, status, delta := l.params.Apply(src.ReliabilityScore, o, w)
		if err := l.sources.UpdateFields(dbc, sourceID, map[string]interface{}{
			"reliability_score": score,
			"status":            status,
		}); err != nil {
			return fmt.Errorf("update source: %w", err)
		}
		res = &Result{
			SourceID:  sourceID,
			OldScore:  src.ReliabilityScore,
			NewScore:  score,
			Delta:     delta,
			OldStatus: src.Status,
			NewStatus: status,
			Window:    w,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "rejected"
	if o.Accepted {
		outcome = "accepted"
	}
	observability.Current().IncReliabilityUpdate(outcome, res.NewStatus)
	if res.NewStatus != res.OldStatus {
		l.log.Info("source status changed",
			"source_id", sourceID,
			"from", res.OldStatus,
			"to", res.NewStatus,
			"score", res.NewScore,
			"window_found", res.Window.Found,
		)
	}
	return res, nil
}
