package territory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

const SnapshotDateCurrent = "current"

type Config struct {
	// CaptureRadius is the half-width in degrees of the square added around a capture point.
	CaptureRadius float64
	// Horizon is the age past which snapshots are thinned to one per week.
	Horizon time.Duration
	Victors VictorAliases
}

func DefaultConfig() Config {
	return Config{
		CaptureRadius: 0.05,
		Horizon:       365 * 24 * time.Hour,
		Victors:       DefaultVictorAliases(),
	}
}

// FactionTerritory is one faction's geometry as resolved for a date.
type FactionTerritory struct {
	FactionID    uuid.UUID       `json:"faction_id"`
	Name         string          `json:"name"`
	ShortName    string          `json:"short_name"`
	Color        string          `json:"color"`
	Territory    json.RawMessage `json:"geojson"`
	SnapshotDate string          `json:"snapshot_date"`
}

type Capture struct {
	WarID         uuid.UUID
	Victor        string
	Lat           float64
	Lng           float64
	Date          time.Time
	SourceEventID *uuid.UUID
	Summary       string
}

type Store struct {
	db        *gorm.DB
	log       *logger.Logger
	wars      repos.WarRepo
	factions  repos.FactionRepo
	snapshots repos.TerritorySnapshotRepo
	cfg       Config
}

func NewStore(db *gorm.DB, baseLog *logger.Logger, rs repos.Set, cfg Config) *Store {
	if cfg.CaptureRadius <= 0 {
		cfg.CaptureRadius = DefaultConfig().CaptureRadius
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultConfig().Horizon
	}
	if cfg.Victors == nil {
		cfg.Victors = DefaultVictorAliases()
	}
	return &Store{
		db:        db,
		log:       baseLog.With("service", "TerritorySnapshotStore"),
		wars:      rs.War,
		factions:  rs.Faction,
		snapshots: rs.TerritorySnapshot,
		cfg:       cfg,
	}
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordCapture appends a buffer polygon around (lat, lng) to the faction's live territory and
// writes a capture snapshot dated date. The faction row is locked for the update.
func (s *Store) RecordCapture(ctx context.Context, factionID uuid.UUID, lat, lng float64, date time.Time, sourceEventID *uuid.UUID, notes string) (*types.TerritorySnapshot, error) {
	var out *types.TerritorySnapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		f, err := s.factions.LockByID(dbc, factionID)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("faction %s: %w", factionID, apperr.ErrNotFound)
		}
		fc, err := decode(f.Territory)
		if err != nil {
			return err
		}
		feat := geojson.NewFeature(captureBuffer(orb.Point{lng, lat}, s.cfg.CaptureRadius))
		feat.Properties["source"] = types.SnapshotSourceCapture
		if sourceEventID != nil {
			feat.Properties["event_id"] = sourceEventID.String()
		}
		fc.Append(feat)
		raw, err := encode(fc)
		if err != nil {
			return err
		}
		if err := s.factions.UpdateTerritory(dbc, f.ID, datatypes.JSON(raw)); err != nil {
			return fmt.Errorf("update territory: %w", err)
		}
		if len(notes) > 100 {
			notes = notes[:100]
		}
		out, err = s.snapshots.Create(dbc, &types.TerritorySnapshot{
			FactionID:     f.ID,
			EffectiveDate: dayOf(date),
			IsPermanent:   true,
			Territory:     datatypes.JSON(raw),
			Source:        types.SnapshotSourceCapture,
			SourceEventID: sourceEventID,
			Notes:         "capture: " + notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncSnapshotCreated(types.SnapshotSourceCapture)
	return out, nil
}

// RecordVictorCapture maps the victor label to a faction of the war and records the capture.
// Unmapped victors are not an error; the returned snapshot is nil.
func (s *Store) RecordVictorCapture(ctx context.Context, c Capture) (*types.TerritorySnapshot, error) {
	factions, err := s.factions.ListByWar(dbctx.Context{Ctx: ctx}, c.WarID)
	if err != nil {
		return nil, err
	}
	f := s.cfg.Victors.MatchFaction(factions, c.Victor)
	if f == nil {
		s.log.Info("no faction for victor", "war_id", c.WarID, "victor", c.Victor)
		return nil, nil
	}
	return s.RecordCapture(ctx, f.ID, c.Lat, c.Lng, c.Date, c.SourceEventID, c.Summary)
}

// SnapshotAllFactions writes a periodic snapshot dated date for every faction of the war whose
// live territory differs from its latest snapshot. Factions that already have a snapshot on date,
// or have no territory, are skipped.
func (s *Store) SnapshotAllFactions(ctx context.Context, warID uuid.UUID, date time.Time) (int, error) {
	ctx, span := observability.StartSpan(ctx, "territory.snapshot_all_factions",
		attribute.String("war_id", warID.String()))
	defer span.End()

	day := dayOf(date)
	dbc := dbctx.Context{Ctx: ctx}
	factions, err := s.factions.ListByWar(dbc, warID)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, f := range factions {
		ok, err := s.snapshotFaction(ctx, f, day)
		if err != nil {
			s.log.Warn("snapshot faction failed", "faction_id", f.ID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}
	if created > 0 {
		s.log.Info("periodic snapshots written", "war_id", warID, "date", day.Format("2006-01-02"), "created", created)
	}
	return created, nil
}

func (s *Store) snapshotFaction(ctx context.Context, f *types.Faction, day time.Time) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	exists, err := s.snapshots.ExistsOnDate(dbc, f.ID, day)
	if err != nil || exists {
		return false, err
	}
	current, err := decode(f.Territory)
	if err != nil {
		return false, err
	}
	if isEmpty(current) {
		return false, nil
	}
	latest, err := s.snapshots.Latest(dbc, f.ID)
	if err != nil {
		return false, err
	}
	if latest != nil {
		prev, err := decode(latest.Territory)
		if err == nil && sameGeometry(prev, current) {
			return false, nil
		}
	}
	raw, err := encode(current)
	if err != nil {
		return false, err
	}
	if _, err := s.snapshots.Create(dbc, &types.TerritorySnapshot{
		FactionID:     f.ID,
		EffectiveDate: day,
		Territory:     datatypes.JSON(raw),
		Source:        types.SnapshotSourcePeriodic,
		Notes:         "periodic snapshot",
	}); err != nil {
		return false, err
	}
	observability.Current().IncSnapshotCreated(types.SnapshotSourcePeriodic)
	return true, nil
}

// SnapshotAllWars runs SnapshotAllFactions for every war concurrently.
func (s *Store) SnapshotAllWars(ctx context.Context, date time.Time) (int, error) {
	wars, err := s.wars.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return 0, err
	}
	counts := make([]int, len(wars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, w := range wars {
		g.Go(func() error {
			n, err := s.SnapshotAllFactions(gctx, w.ID, date)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// TerritoryAsOf resolves each faction's territory for date. A nil date, or a faction with no
// snapshot at date, yields the live territory tagged "current".
func (s *Store) TerritoryAsOf(ctx context.Context, warID uuid.UUID, date *time.Time) ([]FactionTerritory, error) {
	dbc := dbctx.Context{Ctx: ctx}
	factions, err := s.factions.ListByWar(dbc, warID)
	if err != nil {
		return nil, err
	}
	out := make([]FactionTerritory, 0, len(factions))
	for _, f := range factions {
		ft := FactionTerritory{
			FactionID:    f.ID,
			Name:         f.Name,
			ShortName:    f.ShortName,
			Color:        f.Color,
			Territory:    rawOrNull(f.Territory),
			SnapshotDate: SnapshotDateCurrent,
		}
		if date != nil {
			snap, err := s.snapshots.LatestAsOf(dbc, f.ID, dayOf(*date))
			if err != nil {
				return nil, err
			}
			if snap != nil {
				ft.Territory = rawOrNull(snap.Territory)
				ft.SnapshotDate = snap.EffectiveDate.UTC().Format("2006-01-02")
			}
		}
		out = append(out, ft)
	}
	return out, nil
}

func (s *Store) History(ctx context.Context, factionID uuid.UUID) ([]*types.TerritorySnapshot, error) {
	return s.snapshots.ListForFaction(dbctx.Context{Ctx: ctx}, factionID)
}

func rawOrNull(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(j)
}

// Compact thins snapshots older than the horizon to the earliest one per ISO week per faction.
func (s *Store) Compact(ctx context.Context, now time.Time) (int64, error) {
	cutoff := dayOf(now.Add(-s.cfg.Horizon))
	dbc := dbctx.Context{Ctx: ctx}
	wars, err := s.wars.List(dbc)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, w := range wars {
		factions, err := s.factions.ListByWar(dbc, w.ID)
		if err != nil {
			return total, err
		}
		for _, f := range factions {
			old, err := s.snapshots.ListBefore(dbc, f.ID, cutoff)
			if err != nil {
				return total, err
			}
			doomed := thinWeekly(old)
			if len(doomed) == 0 {
				continue
			}
			n, err := s.snapshots.DeleteByIDs(dbc, doomed)
			if err != nil {
				return total, fmt.Errorf("compact faction %s: %w", f.ID, err)
			}
			total += n
		}
	}
	observability.Current().AddSnapshotsCompacted(total)
	s.log.Info("snapshot compaction done", "cutoff", cutoff.Format("2006-01-02"), "deleted", total)
	return total, nil
}

// thinWeekly expects snaps ordered by effective date ascending and returns every id except the
// first of each ISO week.
func thinWeekly(snaps []*types.TerritorySnapshot) []uuid.UUID {
	type week struct{ y, w int }
	seen := map[week]bool{}
	var doomed []uuid.UUID
	for _, sn := range snaps {
		y, w := sn.EffectiveDate.UTC().ISOWeek()
		k := week{y, w}
		if seen[k] {
			doomed = append(doomed, sn.ID)
			continue
		}
		seen[k] = true
	}
	return doomed
}
