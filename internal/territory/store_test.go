package territory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

const squareFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[36,35],[37,35],[37,36],[36,36],[36,35]]]}}]}`

func newStore(t *testing.T) (*Store, repos.Set, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	rs := repos.NewSet(db, testutil.Logger(t))
	return NewStore(db, testutil.Logger(t), rs, DefaultConfig()), rs, db
}

func TestVictorMatching(t *testing.T) {
	factions := []*types.Faction{
		{ID: uuid.New(), Name: "Government Control", ShortName: "GOV"},
		{ID: uuid.New(), Name: "Rebel Control", ShortName: ""},
		{ID: uuid.New(), Name: "Islamic State", ShortName: "ISIL"},
	}
	a := DefaultVictorAliases()
	assert.Equal(t, "Government", a.Canonical("assad"))
	assert.Equal(t, "", a.Canonical("None"))
	assert.Same(t, factions[0], a.MatchFaction(factions, "SAA"))
	assert.Same(t, factions[1], a.MatchFaction(factions, "Opposition"))
	assert.Same(t, factions[2], a.MatchFaction(factions, "Daesh"))
	assert.Nil(t, a.MatchFaction(factions, "Turkey"))
	assert.Nil(t, a.MatchFaction(factions, "Martians"))
}

func TestRecordVictorCapture(t *testing.T) {
	ctx := context.Background()
	store, rs, db := newStore(t)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	gov := testutil.SeedFaction(t, ctx, db, war.ID, "Government Control", "GOV", squareFC)

	evID := uuid.New()
	day := testutil.Day(2013, time.June, 5)
	snap, err := store.RecordVictorCapture(ctx, Capture{
		WarID: war.ID, Victor: "Government", Lat: 34.56, Lng: 36.52,
		Date: day.Add(15 * time.Hour), SourceEventID: &evID, Summary: "Army enters Al-Qusayr",
	})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, types.SnapshotSourceCapture, snap.Source)
	assert.True(t, snap.EffectiveDate.Equal(day))
	assert.True(t, snap.IsPermanent)

	fc, err := geojson.UnmarshalFeatureCollection(snap.Territory)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	b := fc.Features[1].Geometry.Bound()
	assert.InDelta(t, 36.47, b.Min[0], 1e-9)
	assert.InDelta(t, 34.61, b.Max[1], 1e-9)
	assert.Equal(t, evID.String(), fc.Features[1].Properties["event_id"])

	live, err := rs.Faction.GetByID(dbctx.Context{Ctx: ctx}, gov.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(snap.Territory), string(live.Territory))

	none, err := store.RecordVictorCapture(ctx, Capture{WarID: war.ID, Victor: "SDF", Lat: 36, Lng: 38, Date: day})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSnapshotAllFactionsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, rs, db := newStore(t)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	gov := testutil.SeedFaction(t, ctx, db, war.ID, "Government Control", "GOV", squareFC)
	testutil.SeedFaction(t, ctx, db, war.ID, "Rebel Control", "REB", "")

	day := testutil.Day(2014, time.January, 10)
	n, err := store.SnapshotAllFactions(ctx, war.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.SnapshotAllFactions(ctx, war.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Unchanged territory on a later day writes nothing either.
	n, err = store.SnapshotAllFactions(ctx, war.ID, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, rs.Faction.UpdateTerritory(dbctx.Context{Ctx: ctx}, gov.ID,
		datatypes.JSON([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[36.5,35.5]}}]}`))))
	n, err = store.SnapshotAllWars(ctx, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hist, err := store.History(ctx, gov.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestTerritoryAsOf(t *testing.T) {
	ctx := context.Background()
	store, _, db := newStore(t)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	testutil.SeedFaction(t, ctx, db, war.ID, "Government Control", "GOV", squareFC)

	jan := testutil.Day(2014, time.January, 10)
	_, err := store.SnapshotAllFactions(ctx, war.ID, jan)
	require.NoError(t, err)

	current, err := store.TerritoryAsOf(ctx, war.ID, nil)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, SnapshotDateCurrent, current[0].SnapshotDate)

	before := jan.AddDate(0, 0, -1)
	got, err := store.TerritoryAsOf(ctx, war.ID, &before)
	require.NoError(t, err)
	assert.Equal(t, SnapshotDateCurrent, got[0].SnapshotDate)

	after := jan.AddDate(0, 2, 0)
	got, err = store.TerritoryAsOf(ctx, war.ID, &after)
	require.NoError(t, err)
	assert.Equal(t, "2014-01-10", got[0].SnapshotDate)
	var fc map[string]any
	require.NoError(t, json.Unmarshal(got[0].Territory, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
}

func TestCompactKeepsEarliestPerWeek(t *testing.T) {
	ctx := context.Background()
	store, rs, db := newStore(t)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	gov := testutil.SeedFaction(t, ctx, db, war.ID, "Government Control", "GOV", squareFC)
	dbc := dbctx.Context{Ctx: ctx}

	// Mon 2020-01-06 .. Sun 2020-01-12 is one ISO week; 2020-01-13 starts the next.
	days := []time.Time{
		testutil.Day(2020, time.January, 6),
		testutil.Day(2020, time.January, 8),
		testutil.Day(2020, time.January, 12),
		testutil.Day(2020, time.January, 13),
		testutil.Day(2020, time.January, 15),
	}
	for _, d := range days {
		_, err := rs.TerritorySnapshot.Create(dbc, &types.TerritorySnapshot{
			FactionID: gov.ID, EffectiveDate: d, Territory: datatypes.JSON([]byte(squareFC)), Source: types.SnapshotSourcePeriodic,
		})
		require.NoError(t, err)
	}
	recent := testutil.Day(2022, time.March, 1)
	for i := 0; i < 3; i++ {
		_, err := rs.TerritorySnapshot.Create(dbc, &types.TerritorySnapshot{
			FactionID: gov.ID, EffectiveDate: recent.AddDate(0, 0, i), Territory: datatypes.JSON([]byte(squareFC)), Source: types.SnapshotSourcePeriodic,
		})
		require.NoError(t, err)
	}

	probe := testutil.Day(2020, time.January, 9)
	beforeCompaction, err := rs.TerritorySnapshot.LatestAsOf(dbc, gov.ID, probe)
	require.NoError(t, err)

	deleted, err := store.Compact(ctx, testutil.Day(2022, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	left, err := store.History(ctx, gov.ID)
	require.NoError(t, err)
	require.Len(t, left, 5)
	assert.True(t, left[0].EffectiveDate.Equal(days[0]))
	assert.True(t, left[1].EffectiveDate.Equal(days[3]))

	afterCompaction, err := rs.TerritorySnapshot.LatestAsOf(dbc, gov.ID, probe)
	require.NoError(t, err)
	assert.False(t, afterCompaction.EffectiveDate.After(beforeCompaction.EffectiveDate))
}
