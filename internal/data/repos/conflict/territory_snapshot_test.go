package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

func TestTerritorySnapshotLatestAsOf(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewTerritorySnapshotRepo(db, testutil.Logger(t))

	war := testutil.SeedWar(t, ctx, db, "Syria")
	faction := testutil.SeedFaction(t, ctx, db, war.ID, "Government", "GOV", "")

	mk := func(day time.Time, body string, end *time.Time) *types.TerritorySnapshot {
		s, err := repo.Create(dbc, &types.TerritorySnapshot{
			FactionID:     faction.ID,
			EffectiveDate: day,
			EndDate:       end,
			Territory:     datatypes.JSON([]byte(body)),
			Source:        types.SnapshotSourcePeriodic,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return s
	}

	jan := testutil.Day(2014, time.January, 1)
	mar := testutil.Day(2014, time.March, 1)
	aprEnd := testutil.Day(2014, time.April, 1)
	mk(jan, `{"type":"FeatureCollection","features":[]}`, nil)
	mk(mar, `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{}}]}`, &aprEnd)

	got, err := repo.LatestAsOf(dbc, faction.ID, testutil.Day(2013, time.December, 31))
	if err != nil || got != nil {
		t.Fatalf("LatestAsOf before first: got=%+v err=%v", got, err)
	}
	got, err = repo.LatestAsOf(dbc, faction.ID, testutil.Day(2014, time.February, 10))
	if err != nil || got == nil || !got.EffectiveDate.Equal(jan) {
		t.Fatalf("LatestAsOf february: got=%+v err=%v", got, err)
	}
	got, err = repo.LatestAsOf(dbc, faction.ID, testutil.Day(2014, time.March, 15))
	if err != nil || got == nil || !got.EffectiveDate.Equal(mar) {
		t.Fatalf("LatestAsOf march: got=%+v err=%v", got, err)
	}
	// Past the bounded snapshot's end date the open-ended one applies again.
	got, err = repo.LatestAsOf(dbc, faction.ID, testutil.Day(2014, time.May, 1))
	if err != nil || got == nil || !got.EffectiveDate.Equal(jan) {
		t.Fatalf("LatestAsOf after end date: got=%+v err=%v", got, err)
	}

	exists, err := repo.ExistsOnDate(dbc, faction.ID, mar.Add(13*time.Hour))
	if err != nil || !exists {
		t.Fatalf("ExistsOnDate: %v %v", exists, err)
	}

	old, err := repo.ListBefore(dbc, faction.ID, mar)
	if err != nil || len(old) != 1 {
		t.Fatalf("ListBefore: len=%d err=%v", len(old), err)
	}
	n, err := repo.DeleteByIDs(dbc, []uuid.UUID{old[0].ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteByIDs: n=%d err=%v", n, err)
	}
}
