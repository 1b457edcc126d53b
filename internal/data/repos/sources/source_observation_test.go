package sources

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

func TestSourceObservationRecordAndWindow(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	log := testutil.Logger(t)

	src := testutil.SeedSource(t, ctx, db, "web", "@handle", types.SourceStatusProbation, 50, nil)
	repo := NewSourceObservationRepo(db, log)

	day := testutil.Day(2024, time.May, 10)
	for i := 0; i < 3; i++ {
		if err := repo.Record(dbc, src.ID, day.Add(time.Duration(i)*time.Hour), 1, i%2); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := repo.Record(dbc, src.ID, day.AddDate(0, 0, -6), 4, 4); err != nil {
		t.Fatalf("Record edge day: %v", err)
	}
	if err := repo.Record(dbc, src.ID, day.AddDate(0, 0, -7), 100, 0); err != nil {
		t.Fatalf("Record outside window: %v", err)
	}

	rows, err := repo.ListForSource(dbc, src.ID)
	if err != nil {
		t.Fatalf("ListForSource: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected one row per day (3), got %d", len(rows))
	}

	found, accepted, err := repo.WindowTotals(dbc, src.ID, day.AddDate(0, 0, -6), day)
	if err != nil {
		t.Fatalf("WindowTotals: %v", err)
	}
	if found != 7 || accepted != 5 {
		t.Fatalf("WindowTotals: expected 7/5, got %d/%d", found, accepted)
	}
}

func TestSourceEnsureExists(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewSourceRepo(db, testutil.Logger(t))

	first, created, err := repo.EnsureExists(dbc, &types.Source{Platform: "Web", Handle: " reporter "})
	if err != nil || !created {
		t.Fatalf("EnsureExists first: created=%v err=%v", created, err)
	}
	if first.Status != types.SourceStatusProbation || first.ReliabilityScore != types.DefaultReliabilityScore {
		t.Fatalf("EnsureExists defaults: %+v", first)
	}
	second, created, err := repo.EnsureExists(dbc, &types.Source{Platform: "web", Handle: "reporter"})
	if err != nil || created {
		t.Fatalf("EnsureExists second: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("EnsureExists returned a different row")
	}

	at := time.Now().UTC()
	if err := repo.MarkCrawled(dbc, first.ID, at, 12); err != nil {
		t.Fatalf("MarkCrawled: %v", err)
	}
	got, err := repo.GetByID(dbc, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.TotalItemsFound != 12 || got.LastCrawledAt == nil {
		t.Fatalf("MarkCrawled not applied: %+v", got)
	}
}
