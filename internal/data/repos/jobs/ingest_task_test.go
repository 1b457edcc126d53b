package jobs

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

func TestIngestTaskRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewIngestTaskRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	queued := &types.IngestTask{
		TaskType:  "process_item",
		DedupeKey: "item:https://example.org/a",
		Payload:   datatypes.JSON([]byte(`{}`)),
		CreatedAt: now.Add(-3 * time.Hour),
	}
	notYet := &types.IngestTask{
		TaskType:  "process_item",
		DedupeKey: "item:https://example.org/b",
		Status:    types.TaskStatusDeferred,
		NotBefore: &future,
		Payload:   datatypes.JSON([]byte(`{}`)),
		CreatedAt: now.Add(-4 * time.Hour),
	}
	exhausted := &types.IngestTask{
		TaskType:  "process_item",
		DedupeKey: "item:https://example.org/c",
		Status:    types.TaskStatusFailed,
		Attempts:  3,
		NotBefore: &past,
		Payload:   datatypes.JSON([]byte(`{}`)),
		CreatedAt: now.Add(-5 * time.Hour),
	}

	inserted, err := repo.Enqueue(dbc, []*types.IngestTask{queued, notYet, exhausted})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(inserted) != 3 {
		t.Fatalf("Enqueue: expected 3 inserted, got %d", len(inserted))
	}

	// Same dedupe key again is a no-op.
	again, err := repo.Enqueue(dbc, []*types.IngestTask{{
		TaskType:  "process_item",
		DedupeKey: "item:https://example.org/a",
		Payload:   datatypes.JSON([]byte(`{}`)),
	}})
	if err != nil {
		t.Fatalf("Enqueue duplicate: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("Enqueue duplicate: expected 0 inserted, got %d", len(again))
	}

	claimed, err := repo.ClaimNextRunnable(dbc, 3, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != queued.ID {
		t.Fatalf("ClaimNextRunnable: expected queued task, got %+v", claimed)
	}
	if claimed.Status != types.TaskStatusRunning || claimed.Attempts != 1 {
		t.Fatalf("ClaimNextRunnable: expected running/1, got %s/%d", claimed.Status, claimed.Attempts)
	}

	next, err := repo.ClaimNextRunnable(dbc, 3, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable second: %v", err)
	}
	if next != nil {
		t.Fatalf("ClaimNextRunnable second: expected nothing runnable, got %s", next.DedupeKey)
	}

	if err := repo.UpdateFields(dbc, notYet.ID, map[string]interface{}{"not_before": past}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	next, err = repo.ClaimNextRunnable(dbc, 3, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable after release: %v", err)
	}
	if next == nil || next.ID != notYet.ID {
		t.Fatalf("ClaimNextRunnable after release: expected deferred task, got %+v", next)
	}

	if byID, err := repo.ClaimByID(dbc, exhausted.ID, 3); err != nil || byID != nil {
		t.Fatalf("ClaimByID exhausted: err=%v task=%+v", err, byID)
	}

	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.TaskStatusRunning] != 2 || counts[types.TaskStatusFailed] != 1 {
		t.Fatalf("CountByStatus: got %v", counts)
	}
}

func TestIngestTaskRepoReclaimsStaleRunning(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewIngestTaskRepo(db, testutil.Logger(t))

	stale := time.Now().UTC().Add(-2 * time.Hour)
	task := &types.IngestTask{
		TaskType:    "crawl_source",
		DedupeKey:   "crawl:x",
		Status:      types.TaskStatusRunning,
		Attempts:    1,
		HeartbeatAt: &stale,
		Payload:     datatypes.JSON([]byte(`{}`)),
	}
	if _, err := repo.Enqueue(dbc, []*types.IngestTask{task}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := repo.ClaimNextRunnable(dbc, 3, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.Attempts != 2 {
		t.Fatalf("expected stale task reclaimed with attempts=2, got %+v", claimed)
	}
}
