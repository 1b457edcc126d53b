package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

func TestTaskServiceDedupesOnQueue(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	taskRepo := repos.NewIngestTaskRepo(db, log)
	svc := NewTaskService(db, log, taskRepo, nil, "")

	warID := uuid.New()
	a, b := uuid.New(), uuid.New()
	crawls := []tasks.CrawlSource{
		{SourceID: a, WarID: warID, TargetDate: "2012-02-04"},
		{SourceID: b, WarID: warID, TargetDate: "2012-02-04"},
	}
	queued, err := svc.EnqueueCrawls(ctx, crawls)
	require.NoError(t, err)
	assert.Equal(t, crawls, queued)

	queued, err = svc.EnqueueCrawls(ctx, crawls)
	require.NoError(t, err)
	assert.Empty(t, queued, "identical crawls are not queued twice")

	// Once the source has been crawled the key moves on, even for the same target date.
	recrawl := crawls[0]
	recrawl.Since = "1328313600"
	queued, err = svc.EnqueueCrawls(ctx, []tasks.CrawlSource{recrawl, crawls[1]})
	require.NoError(t, err)
	assert.Equal(t, []tasks.CrawlSource{recrawl}, queued)

	created, err := svc.EnqueueHistorical(ctx, tasks.HistoricalSearch{WarID: warID, TargetDate: "2011-03-27"})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnqueueHistorical(ctx, tasks.HistoricalSearch{WarID: warID, TargetDate: "2011-03-27"})
	require.NoError(t, err)
	assert.False(t, created)

	items := []tasks.ProcessItem{
		{WarID: warID, Platform: "web", Link: "https://example.org/a", TargetDate: "2012-02-04"},
		{WarID: warID, Platform: "web", Link: " https://example.org/a ", TargetDate: "2012-02-05"},
		{WarID: warID, Platform: "web", Link: "https://example.org/b", TargetDate: "2012-02-04"},
	}
	n, err := svc.EnqueueItems(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one link is one item per war")

	counts, err := taskRepo.CountByStatus(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	assert.EqualValues(t, 6, counts[types.TaskStatusQueued])

	row, err := taskRepo.GetByDedupeKey(dbctx.Context{Ctx: ctx}, crawls[0].DedupeKey())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, tasks.TypeCrawlSource, row.TaskType)
	assert.Contains(t, string(row.Payload), a.String())
}

func TestTaskServiceDispatchNeedsTemporal(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewTaskService(db, log, repos.NewIngestTaskRepo(db, log), nil, "")
	assert.Error(t, svc.Dispatch(context.Background(), []uuid.UUID{uuid.New()}))
}
