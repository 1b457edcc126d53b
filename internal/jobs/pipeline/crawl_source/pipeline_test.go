package crawl_source

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	jobrt "github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/services"
)

type fakeOrigin struct {
	items   []origin.Item
	err     error
	handles []string
}

func (f *fakeOrigin) Platform() string { return "test" }

func (f *fakeOrigin) FetchLatestItems(_ context.Context, handle string, limit int) ([]origin.Item, error) {
	f.handles = append(f.handles, handle)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeOrigin) FetchMetadata(context.Context, string) (*origin.Metadata, error) {
	return &origin.Metadata{}, nil
}

type env struct {
	db  *gorm.DB
	rs  repos.Set
	war *types.War
	org *fakeOrigin
	p   *Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	e := &env{
		db:  db,
		rs:  rs,
		war: testutil.SeedWar(t, context.Background(), db, "Syrian civil war"),
		org: &fakeOrigin{},
	}
	svc := services.NewTaskService(db, log, rs.IngestTask, nil, "")
	e.p = New(db, log, rs.Source, origin.NewRegistry(e.org), svc, 10)
	return e
}

func (e *env) job(t *testing.T, payload any) *jobrt.Context {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	task := &types.IngestTask{TaskType: tasks.TypeCrawlSource, Status: types.TaskStatusRunning, Payload: datatypes.JSON(b)}
	return jobrt.NewContext(context.Background(), e.db, task, e.rs.IngestTask, jobrt.DefaultRetryPolicy())
}

func (e *env) crawl(src *types.Source) tasks.CrawlSource {
	return tasks.CrawlSource{SourceID: src.ID, WarID: e.war.ID, TargetDate: "2024-06-02"}
}

func result(t *testing.T, jc *jobrt.Context) Result {
	t.Helper()
	require.Equal(t, types.TaskStatusSucceeded, jc.Outcome())
	var res Result
	require.NoError(t, json.Unmarshal(jc.Task.Result, &res))
	return res
}

func TestCrawlSourceEnqueuesOneItemPerLink(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := testutil.SeedSource(t, ctx, e.db, "test", "frontline_news", types.SourceStatusTrusted, 80, nil)
	uploaded := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	e.org.items = []origin.Item{
		{Title: "Shelling in Idlib", Link: "https://news.example/1", UploadDate: &uploaded},
		{Title: "Clashes near Aleppo", Link: " https://news.example/2 "},
		{Title: "No link"},
		{Title: "Protest in Daraa", Link: "https://news.example/3"},
	}

	jc := e.job(t, e.crawl(src))
	require.NoError(t, e.p.Run(jc))
	res := result(t, jc)
	assert.Equal(t, 4, res.Found)
	assert.Equal(t, 3, res.Enqueued)
	assert.Equal(t, []string{"frontline_news"}, e.org.handles)

	got, err := e.rs.Source.GetByID(dbctx.Context{Ctx: ctx}, src.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastCrawledAt)
	assert.Equal(t, 4, got.TotalItemsFound)

	counts, err := e.rs.IngestTask.CountByStatus(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[types.TaskStatusQueued])

	item := tasks.ProcessItem{WarID: e.war.ID, Link: "https://news.example/2"}
	row, err := e.rs.IngestTask.GetByDedupeKey(dbctx.Context{Ctx: ctx}, item.DedupeKey())
	require.NoError(t, err)
	require.NotNil(t, row)
	var queued tasks.ProcessItem
	require.NoError(t, json.Unmarshal(row.Payload, &queued))
	assert.Equal(t, "https://news.example/2", queued.Link)
	assert.Equal(t, "2024-06-02", queued.TargetDate)
	require.NotNil(t, queued.SourceID)
	assert.Equal(t, src.ID, *queued.SourceID)
	assert.False(t, queued.Strict)

	// A second crawl of the same listing adds to the counter but queues nothing new.
	jc = e.job(t, e.crawl(src))
	require.NoError(t, e.p.Run(jc))
	res = result(t, jc)
	assert.Equal(t, 0, res.Enqueued)
	got, err = e.rs.Source.GetByID(dbctx.Context{Ctx: ctx}, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.TotalItemsFound)
}

func TestCrawlSourceSkipsBannedAndMissing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	banned := testutil.SeedSource(t, ctx, e.db, "test", "spam", types.SourceStatusBanned, 5, nil)

	jc := e.job(t, e.crawl(banned))
	require.NoError(t, e.p.Run(jc))
	assert.Equal(t, "banned", result(t, jc).Skipped)

	jc = e.job(t, tasks.CrawlSource{SourceID: uuid.New(), WarID: e.war.ID, TargetDate: "2024-06-02"})
	require.NoError(t, e.p.Run(jc))
	assert.Equal(t, "missing", result(t, jc).Skipped)

	assert.Empty(t, e.org.handles, "skipped sources are never fetched")
	got, err := e.rs.Source.GetByID(dbctx.Context{Ctx: ctx}, banned.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCrawledAt)
}

func TestCrawlSourceUnknownPlatformIsPermanent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := testutil.SeedSource(t, ctx, e.db, "carrier_pigeon", "coop", types.SourceStatusProbation, 50, nil)

	err := e.p.Run(e.job(t, e.crawl(src)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPermanent))

	got, err := e.rs.Source.GetByID(dbctx.Context{Ctx: ctx}, src.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCrawledAt)
}

func TestCrawlSourceFetchFailureIsRetryable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := testutil.SeedSource(t, ctx, e.db, "test", "frontline_news", types.SourceStatusTrusted, 80, nil)
	e.org.err = errors.New("503 from feed")

	err := e.p.Run(e.job(t, e.crawl(src)))
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrPermanent))

	got, err := e.rs.Source.GetByID(dbctx.Context{Ctx: ctx}, src.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCrawledAt, "a failed fetch is not a crawl")
	assert.Zero(t, got.TotalItemsFound)
}

func TestCrawlSourceMalformedPayload(t *testing.T) {
	e := newEnv(t)

	err := e.p.Run(e.job(t, tasks.CrawlSource{WarID: e.war.ID}))
	assert.True(t, errors.Is(err, apperr.ErrPermanent))

	jc := e.job(t, nil)
	jc.Task.Payload = datatypes.JSON(`{"source_id": 7}`)
	err = e.p.Run(jc)
	assert.True(t, errors.Is(err, apperr.ErrPermanent))
}
