package historical_search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/ingestion/origin"
	jobrt "github.com/yungbote/frontline-backend/internal/jobs/runtime"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/scheduler"
)

type fakeSearcher struct {
	platform string
	hits     map[string][]origin.Item
	fail     map[string]bool
	queries  []string
}

func (f *fakeSearcher) Platform() string { return f.platform }

func (f *fakeSearcher) FetchLatestItems(context.Context, string, int) ([]origin.Item, error) {
	return nil, nil
}

func (f *fakeSearcher) FetchMetadata(context.Context, string) (*origin.Metadata, error) {
	return &origin.Metadata{}, nil
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]origin.Item, error) {
	f.queries = append(f.queries, query)
	if f.fail[query] || f.fail["*"] {
		return nil, errors.New("search backend down")
	}
	hits := f.hits[query]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// feedOnly has no Search and must be ignored.
type feedOnly struct{}

func (feedOnly) Platform() string { return "rss" }
func (feedOnly) FetchLatestItems(context.Context, string, int) ([]origin.Item, error) {
	return nil, nil
}
func (feedOnly) FetchMetadata(context.Context, string) (*origin.Metadata, error) {
	return &origin.Metadata{}, nil
}

type captureItems struct {
	mu    sync.Mutex
	items []tasks.ProcessItem
}

func (c *captureItems) EnqueueItems(_ context.Context, items []tasks.ProcessItem) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
	return len(items), nil
}

type staticLearned struct {
	keywords []string
	err      error
}

func (s staticLearned) Active(_ context.Context, _ uuid.UUID, n int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.keywords) > n {
		return s.keywords[:n], nil
	}
	return s.keywords, nil
}

func eraKeywords() *scheduler.EraKeywords {
	return &scheduler.EraKeywords{
		Default: []string{"shelling"},
		Years:   map[int][]string{2012: {"Homs siege", "Baba Amr"}},
	}
}

func job(t *testing.T, payload any) *jobrt.Context {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	task := &types.IngestTask{TaskType: tasks.TypeHistoricalSearch, Status: types.TaskStatusRunning, Payload: datatypes.JSON(b)}
	return jobrt.NewContext(context.Background(), nil, task, nil, jobrt.DefaultRetryPolicy())
}

func TestHistoricalSearchDedupesAcrossQueries(t *testing.T) {
	log := testutil.Logger(t)
	archive := &fakeSearcher{platform: "archive", hits: map[string][]origin.Item{
		"Homs siege 2012": {
			{Title: "Siege of Homs day 20", Link: "https://archive.example/a"},
			{Title: "Baba Amr shelled", Link: "https://archive.example/b"},
			{Title: "empty"},
		},
		"Baba Amr 2012": {
			{Title: "Baba Amr shelled", Link: " https://archive.example/b "},
			{Title: "Baba Amr falls", Link: "https://archive.example/c"},
		},
	}}
	video := &fakeSearcher{platform: "video", hits: map[string][]origin.Item{
		"Homs siege 2012": {{Title: "Siege of Homs day 20", Link: "https://archive.example/a"}},
	}}
	items := &captureItems{}
	p := New(log, origin.NewRegistry(archive, video, feedOnly{}), eraKeywords(), nil, items, DefaultConfig())

	warID := uuid.New()
	jc := job(t, tasks.HistoricalSearch{WarID: warID, TargetDate: "2012-02-24"})
	require.NoError(t, p.Run(jc))
	require.Equal(t, types.TaskStatusSucceeded, jc.Outcome())

	var res Result
	require.NoError(t, json.Unmarshal(jc.Task.Result, &res))
	assert.Equal(t, []string{"Homs siege 2012", "Baba Amr 2012"}, res.Queries)
	assert.Equal(t, 6, res.Found)
	assert.Equal(t, 3, res.Enqueued)
	assert.Zero(t, res.Failed)

	require.Len(t, items.items, 3)
	links := map[string]string{}
	for _, it := range items.items {
		assert.True(t, it.Strict, "archive hits are strict")
		assert.Nil(t, it.SourceID)
		assert.Equal(t, warID, it.WarID)
		assert.Equal(t, "2012-02-24", it.TargetDate)
		links[it.Link] = it.Platform
	}
	assert.Equal(t, map[string]string{
		"https://archive.example/a": "archive",
		"https://archive.example/b": "archive",
		"https://archive.example/c": "archive",
	}, links)
	assert.Equal(t, []string{"Homs siege 2012", "Baba Amr 2012"}, video.queries)
}

func TestHistoricalSearchAddsLearnedKeywords(t *testing.T) {
	log := testutil.Logger(t)
	archive := &fakeSearcher{platform: "archive", hits: map[string][]origin.Item{
		"Taftanaz 2012": {{Title: "Taftanaz airbase", Link: "https://archive.example/t"}},
	}}
	items := &captureItems{}
	learned := staticLearned{keywords: []string{"Taftanaz", "Homs siege", "Saraqib", "Idlib"}}
	p := New(log, origin.NewRegistry(archive), eraKeywords(), learned, items, Config{Learned: 3})

	jc := job(t, tasks.HistoricalSearch{WarID: uuid.New(), TargetDate: "2012-11-03"})
	require.NoError(t, p.Run(jc))

	var res Result
	require.NoError(t, json.Unmarshal(jc.Task.Result, &res))
	assert.Equal(t, []string{"Homs siege 2012", "Baba Amr 2012", "Taftanaz 2012", "Saraqib 2012"}, res.Queries)
	assert.Equal(t, 2, res.Learned)
	require.Len(t, items.items, 1)
	assert.Equal(t, "https://archive.example/t", items.items[0].Link)

	// Learned keywords are optional: a lookup failure only drops them.
	p = New(log, origin.NewRegistry(archive), eraKeywords(), staticLearned{err: errors.New("db down")}, items, DefaultConfig())
	jc = job(t, tasks.HistoricalSearch{WarID: uuid.New(), TargetDate: "2012-11-03"})
	require.NoError(t, p.Run(jc))
	require.NoError(t, json.Unmarshal(jc.Task.Result, &res))
	assert.Equal(t, []string{"Homs siege 2012", "Baba Amr 2012"}, res.Queries)
}

func TestHistoricalSearchFailsWhenEverySearchFails(t *testing.T) {
	log := testutil.Logger(t)
	archive := &fakeSearcher{platform: "archive", fail: map[string]bool{"*": true}}
	items := &captureItems{}
	p := New(log, origin.NewRegistry(archive), eraKeywords(), nil, items, DefaultConfig())

	jc := job(t, tasks.HistoricalSearch{WarID: uuid.New(), TargetDate: "2012-02-24"})
	err := p.Run(jc)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrPermanent), "a search outage is retried")
	assert.False(t, jc.Finalized())
	assert.Empty(t, items.items)
}

func TestHistoricalSearchPartialFailureSucceeds(t *testing.T) {
	log := testutil.Logger(t)
	archive := &fakeSearcher{
		platform: "archive",
		fail:     map[string]bool{"Homs siege 2012": true},
		hits: map[string][]origin.Item{
			"Baba Amr 2012": {{Title: "Baba Amr falls", Link: "https://archive.example/c"}},
		},
	}
	items := &captureItems{}
	p := New(log, origin.NewRegistry(archive), eraKeywords(), nil, items, DefaultConfig())

	jc := job(t, tasks.HistoricalSearch{WarID: uuid.New(), TargetDate: "2012-02-24"})
	require.NoError(t, p.Run(jc))
	var res Result
	require.NoError(t, json.Unmarshal(jc.Task.Result, &res))
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Enqueued)
}

func TestHistoricalSearchPermanentErrors(t *testing.T) {
	log := testutil.Logger(t)
	items := &captureItems{}
	archive := &fakeSearcher{platform: "archive"}

	p := New(log, origin.NewRegistry(archive), eraKeywords(), nil, items, DefaultConfig())
	err := p.Run(job(t, tasks.HistoricalSearch{TargetDate: "2012-02-24"}))
	assert.True(t, errors.Is(err, apperr.ErrPermanent), "missing war")

	err = p.Run(job(t, tasks.HistoricalSearch{WarID: uuid.New(), TargetDate: "24/02/2012"}))
	assert.True(t, errors.Is(err, apperr.ErrPermanent), "bad date")

	p = New(log, origin.NewRegistry(feedOnly{}), eraKeywords(), nil, items, DefaultConfig())
	err = p.Run(job(t, tasks.HistoricalSearch{WarID: uuid.New(), TargetDate: "2012-02-24"}))
	assert.True(t, errors.Is(err, apperr.ErrPermanent), "no searchable origin")
	assert.Empty(t, items.items)
}
