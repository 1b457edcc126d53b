package trends

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

func TestKeywords(t *testing.T) {
	texts := []string{
		"[COMBAT] Shelling reported in Saraqib",
		"[COMBAT] Saraqib shelling continues (Saraqib)",
		"Army and rebels clash near Taftanaz, shelling",
		"Taftanaz airbase",
		"Breaking: the Taftanaz airbase",
	}
	got := Keywords(texts, 2, 3)
	require.Len(t, got, 2)
	assert.Equal(t, Count{Keyword: "saraqib", Count: 3}, got[0])
	assert.Equal(t, Count{Keyword: "shelling", Count: 3}, got[1], "ties break alphabetically")

	all := Keywords(texts, 0, 2)
	var words []string
	for _, c := range all {
		words = append(words, c.Keyword)
	}
	assert.ElementsMatch(t, []string{"saraqib", "shelling", "taftanaz", "airbase"}, words)
	assert.NotContains(t, words, "combat")
	assert.NotContains(t, words, "the")

	assert.Empty(t, Keywords(nil, 10, 1))
}

func TestLearnerAnalyzeAndActive(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	war := testutil.SeedWar(t, ctx, db, "Syrian civil war")
	other := testutil.SeedWar(t, ctx, db, "Other war")

	seed := func(w *types.War, i int, title string) {
		testutil.SeedEvent(t, ctx, db, &types.Event{
			WarID:     w.ID,
			Title:     title,
			EventDate: testutil.Day(2012, time.February, 4),
			OriginURL: fmt.Sprintf("https://news.example/%s/%d", w.ID, i),
			HashKey:   fmt.Sprintf("%s-%d", w.ID, i),
		})
	}
	for i := 0; i < 4; i++ {
		seed(war, i, "[COMBAT] Shelling in Saraqib")
	}
	seed(war, 10, "[PROTEST] Crowd in Hama")
	for i := 0; i < 5; i++ {
		seed(other, i, "[COMBAT] Fighting around Marib")
	}

	l := NewLearner(db, log, rs.Event, rs.Trend, Config{})
	now := time.Now().UTC().Add(time.Minute)
	learned, err := l.Analyze(ctx, war.ID, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"saraqib", "shelling"}, learned)

	active, err := l.Active(ctx, war.ID, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"saraqib", "shelling"}, active)

	active, err = l.Active(ctx, war.ID, 1)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	otherActive, err := l.Active(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, otherActive, "trends are per war")

	// New coverage replaces keywords that stopped recurring.
	for i := 20; i < 23; i++ {
		seed(war, i, "[COMBAT] Airstrikes on Taftanaz")
	}
	require.NoError(t, db.Model(&types.Event{}).
		Where("war_id = ? AND title LIKE ?", war.ID, "%Saraqib%").
		Update("created_at", now.Add(-48*time.Hour)).Error)
	learned, err = l.Analyze(ctx, war.ID, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"airstrikes", "taftanaz"}, learned)

	active, err = l.Active(ctx, war.ID, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"airstrikes", "taftanaz"}, active)

	rows, err := rs.Trend.ListActive(dbctx.Context{Ctx: ctx}, war.ID, 0)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, 3.0, r.Score)
	}
}

func TestLearnerKeepsTrendsWhenNothingQualifies(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	war := testutil.SeedWar(t, ctx, db, "Syrian civil war")

	require.NoError(t, rs.Trend.Upsert(dbctx.Context{Ctx: ctx}, war.ID, "idlib", 4, time.Now().UTC()))

	l := NewLearner(db, log, rs.Event, rs.Trend, DefaultConfig())
	learned, err := l.Analyze(ctx, war.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, learned)

	active, err := l.Active(ctx, war.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"idlib"}, active)
}
