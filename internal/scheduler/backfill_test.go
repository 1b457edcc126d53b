package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	"github.com/yungbote/frontline-backend/internal/jobs/tasks"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

type countingTrends struct {
	calls int
	err   error
}

func (c *countingTrends) Analyze(context.Context, uuid.UUID, time.Time) ([]string, error) {
	c.calls++
	return nil, c.err
}

type failingEnqueuer struct{ fakeEnqueuer }

func (f *failingEnqueuer) EnqueueHistorical(context.Context, tasks.HistoricalSearch) (bool, error) {
	return false, errors.New("queue unavailable")
}

func TestBackfillResumesFromCursor(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	war := testutil.SeedWar(t, ctx, db, "Syrian civil war")

	enq := &fakeEnqueuer{}
	sched := New(log, rs.Source, enq, DefaultConfig())
	sched.now = func() time.Time { return time.Date(2011, time.March, 20, 9, 0, 0, 0, time.UTC) }
	tr := &countingTrends{err: errors.New("no events table")}
	b := NewBackfill(log, rs.War, rs.BackfillCursor, sched, tr)

	next, historical, err := b.Next(ctx, war.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Day(2011, time.March, 15), next, "a fresh cursor starts at the war start date")
	assert.True(t, historical)

	for _, want := range []string{"2011-03-15", "2011-03-16"} {
		rep, err := b.Step(ctx, war.ID)
		require.NoError(t, err)
		require.NotNil(t, rep)
		assert.Equal(t, ModeHistorical, rep.Mode)
		assert.Equal(t, want, rep.TargetDate)
	}
	assert.Equal(t, 2, tr.calls, "trends refresh before every step even when analysis fails")

	// A new driver over the same store resumes after the last scheduled day.
	b2 := NewBackfill(log, rs.War, rs.BackfillCursor, sched, nil)
	rep, err := b2.Step(ctx, war.ID)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "2011-03-17", rep.TargetDate)

	rep, err = b2.Step(ctx, war.ID)
	require.NoError(t, err)
	assert.Nil(t, rep, "2011-03-18 is inside the live window")

	cur, err := rs.BackfillCursor.Get(dbctx.Context{Ctx: ctx}, war.ID)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, testutil.Day(2011, time.March, 17), cur.LastDate.UTC())

	require.Len(t, enq.historical, 3)
	assert.Equal(t, "2011-03-15", enq.historical[0].TargetDate)
	assert.Equal(t, "2011-03-17", enq.historical[2].TargetDate)

	require.NoError(t, rs.BackfillCursor.Reset(dbctx.Context{Ctx: ctx}, war.ID))
	next, _, err = b2.Next(ctx, war.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Day(2011, time.March, 15), next)
}

func TestBackfillFailedCycleKeepsCursor(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	war := testutil.SeedWar(t, ctx, db, "Syrian civil war")

	sched := New(log, rs.Source, &failingEnqueuer{}, DefaultConfig())
	sched.now = func() time.Time { return time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC) }
	b := NewBackfill(log, rs.War, rs.BackfillCursor, sched, nil)

	_, err := b.Step(ctx, war.ID)
	require.Error(t, err)

	cur, err := rs.BackfillCursor.Get(dbctx.Context{Ctx: ctx}, war.ID)
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, err = b.Step(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
