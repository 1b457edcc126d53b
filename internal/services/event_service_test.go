package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
)

func TestEventsOnDateSurplus(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	svc := NewEventService(db, log, repos.NewWarRepo(db, log), repos.NewEventRepo(db, log))

	day := testutil.Day(2012, time.February, 4)
	prev := day.AddDate(0, 0, -1)
	seed := func(d time.Time, i, score int) {
		testutil.SeedEvent(t, ctx, db, &types.Event{
			WarID:         war.ID,
			Title:         fmt.Sprintf("event %s %d", d.Format("0102"), i),
			EventDate:     d.Add(time.Duration(i) * time.Hour),
			Lat:           34.7,
			Lng:           36.7,
			OriginURL:     fmt.Sprintf("https://example.org/%s/%d", d.Format("0102"), i),
			HashKey:       fmt.Sprintf("h-%s-%d", d.Format("0102"), i),
			EvidenceScore: score,
		})
	}
	seed(day, 1, 2)
	seed(day, 2, 7)
	seed(prev, 1, 9)
	seed(prev, 2, 3)
	seed(prev, 3, 2)

	got, err := svc.EventsOnDate(ctx, EventQuery{WarID: war.ID, Date: &day})
	require.NoError(t, err)
	require.Len(t, got, 4, "two from the day plus the previous day's events with evidence >= 3")
	assert.Equal(t, 7, got[0].EvidenceScore)
	assert.Equal(t, 2, got[1].EvidenceScore)
	assert.Equal(t, 9, got[2].EvidenceScore)
	assert.Equal(t, 3, got[3].EvidenceScore)

	got, err = svc.EventsOnDate(ctx, EventQuery{WarID: war.ID, Date: &day, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2, "a full day takes no surplus")

	got, err = svc.EventsOnDate(ctx, EventQuery{WarID: war.ID, Date: &day, Limit: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 9, got[2].EvidenceScore)

	got, err = svc.EventsOnDate(ctx, EventQuery{WarID: war.ID, Date: &day, MinEvidence: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 7, got[0].EvidenceScore)
	assert.Equal(t, 9, got[1].EvidenceScore)
}

func TestEventsOnDateLatestAndErrors(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	svc := NewEventService(db, log, repos.NewWarRepo(db, log), repos.NewEventRepo(db, log))

	for i := 0; i < 3; i++ {
		testutil.SeedEvent(t, ctx, db, &types.Event{
			WarID:     war.ID,
			Title:     fmt.Sprintf("e%d", i),
			EventDate: testutil.Day(2013, time.May, 1+i),
			OriginURL: fmt.Sprintf("https://example.org/l/%d", i),
			HashKey:   fmt.Sprintf("l-%d", i),
		})
	}
	got, err := svc.EventsOnDate(ctx, EventQuery{WarID: war.ID})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e2", got[0].Title)

	_, err = svc.EventsOnDate(ctx, EventQuery{WarID: uuid.New()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.EventsOnDate(ctx, EventQuery{WarID: war.ID, MinEvidence: -1})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
