package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	httpH "github.com/yungbote/frontline-backend/internal/http/handlers"
	"github.com/yungbote/frontline-backend/internal/services"
	"github.com/yungbote/frontline-backend/internal/territory"
)

const square = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[36,34],[37,34],[37,35],[36,35],[36,34]]]}}]}`

type fixture struct {
	router  *gin.Engine
	war     *types.War
	faction *types.Faction
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	war := testutil.SeedWar(t, ctx, db, "Syria")
	gov := testutil.SeedFaction(t, ctx, db, war.ID, "Government", "GOV", square)
	require.NoError(t, db.Create(&types.TerritorySnapshot{
		FactionID:     gov.ID,
		EffectiveDate: testutil.Day(2012, time.January, 1),
		Territory:     []byte(square),
		Source:        types.SnapshotSourceManual,
	}).Error)
	for i, score := range []int{4, 8} {
		testutil.SeedEvent(t, ctx, db, &types.Event{
			WarID:         war.ID,
			Title:         fmt.Sprintf("[COMBAT] e%d", i),
			EventDate:     testutil.Day(2012, time.February, 4).Add(time.Hour),
			OriginURL:     fmt.Sprintf("https://example.org/%d", i),
			HashKey:       fmt.Sprintf("h%d", i),
			EvidenceScore: score,
		})
	}

	store := territory.NewStore(db, log, rs, territory.DefaultConfig())
	events := services.NewEventService(db, log, rs.War, rs.Event)
	r := NewRouter(RouterConfig{
		Log:           log,
		HealthHandler: httpH.NewHealthHandler(db),
		WarHandler:    httpH.NewWarHandler(rs.War, rs.Faction, store, events),
	})
	return fixture{router: r, war: war, faction: gov}
}

func (f fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]json.RawMessage
	if rec.Header().Get("Content-Type") != "" && rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthcheck(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.get(t, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTerritoryRoutes(t *testing.T) {
	f := newFixture(t)
	base := "/api/wars/" + f.war.ID.String()

	rec, body := f.get(t, base+"/territory?date=2012-03-01")
	require.Equal(t, http.StatusOK, rec.Code)
	var factions []territory.FactionTerritory
	require.NoError(t, json.Unmarshal(body["factions"], &factions))
	require.Len(t, factions, 1)
	assert.Equal(t, "2012-01-01", factions[0].SnapshotDate)

	rec, body = f.get(t, base+"/territory")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"current"`, string(body["as_of"]))

	rec, _ = f.get(t, base+"/territory?date=01-03-2012")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.get(t, "/api/wars/"+uuid.NewString()+"/territory")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.get(t, base+"/territory/history?faction="+f.faction.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var snaps []types.TerritorySnapshot
	require.NoError(t, json.Unmarshal(body["snapshots"], &snaps))
	assert.Len(t, snaps, 1)

	rec, _ = f.get(t, base+"/territory/history?faction="+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.get(t, base+"/territory/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsRoute(t *testing.T) {
	f := newFixture(t)
	base := "/api/wars/" + f.war.ID.String()

	rec, body := f.get(t, base+"/events?date=2012-02-04")
	require.Equal(t, http.StatusOK, rec.Code)
	var evs []types.Event
	require.NoError(t, json.Unmarshal(body["events"], &evs))
	require.Len(t, evs, 2)
	assert.Equal(t, 8, evs[0].EvidenceScore)

	rec, body = f.get(t, base+"/events?date=2012-02-04&min_evidence=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body["events"], &evs))
	assert.Len(t, evs, 1)

	rec, _ = f.get(t, base+"/events?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.get(t, "/api/wars/not-a-uuid/events")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
