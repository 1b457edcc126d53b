package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
)

type fakeLive struct {
	calls  atomic.Int32
	places map[string]LivePlace
	err    error
}

func (f *fakeLive) Geocode(_ context.Context, query string) (LivePlace, bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return LivePlace{}, false, f.err
	}
	p, ok := f.places[query]
	return p, ok, nil
}

func newResolver(t *testing.T, live Live) (*Resolver, repos.GeocodeCacheRepo) {
	t.Helper()
	gaz, err := LoadGazetteer("")
	require.NoError(t, err)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	cache := repos.NewGeocodeCacheRepo(db, log)
	return NewResolver(log, gaz, cache, live, DefaultConfig()), cache
}

func TestGazetteerLookup(t *testing.T) {
	gaz, err := LoadGazetteer("")
	require.NoError(t, err)

	p, ok := gaz.Lookup("  HOMS ")
	require.True(t, ok)
	assert.Equal(t, "Homs", p.Name)

	p, ok = gaz.Lookup("al-Saraqib")
	require.True(t, ok, "al- prefix is stripped")
	assert.Equal(t, "Saraqib", p.Name)

	p, ok = gaz.Lookup("Qusayr")
	require.True(t, ok, "al- prefix is added")
	assert.Equal(t, "Al-Qusayr", p.Name)

	p, ok = gaz.Lookup("حلب")
	require.True(t, ok)
	assert.Equal(t, "Aleppo", p.Name)

	p, ok = gaz.Lookup("Geneva")
	require.True(t, ok)
	assert.InDelta(t, 46.2044, p.Lat, 1e-9)

	_, ok = gaz.Lookup("Atlantis")
	assert.False(t, ok)
}

func TestGazetteerRegionAndLiveQuery(t *testing.T) {
	gaz, err := LoadGazetteer("")
	require.NoError(t, err)

	r, ok := gaz.MatchRegion("Idlib countryside")
	require.True(t, ok)
	assert.Equal(t, "Idlib", r.Name)

	r, ok = gaz.MatchRegion("southern Daraa villages")
	require.True(t, ok)
	assert.Equal(t, "Daraa", r.Name)

	r, ok = gaz.MatchRegion("Damascus countryside")
	require.True(t, ok)
	assert.Equal(t, "Rif Dimashq", r.Name)

	_, ok = gaz.MatchRegion("Hamadiyah")
	assert.False(t, ok, "region names match whole words only")

	assert.Equal(t, "Hims, Syria", gaz.LiveQuery("homs"))
	assert.Equal(t, "Kafr Zita, Syria", gaz.LiveQuery("Kafr Zita"))
}

func TestResolveTierOrder(t *testing.T) {
	live := &fakeLive{places: map[string]LivePlace{
		"Kafr Zita, Syria": {Point: Point{Lat: 35.37, Lng: 36.60}, DisplayName: "Kafr Zita"},
	}}
	r, cache := newResolver(t, live)
	ctx := context.Background()

	res, ok, err := r.Resolve(ctx, "Aleppo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TierDictionary, res.Tier)

	res, ok, err = r.Resolve(ctx, "Hama countryside")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TierRegion, res.Tier)
	assert.InDelta(t, 35.13, res.Lat, 0.15+1e-9)
	assert.InDelta(t, 36.75, res.Lng, 0.15+1e-9)
	assert.Equal(t, int32(0), live.calls.Load())

	res, ok, err = r.Resolve(ctx, "Kafr Zita")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TierLive, res.Tier)
	assert.Equal(t, int32(1), live.calls.Load())

	n, err := cache.Count(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, ok, err = r.Resolve(ctx, "  kafr zita")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TierCache, res.Tier)
	assert.Equal(t, int32(1), live.calls.Load(), "cached names never reach the live geocoder")
}

func TestResolveCachedNameSkipsLive(t *testing.T) {
	live := &fakeLive{}
	r, cache := newResolver(t, live)
	ctx := context.Background()
	require.NoError(t, cache.Put(dbctx.Context{Ctx: ctx}, &types.GeocodeCacheEntry{
		SearchTerm: "Tell Tamer", Lat: 36.65, Lng: 40.37, DisplayName: "Tell Tamer",
	}))

	res, err := r.Locate(ctx, "tell tamer", Options{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, TierCache, res.Tier)
	assert.Equal(t, 36.65, res.Lat, "strict mode adds no jitter")
	assert.Equal(t, int32(0), live.calls.Load())
}

func TestLocateMissPolicies(t *testing.T) {
	live := &fakeLive{err: errors.New("http 503")}
	r, _ := newResolver(t, live)
	ctx := context.Background()

	_, err := r.Locate(ctx, "Nowhere Village", Options{Strict: true})
	require.Error(t, err)
	assert.True(t, IsUnresolved(err))

	anchor := Point{Lat: 33.5138, Lng: 36.2765}
	res, err := r.Locate(ctx, "Nowhere Village", Options{Anchor: anchor})
	require.NoError(t, err)
	assert.Equal(t, TierFallback, res.Tier)
	assert.InDelta(t, anchor.Lat, res.Lat, 0.05+0.0005+1e-9)
	assert.InDelta(t, anchor.Lng, res.Lng, 0.05+0.0005+1e-9)
}

func TestNominatimClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Duma, Syria", req.URL.Query().Get("q"))
		assert.NotEmpty(t, req.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"33.5711","lon":"36.4019","display_name":"Duma, Rif Dimashq"}]`))
	}))
	defer srv.Close()

	n := NewNominatim(testutil.Logger(t), NominatimConfig{BaseURL: srv.URL, Interval: time.Millisecond})
	p, ok, err := n.Geocode(context.Background(), "Duma, Syria")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 33.5711, p.Lat, 1e-9)
	assert.Equal(t, "Duma, Rif Dimashq", p.DisplayName)
	assert.Equal(t, int32(1), hits.Load())
}
