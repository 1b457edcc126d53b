package geocode

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/yungbote/frontline-backend/internal/data/repos"
	types "github.com/yungbote/frontline-backend/internal/domain"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// ErrUnresolved is returned in strict mode when no tier produced a location.
var ErrUnresolved = fmt.Errorf("geocode: unresolved: %w", apperr.ErrRejected)

type Tier string

const (
	TierDictionary Tier = "dictionary"
	TierCache      Tier = "cache"
	TierRegion     Tier = "region"
	TierLive       Tier = "live"
	TierFallback   Tier = "fallback"
	TierMiss       Tier = "miss"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LivePlace struct {
	Point
	DisplayName string
}

// Live is the external geocoding collaborator.
type Live interface {
	Geocode(ctx context.Context, query string) (LivePlace, bool, error)
}

type Resolution struct {
	Point
	Tier Tier
	Name string
}

// Options select the miss policy of one ingestion path.
type Options struct {
	// Strict discards unresolved names instead of inventing a location.
	Strict bool
	// Anchor is the default point used on a miss when not strict.
	Anchor Point
}

type Config struct {
	RegionJitter   float64
	FallbackJitter float64
	MicroJitter    float64
}

func DefaultConfig() Config {
	return Config{RegionJitter: 0.15, FallbackJitter: 0.05, MicroJitter: 0.0005}
}

type Resolver struct {
	gaz   *Gazetteer
	cache repos.GeocodeCacheRepo
	live  Live
	cfg   Config
	log   *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver wires the tiers. live may be nil, in which case the live tier always misses.
func NewResolver(baseLog *logger.Logger, gaz *Gazetteer, cache repos.GeocodeCacheRepo, live Live, cfg Config) *Resolver {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Resolver{
		gaz:   gaz,
		cache: cache,
		live:  live,
		cfg:   cfg,
		log:   baseLog.With("service", "GeocodeResolver"),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Resolve walks dictionary, cache, region and live tiers in order and stops at the first hit.
// ok is false when every tier missed.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, bool, error) {
	key := Normalize(name)
	if key == "" {
		return Resolution{Tier: TierMiss}, false, nil
	}

	if p, ok := r.gaz.Lookup(name); ok {
		return r.hit(TierDictionary, Point{p.Lat, p.Lng}, p.Name), true, nil
	}

	if r.cache != nil {
		entry, err := r.cache.Get(dbctx.Context{Ctx: ctx}, key)
		if err != nil {
			return Resolution{}, false, fmt.Errorf("geocode cache: %w", err)
		}
		if entry != nil {
			return r.hit(TierCache, Point{entry.Lat, entry.Lng}, entry.DisplayName), true, nil
		}
	}

	if reg, ok := r.gaz.MatchRegion(name); ok {
		pt := Point{
			Lat: reg.Lat + r.jitter(r.cfg.RegionJitter),
			Lng: reg.Lng + r.jitter(r.cfg.RegionJitter),
		}
		return r.hit(TierRegion, pt, reg.Name), true, nil
	}

	if r.live != nil {
		query := r.gaz.LiveQuery(name)
		place, found, err := r.live.Geocode(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return Resolution{}, false, ctx.Err()
			}
			// Geocoder trouble degrades to a miss; the item is not failed for it.
			r.log.Warn("live geocode failed", "name", name, "query", query, "error", err)
		} else if found {
			if r.cache != nil {
				perr := r.cache.Put(dbctx.Context{Ctx: ctx}, &types.GeocodeCacheEntry{
					SearchTerm:  key,
					Lat:         place.Lat,
					Lng:         place.Lng,
					DisplayName: place.DisplayName,
				})
				if perr != nil {
					r.log.Warn("geocode cache write failed", "term", key, "error", perr)
				}
			}
			return r.hit(TierLive, place.Point, place.DisplayName), true, nil
		}
	}

	observability.Current().IncGeocode(string(TierMiss))
	return Resolution{Tier: TierMiss, Name: name}, false, nil
}

// Locate resolves name under the miss policy in opts. Strict misses return ErrUnresolved; other
// misses return the jittered anchor tagged TierFallback. Non-strict hits get a micro-jitter so
// repeated reports at one place do not stack.
func (r *Resolver) Locate(ctx context.Context, name string, opts Options) (Resolution, error) {
	res, ok, err := r.Resolve(ctx, name)
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		if opts.Strict {
			return Resolution{Tier: TierMiss, Name: name}, ErrUnresolved
		}
		observability.Current().IncGeocode(string(TierFallback))
		res = Resolution{
			Tier: TierFallback,
			Name: name,
			Point: Point{
				Lat: opts.Anchor.Lat + r.jitter(r.cfg.FallbackJitter),
				Lng: opts.Anchor.Lng + r.jitter(r.cfg.FallbackJitter),
			},
		}
	}
	if !opts.Strict {
		res.Lat += r.jitter(r.cfg.MicroJitter)
		res.Lng += r.jitter(r.cfg.MicroJitter)
	}
	return res, nil
}

func IsUnresolved(err error) bool { return errors.Is(err, ErrUnresolved) }

func (r *Resolver) hit(tier Tier, p Point, name string) Resolution {
	observability.Current().IncGeocode(string(tier))
	return Resolution{Point: p, Tier: tier, Name: name}
}

// jitter returns a uniform value in [-spread, spread].
func (r *Resolver) jitter(spread float64) float64 {
	if spread <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return (r.rng.Float64()*2 - 1) * spread
}
