package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/frontline-backend/internal/observability"
	apperr "github.com/yungbote/frontline-backend/internal/pkg/errors"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

// ErrTimeout is returned when the gate could not be acquired in time. It wraps ErrDeferred so
// callers can leave the item for a later cycle.
var ErrTimeout = fmt.Errorf("gate: acquire timed out: %w", apperr.ErrDeferred)

// Store is the shared coordination service holding the gate key.
type Store interface {
	// SetNX writes key=value with ttl only if key is absent.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// PTTL returns the remaining lifetime of key, or 0 if the key is missing or has no expiry.
	PTTL(ctx context.Context, key string) (time.Duration, error)
	// ExpireIfValue resets the key's ttl only while it still holds value.
	ExpireIfValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

type Config struct {
	Key string
	// TTL bounds how long a crashed holder can block everyone else.
	TTL time.Duration
	// Cooldown is the minimum spacing between one release and the next acquisition.
	Cooldown time.Duration
	// MaxWait caps a single sleep between attempts.
	MaxWait time.Duration
	// Timeout is the default acquire budget when the caller passes 0.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Key:      "ai_rate_lock",
		TTL:      3 * time.Second,
		Cooldown: 2 * time.Second,
		MaxWait:  500 * time.Millisecond,
		Timeout:  120 * time.Second,
	}
}

type Gate struct {
	store    Store
	cfg      Config
	log      *logger.Logger
	degraded atomic.Bool
}

func New(store Store, cfg Config, baseLog *logger.Logger) *Gate {
	def := DefaultConfig()
	if cfg.Key == "" {
		cfg.Key = def.Key
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Gate{
		store: store,
		cfg:   cfg,
		log:   baseLog.With("component", "CoordinationGate", "key", cfg.Key),
	}
}

func (g *Gate) Config() Config { return g.cfg }

// Degraded reports whether the last store interaction failed and the gate is failing open.
func (g *Gate) Degraded() bool { return g.degraded.Load() }

// Lease is a held gate. Release must be called exactly once; extra calls are ignored.
type Lease struct {
	g        *Gate
	token    string
	failOpen bool
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// FailOpen reports that the lease was granted without the coordination service.
func (l *Lease) FailOpen() bool { return l != nil && l.failOpen }

// Acquire blocks until the gate is held, timeout elapses, or ctx ends. A store error grants a
// fail-open lease instead of blocking ingestion.
func (g *Gate) Acquire(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}
	start := time.Now()
	deadline := start.Add(timeout)
	token := uuid.NewString()

	for {
		ok, err := g.store.SetNX(ctx, g.cfg.Key, token, g.cfg.TTL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return g.failOpen(err, start), nil
		}
		g.markHealthy()
		if ok {
			observability.Current().ObserveGate("acquired", time.Since(start))
			return g.hold(token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			observability.Current().ObserveGate("timeout", time.Since(start))
			g.log.Info("gate acquire timed out", "waited", time.Since(start).String())
			return nil, ErrTimeout
		}
		wait, err := g.store.PTTL(ctx, g.cfg.Key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return g.failOpen(err, start), nil
		}
		if wait <= 0 || wait > g.cfg.MaxWait {
			wait = g.cfg.MaxWait
		}
		if wait > remaining {
			wait = remaining
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Release hands the gate back. The key is not deleted: its ttl is reset to the cool-down so the
// next holder, on any worker, starts no earlier than Cooldown from now.
func (l *Lease) Release(ctx context.Context) {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.failOpen {
			return
		}
		close(l.stop)
		<-l.done
		g := l.g
		ttl := g.cfg.Cooldown
		if ttl <= 0 {
			ttl = time.Millisecond
		}
		ok, err := g.store.ExpireIfValue(ctx, g.cfg.Key, l.token, ttl)
		if err != nil {
			g.log.Warn("gate release failed; key will expire on its own ttl", "error", err)
			return
		}
		if !ok {
			// Another holder may already be inside; no cool-down was applied.
			g.log.Warn("gate released after lease was lost; cooldown not applied", "key", g.cfg.Key, "cooldown", ttl)
		}
	})
}

func (g *Gate) hold(token string) *Lease {
	l := &Lease{
		g:     g,
		token: token,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.keepalive()
	return l
}

// keepalive refreshes the ttl while the holder is still working so a slow classifier call
// does not let a second worker in.
func (l *Lease) keepalive() {
	defer close(l.done)
	interval := l.g.cfg.TTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := l.g.store.ExpireIfValue(ctx, l.g.cfg.Key, l.token, l.g.cfg.TTL)
			cancel()
			if err != nil {
				l.g.log.Warn("gate keepalive failed", "error", err)
				continue
			}
			if !ok {
				l.g.log.Warn("gate lease lost before release")
				return
			}
		}
	}
}

func (g *Gate) failOpen(err error, start time.Time) *Lease {
	if !g.degraded.Swap(true) {
		g.log.Warn("coordination store unavailable; gate failing open", "capacity_risk", true, "error", err)
	} else {
		g.log.Debug("gate failing open", "capacity_risk", true, "error", err)
	}
	observability.Current().SetGateDegraded(true)
	observability.Current().ObserveGate("fail_open", time.Since(start))
	return &Lease{g: g, failOpen: true}
}

func (g *Gate) markHealthy() {
	if g.degraded.Swap(false) {
		g.log.Info("coordination store reachable again; gate enforcing")
		observability.Current().SetGateDegraded(false)
	}
}

// IsTimeout reports whether err came from an acquire that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
