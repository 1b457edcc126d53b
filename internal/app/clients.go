package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/frontline-backend/internal/bus"
	redisclient "github.com/yungbote/frontline-backend/internal/clients/redis"
	"github.com/yungbote/frontline-backend/internal/gate"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/temporalx"
)

type Clients struct {
	Redis     *goredis.Client
	GateStore gate.Store
	Bus       bus.Bus
	Temporal  temporalsdkclient.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewClient(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.GateStore = redisclient.NewGateStore(rdb)
	} else {
		log.Warn("REDIS_ADDR not set; coordination gate is process-local", "capacity_risk", true)
		out.GateStore = gate.NewMemoryStore()
	}

	// Event bus
	switch cfg.eventBusKind() {
	case "redis":
		if out.Redis == nil {
			out.Close()
			return Clients{}, fmt.Errorf("EVENT_BUS=redis requires REDIS_ADDR")
		}
		b, err := bus.NewRedisBus(log, out.Redis, "frontline")
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		out.Bus = b
	case "amqp":
		b, err := bus.NewAMQPBus(log, cfg.AMQP)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init amqp bus: %w", err)
		}
		out.Bus = b
	default:
		out.Bus = bus.NewMemoryBus()
	}

	// Temporal
	tc, err := temporalx.NewClient(log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc
	return out, nil
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
