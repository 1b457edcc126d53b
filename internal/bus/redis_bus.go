package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type redisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

// NewRedisBus publishes on "<prefix>:source.discovered". The client is shared and not closed by the bus.
func NewRedisBus(log *logger.Logger, rdb goredis.UniversalClient, prefix string) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "frontline"
	}
	return &redisBus{
		log:     log.With("service", "RedisBus"),
		rdb:     rdb,
		channel: prefix + ":" + TopicSourceDiscovered,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg SourceDiscovered) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		observability.Current().IncBusPublished(TopicSourceDiscovered, "error")
		return fmt.Errorf("redis publish: %w", err)
	}
	observability.Current().IncBusPublished(TopicSourceDiscovered, "ok")
	return nil
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m SourceDiscovered)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var msg SourceDiscovered
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad redis bus payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error { return nil }
