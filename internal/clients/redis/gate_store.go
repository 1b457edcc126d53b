package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// expireIfValue resets the ttl only if the key still holds our token, so a late release never
// shortens someone else's lease.
var expireIfValue = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// GateStore backs the coordination gate with SET NX PX / PTTL / a compare-and-expire script.
type GateStore struct {
	rdb goredis.UniversalClient
}

func NewGateStore(rdb goredis.UniversalClient) *GateStore {
	return &GateStore{rdb: rdb}
}

func (s *GateStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *GateStore) PTTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -1 (no expiry) and -2 (missing) come back as negative durations.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *GateStore) ExpireIfValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	n, err := expireIfValue.Run(ctx, s.rdb, []string{key}, value, ms).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
