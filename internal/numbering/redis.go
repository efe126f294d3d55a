package numbering

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "numbering:seq:"

// allocateScript runs atomically inside Redis.
var allocateScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if floor > current then
	current = floor
end
current = current + 1
redis.call("SET", KEYS[1], current)
return current
`)

// RedisStore keeps sequences as Redis counters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Allocate implements Store.
func (s *RedisStore) Allocate(ctx context.Context, scope string, floor int64) (int64, error) {
	return allocateScript.Run(ctx, s.client, []string{redisKeyPrefix + scope}, floor).Int64()
}
