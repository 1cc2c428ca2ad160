package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/doctrack/doctrack/internal/clock"
	"github.com/doctrack/doctrack/internal/document"
)

// slidingWindow prunes, counts and records in one round trip so concurrent
// processes sharing the key cannot both take the last slot.
// KEYS[1] key, ARGV: now ms, window ms, limit, member, exclusive prune bound.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[5])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

// Redis keeps admission timestamps in a sorted set per key, so every process
// pointing at the same server shares one budget.
type Redis struct {
	client *redis.Client
	prefix string
	clock  clock.Clock
}

// NewRedis creates a Redis-backed limiter. Prefix may be empty.
func NewRedis(client *redis.Client, prefix string, clk clock.Clock) *Redis {
	if prefix == "" {
		prefix = "rl:"
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Redis{client: client, prefix: prefix, clock: clk}
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Allow(ctx context.Context, scope Scope, client string) error {
	if scope.Limit <= 0 {
		return nil
	}
	size := scope.window()
	now := r.clock.Now().UnixMilli()

	ok, err := slidingWindow.Run(ctx, r.client,
		[]string{r.prefix + key(scope, client)},
		now, size.Milliseconds(), scope.Limit, uuid.NewString(),
		"("+strconv.FormatInt(now-size.Milliseconds(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: %d requests per %s for %s", document.ErrRateLimited, scope.Limit, size, scope.Name)
	}
	return nil
}
