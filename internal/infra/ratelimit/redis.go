package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"truthcert/internal/domain"
)

const keyPrefix = "truthcert:rl:"

var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis shares fixed windows between service instances.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Now      func() time.Time
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedis(client, cfg.Now), nil
}

func newRedis(client *redis.Client, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	return &Redis{client: client, now: now}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	millis := span.Milliseconds()
	if millis <= 0 {
		millis = 1000
	}
	result, err := allowScript.Run(ctx, r.client, []string{keyPrefix + key}, millis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	return decide(result, limit, r.now())
}

// decide converts the script's {count, pttl} reply into a decision.
func decide(result any, limit int, now time.Time) (domain.RateLimitDecision, error) {
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected redis rate limit response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("invalid redis counter response")
	}
	ttl, _ := values[1].(int64)
	resetAt := now
	if ttl > 0 {
		resetAt = now.Add(time.Duration(ttl) * time.Millisecond)
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
