package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisWindow = time.Minute

// Counter is the subset of the go-redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Redis is a fixed-window counter shared by every server instance.
type Redis struct {
	client Counter
	prefix string
	limit  int64
	now    func() time.Time
}

// NewRedis allows perMinute requests per key in each one-minute window.
func NewRedis(client Counter, prefix string, perMinute int) *Redis {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  int64(perMinute),
		now:    time.Now,
	}
}

// NewRedisClient connects to the configured Redis instance.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	window := r.now().Unix() / int64(redisWindow/time.Second)
	bucket := fmt.Sprintf("%s:%s:%d", r.prefix, key, window)

	count, err := r.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", bucket, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, bucket, redisWindow).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", bucket, err)
		}
	}
	return count <= r.limit, nil
}
