// internal/webhook/dedup.go

package webhook

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper guards against the gateway redelivering the same message
type Deduper interface {
	// Claim returns true the first time sid is seen within the TTL
	Claim(ctx context.Context, sid string) (bool, error)
	// Release forgets sid so a redelivery is processed again
	Release(ctx context.Context, sid string) error
}

// RedisDeduper keeps seen message ids in Redis with SETNX
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper creates a deduper; ttl <= 0 means 24 hours
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "webhook:sms:"}
}

func (d *RedisDeduper) Claim(ctx context.Context, sid string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+sid, 1, d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, sid string) error {
	return d.client.Del(ctx, d.prefix+sid).Err()
}
