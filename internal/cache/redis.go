package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// referenceTTL is how long a transfer reference stays claimed in the
// fast path. The unique index on transfer_requests.reference remains the
// authoritative guard after expiry.
const referenceTTL = 24 * time.Hour

type Cache struct {
	client *redis.Client
}

func New(redisAddr string, db int) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   db,
	})

	return &Cache{
		client: client,
	}
}

// ClaimReference atomically claims an idempotency reference. It returns
// false when another creation already holds the reference, letting the
// handler reject a duplicate submission without a database round trip.
func (c *Cache) ClaimReference(ctx context.Context, reference string) (bool, error) {
	return c.client.SetNX(ctx, "transfer:ref:"+reference, 1, referenceTTL).Result()
}

// ReleaseReference frees a claimed reference after a creation that failed
// before reaching the database, so the client may retry with the same key.
func (c *Cache) ReleaseReference(ctx context.Context, reference string) error {
	return c.client.Del(ctx, "transfer:ref:"+reference).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
