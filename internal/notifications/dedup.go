package notifications

import (
	"context"

	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisDedup keeps processed event ids under dedup:{service}:{event_id}.
type RedisDedup struct {
	RDB     *redis.Client
	Service string
}

func (d RedisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, d.RDB, redisx.DedupKey(d.Service, eventID))
}

func (d RedisDedup) Mark(ctx context.Context, eventID string) error {
	_, err := redisx.ClaimOnce(ctx, d.RDB, redisx.DedupKey(d.Service, eventID), redisx.TTLDedup)
	return err
}
