package redisx

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Idempotency maps client supplied Idempotency-Key values to the order they
// created. Postgres stays the source of truth; a lost key only means a retry
// is placed again.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func (i *Idempotency) Lookup(ctx context.Context, key string) (int64, bool, error) {
	id, err := i.rdb.Get(ctx, IdempotencyKey(normalizeKey(key))).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, pkgerrors.Wrap(err, "lookup idempotency key")
	}
	return id, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, key string, orderID int64) error {
	err := i.rdb.SetNX(ctx, IdempotencyKey(normalizeKey(key)), orderID, TTLIdempotency).Err()
	return pkgerrors.Wrap(err, "remember idempotency key")
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}
