package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// EventDeliveryStatusUpdate is the event name subscribers see on every
// status message.
const EventDeliveryStatusUpdate = "delivery-status-update"

type StatusMessage struct {
	Event     string        `json:"event"`
	OrderID   int64         `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewStatusMessage(orderID int64, status orders.Status, at time.Time) StatusMessage {
	return StatusMessage{
		Event:     EventDeliveryStatusUpdate,
		OrderID:   orderID,
		Status:    status,
		UpdatedAt: at.UTC(),
	}
}

func DecodeStatusMessage(b []byte) (StatusMessage, error) {
	var m StatusMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return StatusMessage{}, pkgerrors.Wrap(err, "decode status message")
	}
	if !m.Status.Valid() {
		return StatusMessage{}, pkgerrors.Errorf("status message with unknown status %q", m.Status)
	}
	return m, nil
}

// StatusChannel publishes status changes on the per-order channel and keeps
// the status cache in step with them.
type StatusChannel struct {
	rdb   *redis.Client
	cache *StatusCache
}

var _ orders.StatusPublisher = (*StatusChannel)(nil)

func NewStatusChannel(rdb *redis.Client) *StatusChannel {
	return &StatusChannel{rdb: rdb, cache: NewStatusCache(rdb)}
}

// PublishStatus refreshes the cache before announcing the change, so a
// subscriber that reads the status on notification sees the new value. When
// the cache write fails the entry is dropped: a miss falls back to Postgres,
// a stale hit would not.
func (c *StatusChannel) PublishStatus(ctx context.Context, o orders.Order) error {
	b, err := json.Marshal(NewStatusMessage(o.ID, o.Status, o.UpdatedAt))
	if err != nil {
		return pkgerrors.Wrap(err, "encode status message")
	}

	var errs []error
	if err := c.cache.Set(ctx, o.ID, o.Status, o.UpdatedAt); err != nil {
		errs = append(errs, err)
		if err := c.rdb.Del(ctx, StatusKey(o.ID)).Err(); err != nil {
			errs = append(errs, pkgerrors.Wrap(err, "drop status cache"))
		}
	}
	if err := c.rdb.Publish(ctx, StatusChannelName(o.ID), b).Err(); err != nil {
		errs = append(errs, pkgerrors.Wrapf(err, "publish status of order %d", o.ID))
	}
	return errors.Join(errs...)
}

// Watch subscribes to one order's channel and hands every message to fn until
// ctx ends or fn fails. Malformed messages are skipped. ready, if not nil, runs
// once the subscription is confirmed, so anything it reads cannot miss a
// change published afterwards.
func (c *StatusChannel) Watch(ctx context.Context, orderID int64, ready func() error, fn func(StatusMessage) error) error {
	sub := c.rdb.Subscribe(ctx, StatusChannelName(orderID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return pkgerrors.Wrapf(err, "subscribe to order %d", orderID)
	}
	ch := sub.Channel()

	if ready != nil {
		if err := ready(); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := DecodeStatusMessage([]byte(m.Payload))
			if err != nil {
				continue
			}
			if err := fn(msg); err != nil {
				return err
			}
		}
	}
}

// setIfNewer writes the status hash only when ARGV[2] (the order's updated_at
// in microseconds) is newer than the stored version.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'v', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// StatusCache holds order_status:{id} as a hash of status and version, the
// order's updated_at. Writes that arrive out of order never replace a newer
// status.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

func (c *StatusCache) Get(ctx context.Context, orderID int64) (orders.Status, bool, error) {
	s, err := c.rdb.HGet(ctx, StatusKey(orderID), "status").Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrap(err, "read status cache")
	}
	status := orders.Status(s)
	if !status.Valid() {
		return "", false, pkgerrors.Errorf("status cache holds unknown status %q", s)
	}
	return status, true, nil
}

// Set stores status as of version. It reports no error when a newer version is
// already cached.
func (c *StatusCache) Set(ctx context.Context, orderID int64, status orders.Status, version time.Time) error {
	err := setIfNewer.Run(ctx, c.rdb, []string{StatusKey(orderID)},
		string(status), version.UnixMicro(), TTLStatusCache.Milliseconds()).Err()
	return pkgerrors.Wrap(err, "write status cache")
}
