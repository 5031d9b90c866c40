package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:order:create:{Idempotency-Key header} -> order id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// order_status:{order_id} -> hash {status, v}; v is the order's updated_at in microseconds
	KeyOrderStatus = "order_status:%d"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// pub/sub channel carrying status changes of one order
	ChannelOrderStatus = "order:%d:status"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func IdempotencyKey(key string) string { return fmt.Sprintf(KeyIdemOrderCreate, key) }

func StatusKey(orderID int64) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }

func StatusChannelName(orderID int64) string { return fmt.Sprintf(ChannelOrderStatus, orderID) }
