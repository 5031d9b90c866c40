package notify

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const eventVersion = 1

// Publisher is the queueing side of a kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaPublisher wraps domain events in the v1 envelope and queues them on
// their topic, keyed by order id.
type KafkaPublisher struct {
	placed  Publisher
	status  Publisher
	service string
	now     func() time.Time
	newID   func() string
}

var (
	_ orders.OrderEvents     = (*KafkaPublisher)(nil)
	_ orders.StatusPublisher = (*KafkaPublisher)(nil)
)

func NewKafkaPublisher(placed, status Publisher, service string) *KafkaPublisher {
	return &KafkaPublisher{
		placed:  placed,
		status:  status,
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (k *KafkaPublisher) OrderPlaced(ctx context.Context, o orders.Order) error {
	env := k.envelope(ctx, orders.EventOrderPlaced, o.ID, orders.OrderPlacedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      o.Items,
		TotalCents: o.TotalCents,
	})
	return k.placed.Publish(orders.PartitionKey(o.ID), kafka.MustMarshal(env),
		kafka.EventHeaders(orders.EventOrderPlaced, eventVersion)...)
}

func (k *KafkaPublisher) PublishStatus(ctx context.Context, o orders.Order) error {
	env := k.envelope(ctx, orders.EventOrderStatusChanged, o.ID, orders.OrderStatusChangedPayload{
		OrderID: o.ID,
		Status:  o.Status,
	})
	return k.status.Publish(orders.PartitionKey(o.ID), kafka.MustMarshal(env),
		kafka.EventHeaders(orders.EventOrderStatusChanged, eventVersion)...)
}

func (k *KafkaPublisher) envelope(ctx context.Context, eventType string, orderID int64, payload any) orders.Envelope {
	return orders.Envelope{
		EventID:       k.newID(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    k.now(),
		Producer:      k.service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: string(orders.PartitionKey(orderID)),
		Payload:       kafka.MustMarshal(payload),
	}
}
