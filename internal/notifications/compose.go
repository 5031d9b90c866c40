package notifications

import (
	"fmt"

	"github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/orders"
)

// Compose turns an order event into the admin notification it announces.
// ok is false for event types that carry nothing worth telling an admin.
func Compose(env orders.Envelope) (n Notification, ok bool, err error) {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafka.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		units := 0
		for _, it := range p.Items {
			units += it.Quantity
		}
		return Notification{
			Title:   "New order received",
			Message: fmt.Sprintf("Order #%d by user %d: %d unit(s), total %s", p.OrderID, p.UserID, units, formatCents(p.TotalCents)),
			Type:    TypeOrder,
		}, true, nil

	case orders.EventOrderStatusChanged:
		p, err := kafka.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			Title:   "Order " + string(p.Status),
			Message: fmt.Sprintf("Order #%d is now %s", p.OrderID, p.Status),
			Type:    TypeStatus,
		}, true, nil
	}
	return Notification{}, false, nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
