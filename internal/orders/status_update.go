package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// StatusPatch is the allow-list of fields an admin may change on an order.
// Nil fields keep their stored value.
type StatusPatch struct {
	Status                *Status    `json:"status,omitempty"`
	AdminNotes            *string    `json:"admin_notes,omitempty"`
	TrackingID            *string    `json:"tracking_id,omitempty"`
	CourierName           *string    `json:"courier_name,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`
	DeliveredAt           *time.Time `json:"delivered_at,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
	IsCancelled           *bool      `json:"is_cancelled,omitempty"`
}

func (p StatusPatch) Empty() bool {
	return p.Status == nil &&
		p.AdminNotes == nil &&
		p.TrackingID == nil &&
		p.CourierName == nil &&
		p.EstimatedDeliveryDate == nil &&
		p.DeliveredAt == nil &&
		p.CancelledAt == nil &&
		p.IsCancelled == nil
}

// StatusPublisher announces a committed status change on a channel keyed by
// order id. o.UpdatedAt orders the changes of one order.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, o Order) error
}

type StatusUpdater struct {
	store     Store
	publisher StatusPublisher
	log       log.FieldLogger
	now       func() time.Time
}

func NewStatusUpdater(store Store, publisher StatusPublisher, logger log.FieldLogger) *StatusUpdater {
	return &StatusUpdater{
		store:     store,
		publisher: publisher,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpdateStatus applies a partial update. The status notification goes out
// after commit and its failure does not undo the update.
func (s *StatusUpdater) UpdateStatus(ctx context.Context, orderID int64, patch StatusPatch) (Order, error) {
	if patch.Empty() {
		return Order{}, ErrNoFieldsProvided
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return Order{}, validationError("unknown status %q", *patch.Status)
	}

	var (
		updated  Order
		previous Status
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		previous = cur.Status
		if patch.Status != nil {
			if !CanTransition(cur.Status, *patch.Status) {
				return &TransitionError{OrderID: orderID, From: cur.Status, To: *patch.Status}
			}
			if cur.Status != *patch.Status {
				patch = s.stamp(patch)
			}
		}
		updated, err = tx.UpdateOrder(ctx, orderID, patch)
		return err
	})
	if err != nil {
		return Order{}, classify(err)
	}

	entry := s.log.WithField("order_id", orderID)
	if patch.Status == nil || *patch.Status == previous {
		entry.Info("order updated")
		return updated, nil
	}

	entry.WithFields(log.Fields{"from": previous, "to": *patch.Status}).Info("order status changed")
	if s.publisher != nil {
		if err := s.publisher.PublishStatus(ctx, updated); err != nil {
			entry.WithError(err).Warn("publish status change")
		}
	}
	return updated, nil
}

// stamp fills the audit timestamps implied by the target status when the
// caller did not supply them.
func (s *StatusUpdater) stamp(p StatusPatch) StatusPatch {
	now := s.now()
	switch *p.Status {
	case StatusDelivered:
		if p.DeliveredAt == nil {
			p.DeliveredAt = &now
		}
	case StatusCancelled:
		if p.CancelledAt == nil {
			p.CancelledAt = &now
		}
		if p.IsCancelled == nil {
			cancelled := true
			p.IsCancelled = &cancelled
		}
	}
	return p
}
