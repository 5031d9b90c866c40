package notifications

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type Store interface {
	Create(ctx context.Context, n Notification) (Notification, error)
}

// Deduper remembers which events were already turned into notifications.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Service is the notifier's consumer handler.
type Service struct {
	Store Store
	Dedup Deduper
	Log   log.FieldLogger
}

// HandleEvent is installed as the kafka.Handler. A returned error makes the
// consumer retry the same message before its partition moves on, so only
// transient failures may return one; undecodable events are dropped.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.WithError(err).WithField("offset", m.Offset).Warn("drop undecodable event")
		return nil
	}
	entry := s.Log.WithFields(log.Fields{"event_id": env.EventID, "event_type": env.EventType})

	seen, err := s.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		return errors.Wrap(err, "dedup lookup")
	}
	if seen {
		entry.Debug("duplicate event skipped")
		return nil
	}

	n, ok, err := Compose(env)
	if err != nil {
		entry.WithError(err).Warn("drop event with bad payload")
		return nil
	}
	if !ok {
		return nil
	}

	stored, err := s.Store.Create(ctx, n)
	if err != nil {
		return errors.Wrap(err, "store notification")
	}
	if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
		entry.WithError(err).Warn("mark event processed")
	}
	entry.WithField("notification_id", stored.ID).Info("notification created")
	return nil
}
