package notify

import (
	"context"
	"errors"

	"github.com/ariefcatur/storefront-orders/internal/orders"
)

// Fanout sends a status change to every publisher, even after one fails, and
// joins the failures.
type Fanout []orders.StatusPublisher

func (f Fanout) PublishStatus(ctx context.Context, o orders.Order) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishStatus(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
