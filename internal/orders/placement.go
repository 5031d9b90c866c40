package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPaymentMethod = "online"
	defaultPaymentStatus = "Unpaid"
)

// PlaceOrderInput is the place-order request. TotalCents is persisted as
// supplied and is not recomputed from line items or current prices.
type PlaceOrderInput struct {
	UserID              int64           `json:"user_id" validate:"gt=0"`
	Items               []LineItem      `json:"items" validate:"required,min=1,dive"`
	Address             ShippingAddress `json:"address"`
	PaymentMethod       string          `json:"payment_method" validate:"max=32"`
	PaymentStatus       string          `json:"payment_status" validate:"max=32"`
	TotalCents          int64           `json:"total_cents" validate:"gt=0"`
	DiscountCode        string          `json:"discount_code" validate:"max=64"`
	DiscountCents       int64           `json:"discount_cents" validate:"gte=0"`
	DeliveryChargeCents int64           `json:"delivery_charge_cents" validate:"gte=0"`
	CustomerNotes       string          `json:"customer_notes" validate:"max=2000"`
}

// OrderEvents receives committed placements. Delivery is best effort.
type OrderEvents interface {
	OrderPlaced(ctx context.Context, o Order) error
}

type Placement struct {
	store    Store
	events   OrderEvents
	log      log.FieldLogger
	validate *validator.Validate
}

func NewPlacement(store Store, events OrderEvents, logger log.FieldLogger) *Placement {
	return &Placement{
		store:    store,
		events:   events,
		log:      logger,
		validate: validator.New(),
	}
}

// PlaceOrder records the order and reserves stock for every line item in one
// transaction: either the order exists and inventory reflects it, or nothing
// was written.
func (p *Placement) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	if err := p.validateInput(in); err != nil {
		return Order{}, err
	}

	order := in.toOrder()
	wanted := aggregateDemand(in.Items)

	err := p.store.InTx(ctx, func(tx Tx) error {
		ledger := NewLedger(tx)
		for _, d := range wanted {
			if err := ledger.Check(ctx, d.productID, d.qty); err != nil {
				return err
			}
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		for _, d := range wanted {
			if err := ledger.Reserve(ctx, d.productID, d.qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		p.log.WithError(err).WithField("user_id", in.UserID).Info("order rejected")
		return Order{}, err
	}

	p.log.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"items":    len(order.Items),
	}).Info("order placed")

	if p.events != nil {
		if err := p.events.OrderPlaced(ctx, order); err != nil {
			p.log.WithError(err).WithField("order_id", order.ID).Warn("publish order placed")
		}
	}
	return order, nil
}

func (p *Placement) validateInput(in PlaceOrderInput) error {
	err := p.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return validationError("%s", strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "PlaceOrderInput.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long", field)
	default:
		return field + " is invalid"
	}
}

func (in PlaceOrderInput) toOrder() Order {
	o := Order{
		UserID:              in.UserID,
		Items:               append([]LineItem(nil), in.Items...),
		Shipping:            in.Address,
		PaymentMethod:       in.PaymentMethod,
		PaymentStatus:       in.PaymentStatus,
		TotalCents:          in.TotalCents,
		DiscountCents:       in.DiscountCents,
		DeliveryChargeCents: in.DeliveryChargeCents,
		CustomerNotes:       in.CustomerNotes,
		Status:              StatusPending,
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = defaultPaymentMethod
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = defaultPaymentStatus
	}
	if code := strings.TrimSpace(in.DiscountCode); code != "" {
		o.DiscountCode = &code
	}
	return o
}
