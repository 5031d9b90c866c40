package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

// DecrementStock recomputes in_stock in the same write. The stock guard only
// trips if a caller skipped the lock.
func (t *pgTx) DecrementStock(ctx context.Context, id int64, qty int) (Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `
		UPDATE products
		   SET stock_quantity = stock_quantity - $2::int,
		       in_stock = (stock_quantity - $2::int) > 0,
		       updated_at = now()
		 WHERE id = $1 AND stock_quantity >= $2::int
		RETURNING `+productColumns, id, qty))
	if errors.Is(err, ErrProductNotFound) {
		return Product{}, &ProductError{ProductID: id, Requested: qty, Err: ErrInsufficientStock}
	}
	return p, err
}

func (t *pgTx) SetStock(ctx context.Context, id int64, qty int) (Product, error) {
	return scanProduct(t.tx.QueryRow(ctx, `
		UPDATE products
		   SET stock_quantity = $2::int,
		       in_stock = $2::int > 0,
		       updated_at = now()
		 WHERE id = $1
		RETURNING `+productColumns, id, qty))
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "encode items")
	}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO orders (
			user_id, items,
			shipping_name, shipping_phone, shipping_street, shipping_city, shipping_state, shipping_pincode,
			payment_method, payment_status, total_cents, discount_code, discount_cents, delivery_charge_cents,
			customer_notes, order_status
		)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`,
		o.UserID, string(items),
		o.Shipping.Name, o.Shipping.Phone, o.Shipping.Street, o.Shipping.City, o.Shipping.State, o.Shipping.Pincode,
		o.PaymentMethod, o.PaymentStatus, o.TotalCents, o.DiscountCode, o.DiscountCents, o.DeliveryChargeCents,
		o.CustomerNotes, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return errors.Wrap(err, "insert order")
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateOrder(ctx context.Context, id int64, p StatusPatch) (Order, error) {
	set := patchAssignments(p)
	if len(set) == 0 {
		return Order{}, ErrNoFieldsProvided
	}

	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+1)
	args = append(args, id)
	for i, a := range set {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.column, i+2))
		args = append(args, a.value)
	}
	// strictly increasing per row; caches use it as the status version
	clauses = append(clauses, "updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')")

	sql := `UPDATE orders SET ` + strings.Join(clauses, ", ") + ` WHERE id = $1 RETURNING ` + orderColumns
	return scanOrder(t.tx.QueryRow(ctx, sql, args...))
}

type assignment struct {
	column string
	value  any
}

// patchAssignments maps the StatusPatch allow-list onto fixed column names;
// nothing from the request ever reaches the SQL text.
func patchAssignments(p StatusPatch) []assignment {
	var out []assignment
	if p.Status != nil {
		out = append(out, assignment{"order_status", string(*p.Status)})
	}
	if p.AdminNotes != nil {
		out = append(out, assignment{"admin_notes", *p.AdminNotes})
	}
	if p.TrackingID != nil {
		out = append(out, assignment{"tracking_id", *p.TrackingID})
	}
	if p.CourierName != nil {
		out = append(out, assignment{"courier_name", *p.CourierName})
	}
	if p.EstimatedDeliveryDate != nil {
		out = append(out, assignment{"estimated_delivery_date", *p.EstimatedDeliveryDate})
	}
	if p.DeliveredAt != nil {
		out = append(out, assignment{"delivered_at", *p.DeliveredAt})
	}
	if p.CancelledAt != nil {
		out = append(out, assignment{"cancelled_at", *p.CancelledAt})
	}
	if p.IsCancelled != nil {
		out = append(out, assignment{"is_cancelled", *p.IsCancelled})
	}
	return out
}
