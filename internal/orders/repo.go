package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const productColumns = `id, sku, name, price_cents, stock_quantity, in_stock, created_at, updated_at`

const orderColumns = `id, user_id, items,
	shipping_name, shipping_phone, shipping_street, shipping_city, shipping_state, shipping_pincode,
	payment_method, payment_status, total_cents, discount_code, discount_cents, delivery_charge_cents,
	customer_notes, admin_notes, order_status, tracking_id, courier_name,
	estimated_delivery_date, delivered_at, cancelled_at, is_cancelled, created_at, updated_at`

// Repo is the Postgres Store plus the read side of products and orders.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// GetOrderStatus returns the status together with the updated_at it was read at.
func (r *Repo) GetOrderStatus(ctx context.Context, id int64) (Status, time.Time, error) {
	var (
		s  string
		at time.Time
	)
	err := r.DB.QueryRow(ctx, `SELECT order_status, updated_at FROM orders WHERE id=$1`, id).Scan(&s, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, ErrOrderNotFound
	}
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "get order status")
	}
	return Status(s), at, nil
}

func (r *Repo) ListOrders(ctx context.Context) ([]Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
}

func (r *Repo) ListUserOrders(ctx context.Context, userID int64) ([]Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *Repo) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate orders")
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate products")
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.StockQuantity, &p.InStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, errors.Wrap(err, "scan product")
	}
	return p, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		items  []byte
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items,
		&o.Shipping.Name, &o.Shipping.Phone, &o.Shipping.Street, &o.Shipping.City, &o.Shipping.State, &o.Shipping.Pincode,
		&o.PaymentMethod, &o.PaymentStatus, &o.TotalCents, &o.DiscountCode, &o.DiscountCents, &o.DeliveryChargeCents,
		&o.CustomerNotes, &o.AdminNotes, &status, &o.TrackingID, &o.CourierName,
		&o.EstimatedDeliveryDate, &o.DeliveredAt, &o.CancelledAt, &o.IsCancelled, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, errors.Wrap(err, "scan order")
	}
	o.Status = Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, errors.Wrapf(err, "decode items of order %d", o.ID)
	}
	return o, nil
}
