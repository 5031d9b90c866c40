package analytics

import (
	"context"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const paidStatus = "Paid"

type Repo struct{ DB *pgxpool.Pool }

// Summary runs the dashboard queries concurrently; the first failure cancels
// the rest.
func (r *Repo) Summary(ctx context.Context) (Summary, error) {
	var (
		s      Summary
		status []StatusRow
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&s.TotalProducts)
		return errors.Wrap(err, "count products")
	})
	g.Go(func() error {
		var err error
		status, err = r.statusRows(ctx)
		return err
	})
	g.Go(func() error {
		err := r.DB.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(SUM(total_cents), 0) FROM orders WHERE payment_status = $1`, paidStatus,
		).Scan(&s.PaidOrders, &s.PaidRevenueCents)
		return errors.Wrap(err, "paid orders")
	})
	g.Go(func() error {
		err := r.DB.QueryRow(ctx,
			`SELECT COUNT(DISTINCT user_id) FROM orders WHERE created_at >= now() - interval '30 days'`,
		).Scan(&s.ActiveCustomers30d)
		return errors.Wrap(err, "active customers")
	})
	g.Go(func() error {
		var err error
		s.TopProducts, err = r.topProducts(ctx, 5)
		return err
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	Tally(status, &s)
	return s, nil
}

func (r *Repo) statusRows(ctx context.Context) ([]StatusRow, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT order_status, COUNT(*), COALESCE(SUM(total_cents), 0) FROM orders GROUP BY order_status`)
	if err != nil {
		return nil, errors.Wrap(err, "orders by status")
	}
	defer rows.Close()

	var out []StatusRow
	for rows.Next() {
		var (
			row    StatusRow
			status string
		)
		if err := rows.Scan(&status, &row.Count, &row.TotalCents); err != nil {
			return nil, errors.Wrap(err, "scan status row")
		}
		row.Status = orders.Status(status)
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "iterate status rows")
}

func (r *Repo) topProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, SUM((i->>'quantity')::bigint) AS qty
		  FROM orders o
		 CROSS JOIN LATERAL jsonb_array_elements(o.items) AS i
		  JOIN products p ON p.id = (i->>'product_id')::bigint
		 WHERE o.payment_status = $1
		 GROUP BY p.id, p.name
		 ORDER BY qty DESC, p.id
		 LIMIT $2`, paidStatus, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	defer rows.Close()

	out := []TopProduct{}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.QuantitySold); err != nil {
			return nil, errors.Wrap(err, "scan top product")
		}
		out = append(out, tp)
	}
	return out, errors.Wrap(rows.Err(), "iterate top products")
}
