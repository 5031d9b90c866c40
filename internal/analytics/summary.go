package analytics

import "github.com/ariefcatur/storefront-orders/internal/orders"

type TopProduct struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	QuantitySold int64  `json:"quantity_sold"`
}

type Summary struct {
	TotalProducts         int64            `json:"total_products"`
	TotalOrders           int64            `json:"total_orders"`
	Delivered             int64            `json:"delivered"`
	Cancelled             int64            `json:"cancelled"`
	Returned              int64            `json:"returned"`
	DeliveredRevenueCents int64            `json:"delivered_revenue_cents"`
	ByStatus              map[string]int64 `json:"by_status"`
	PaidOrders            int64            `json:"paid_orders"`
	PaidRevenueCents      int64            `json:"paid_revenue_cents"`
	ActiveCustomers30d    int64            `json:"active_customers_30d"`
	TopProducts           []TopProduct     `json:"top_products"`
}

// StatusRow is one GROUP BY order_status row.
type StatusRow struct {
	Status     orders.Status
	Count      int64
	TotalCents int64
}

// Tally folds per-status rows into the order counters of a Summary. Revenue
// counts delivered orders only.
func Tally(rows []StatusRow, s *Summary) {
	s.ByStatus = make(map[string]int64, len(rows))
	for _, r := range rows {
		s.TotalOrders += r.Count
		s.ByStatus[string(r.Status)] += r.Count
		switch r.Status {
		case orders.StatusDelivered:
			s.Delivered += r.Count
			s.DeliveredRevenueCents += r.TotalCents
		case orders.StatusCancelled:
			s.Cancelled += r.Count
		case orders.StatusReturned:
			s.Returned += r.Count
		}
	}
}
