package orders

import "time"

type Product struct {
	ID            int64     `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"price_cents"`
	StockQuantity int       `json:"stock_quantity"`
	InStock       bool      `json:"in_stock"` // always StockQuantity > 0
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LineItem is snapshotted into the order as submitted and never changes.
type LineItem struct {
	ProductID  int64  `json:"product_id" validate:"gt=0"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	Name       string `json:"name,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty" validate:"gte=0"`
}

type ShippingAddress struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Pincode string `json:"pincode" validate:"required"`
}

type Order struct {
	ID                    int64           `json:"id"`
	UserID                int64           `json:"user_id"`
	Items                 []LineItem      `json:"items"`
	Shipping              ShippingAddress `json:"shipping"`
	PaymentMethod         string          `json:"payment_method"`
	PaymentStatus         string          `json:"payment_status"`
	TotalCents            int64           `json:"total_cents"`
	DiscountCode          *string         `json:"discount_code,omitempty"`
	DiscountCents         int64           `json:"discount_cents"`
	DeliveryChargeCents   int64           `json:"delivery_charge_cents"`
	CustomerNotes         string          `json:"customer_notes"`
	AdminNotes            string          `json:"admin_notes"`
	Status                Status          `json:"status"`
	TrackingID            string          `json:"tracking_id"`
	CourierName           string          `json:"courier_name"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date,omitempty"`
	DeliveredAt           *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	IsCancelled           bool            `json:"is_cancelled"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
