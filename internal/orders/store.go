package orders

import "context"

// Tx is the datastore surface available inside one transaction. Lock* calls
// take an exclusive row lock held until the transaction ends.
type Tx interface {
	LockProduct(ctx context.Context, id int64) (Product, error)
	DecrementStock(ctx context.Context, id int64, qty int) (Product, error)
	SetStock(ctx context.Context, id int64, qty int) (Product, error)

	InsertOrder(ctx context.Context, o *Order) error
	LockOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrder(ctx context.Context, id int64, p StatusPatch) (Order, error)
}

// Store runs fn in a single transaction: committed when fn returns nil,
// rolled back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
