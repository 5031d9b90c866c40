package orders

import (
	"context"
	"errors"
	"sort"
)

// Ledger is the inventory view of a single transaction. Every product it
// touches is locked once and stays locked until the transaction ends, so a
// check followed by a reserve never observes a stale quantity.
type Ledger struct {
	tx     Tx
	locked map[int64]Product
}

func NewLedger(tx Tx) *Ledger {
	return &Ledger{tx: tx, locked: make(map[int64]Product)}
}

func (l *Ledger) Lock(ctx context.Context, productID int64) (Product, error) {
	if p, ok := l.locked[productID]; ok {
		return p, nil
	}
	p, err := l.tx.LockProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, &ProductError{ProductID: productID, Err: ErrProductNotFound}
		}
		return Product{}, err
	}
	l.locked[productID] = p
	return p, nil
}

// Check locks the product and verifies that qty units are available.
func (l *Ledger) Check(ctx context.Context, productID int64, qty int) error {
	p, err := l.Lock(ctx, productID)
	if err != nil {
		return err
	}
	if p.StockQuantity < qty {
		return &ProductError{
			ProductID: productID,
			Requested: qty,
			Available: p.StockQuantity,
			Err:       ErrInsufficientStock,
		}
	}
	return nil
}

// Reserve decrements qty units. Durable only if the enclosing transaction commits.
func (l *Ledger) Reserve(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return validationError("quantity for product %d must be positive", productID)
	}
	if err := l.Check(ctx, productID, qty); err != nil {
		return err
	}
	p, err := l.tx.DecrementStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	l.locked[productID] = p
	return nil
}

// Restock overwrites the available quantity (admin adjustment).
func (l *Ledger) Restock(ctx context.Context, productID int64, qty int) (Product, error) {
	if qty < 0 {
		return Product{}, validationError("stock quantity for product %d cannot be negative", productID)
	}
	if _, err := l.Lock(ctx, productID); err != nil {
		return Product{}, err
	}
	p, err := l.tx.SetStock(ctx, productID, qty)
	if err != nil {
		return Product{}, err
	}
	l.locked[productID] = p
	return p, nil
}

type demand struct {
	productID int64
	qty       int
}

// aggregateDemand sums quantities per product and returns them in ascending
// product id order, the lock order shared by every placement.
func aggregateDemand(items []LineItem) []demand {
	byID := make(map[int64]int, len(items))
	for _, it := range items {
		byID[it.ProductID] += it.Quantity
	}
	out := make([]demand, 0, len(byID))
	for id, qty := range byID {
		out = append(out, demand{productID: id, qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}
