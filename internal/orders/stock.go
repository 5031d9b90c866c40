package orders

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Inventory handles explicit admin stock adjustments. Placement decrements go
// through the Ledger inside PlaceOrder instead.
type Inventory struct {
	store Store
	log   log.FieldLogger
}

func NewInventory(store Store, logger log.FieldLogger) *Inventory {
	return &Inventory{store: store, log: logger}
}

func (i *Inventory) SetStock(ctx context.Context, productID int64, qty int) (Product, error) {
	var out Product
	err := i.store.InTx(ctx, func(tx Tx) error {
		p, err := NewLedger(tx).Restock(ctx, productID, qty)
		out = p
		return err
	})
	if err != nil {
		return Product{}, classify(err)
	}
	i.log.WithFields(log.Fields{
		"product_id": productID,
		"stock":      out.StockQuantity,
		"in_stock":   out.InStock,
	}).Info("stock adjusted")
	return out, nil
}
