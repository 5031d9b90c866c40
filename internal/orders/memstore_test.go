package orders

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is a transactional in-memory Store. Rows are locked with one mutex
// each, held until the transaction ends, which mirrors SELECT ... FOR UPDATE.
// Writes are staged per transaction and applied only on commit.
type memStore struct {
	mu       sync.Mutex
	products map[int64]Product
	orders   map[int64]Order
	rowLocks map[string]*sync.Mutex
	nextID   int64

	failInsert error
	failCommit error
}

var _ Store = (*memStore)(nil)

func newMemStore(products ...Product) *memStore {
	m := &memStore{
		products: make(map[int64]Product),
		orders:   make(map[int64]Order),
		rowLocks: make(map[string]*sync.Mutex),
	}
	for _, p := range products {
		p.InStock = p.StockQuantity > 0
		m.products[p.ID] = p
	}
	return m
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		store:    m,
		held:     make(map[string]*sync.Mutex),
		products: make(map[int64]Product),
		orders:   make(map[int64]Order),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if m.failCommit != nil {
		return m.failCommit
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range tx.products {
		m.products[id] = p
	}
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	return nil
}

func (m *memStore) rowLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[key] = l
	}
	return l
}

func (m *memStore) product(id int64) Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

func (m *memStore) order(id int64) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) put(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	if o.ID > m.nextID {
		m.nextID = o.ID
	}
}

type memTx struct {
	store    *memStore
	held     map[string]*sync.Mutex
	products map[int64]Product
	orders   map[int64]Order
}

func (t *memTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	l := t.store.rowLock(key)
	l.Lock()
	t.held[key] = l
}

func (t *memTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func (t *memTx) readProduct(id int64) (Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	p, ok := t.store.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	t.lock(fmt.Sprintf("product:%d", id))
	return t.readProduct(id)
}

func (t *memTx) DecrementStock(ctx context.Context, id int64, qty int) (Product, error) {
	p, err := t.LockProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.StockQuantity < qty {
		return Product{}, &ProductError{ProductID: id, Requested: qty, Available: p.StockQuantity, Err: ErrInsufficientStock}
	}
	p.StockQuantity -= qty
	p.InStock = p.StockQuantity > 0
	t.products[id] = p
	return p, nil
}

func (t *memTx) SetStock(ctx context.Context, id int64, qty int) (Product, error) {
	p, err := t.LockProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.StockQuantity = qty
	p.InStock = qty > 0
	t.products[id] = p
	return p, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	if t.store.failInsert != nil {
		return t.store.failInsert
	}
	t.store.mu.Lock()
	t.store.nextID++
	o.ID = t.store.nextID
	t.store.mu.Unlock()

	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	t.lock(fmt.Sprintf("order:%d", o.ID))
	stored := *o
	stored.Items = append([]LineItem(nil), o.Items...)
	t.orders[o.ID] = stored
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	t.lock(fmt.Sprintf("order:%d", id))
	if o, ok := t.orders[id]; ok {
		return o, nil
	}
	o, ok := t.store.order(id)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) UpdateOrder(ctx context.Context, id int64, p StatusPatch) (Order, error) {
	o, err := t.LockOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	applyPatch(&o, p)
	now := time.Now().UTC()
	if !now.After(o.UpdatedAt) {
		now = o.UpdatedAt.Add(time.Microsecond)
	}
	o.UpdatedAt = now
	t.orders[id] = o
	return o, nil
}

func applyPatch(o *Order, p StatusPatch) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.AdminNotes != nil {
		o.AdminNotes = *p.AdminNotes
	}
	if p.TrackingID != nil {
		o.TrackingID = *p.TrackingID
	}
	if p.CourierName != nil {
		o.CourierName = *p.CourierName
	}
	if p.EstimatedDeliveryDate != nil {
		o.EstimatedDeliveryDate = p.EstimatedDeliveryDate
	}
	if p.DeliveredAt != nil {
		o.DeliveredAt = p.DeliveredAt
	}
	if p.CancelledAt != nil {
		o.CancelledAt = p.CancelledAt
	}
	if p.IsCancelled != nil {
		o.IsCancelled = *p.IsCancelled
	}
}
