package httpx

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/analytics"
	"github.com/ariefcatur/storefront-orders/internal/notifications"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
)

type fakePlacer struct {
	calls int
	order orders.Order
	err   error
	got   orders.PlaceOrderInput
}

func (f *fakePlacer) PlaceOrder(_ context.Context, in orders.PlaceOrderInput) (orders.Order, error) {
	f.calls++
	f.got = in
	return f.order, f.err
}

type fakeUpdater struct {
	patch orders.StatusPatch
	order orders.Order
	err   error
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, id int64, p orders.StatusPatch) (orders.Order, error) {
	f.patch = p
	if f.err != nil {
		return orders.Order{}, f.err
	}
	o := f.order
	o.ID = id
	return o, nil
}

type fakeReader struct {
	orders map[int64]orders.Order
}

func (f *fakeReader) GetOrder(_ context.Context, id int64) (orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeReader) GetOrderStatus(ctx context.Context, id int64) (orders.Status, time.Time, error) {
	o, err := f.GetOrder(ctx, id)
	return o.Status, o.UpdatedAt, err
}

func (f *fakeReader) ListOrders(context.Context) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeReader) ListUserOrders(_ context.Context, userID int64) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeIdem map[string]int64

func (f fakeIdem) Lookup(_ context.Context, key string) (int64, bool, error) {
	id, ok := f[key]
	return id, ok, nil
}

func (f fakeIdem) Remember(_ context.Context, key string, id int64) error {
	f[key] = id
	return nil
}

type fakeCache map[int64]orders.Status

func (f fakeCache) Get(_ context.Context, id int64) (orders.Status, bool, error) {
	s, ok := f[id]
	return s, ok, nil
}

func (f fakeCache) Set(_ context.Context, id int64, s orders.Status, _ time.Time) error {
	f[id] = s
	return nil
}

// chanWatcher relays whatever the test pushes on updates.
type chanWatcher struct {
	updates chan redisx.StatusMessage
	once    sync.Once
	ready   chan struct{}
}

func newChanWatcher() *chanWatcher {
	return &chanWatcher{updates: make(chan redisx.StatusMessage), ready: make(chan struct{})}
}

func (c *chanWatcher) Watch(ctx context.Context, _ int64, ready func() error, fn func(redisx.StatusMessage) error) error {
	if err := ready(); err != nil {
		return err
	}
	c.once.Do(func() { close(c.ready) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-c.updates:
			if err := fn(m); err != nil {
				return err
			}
		}
	}
}

type fakeProducts struct {
	products map[int64]orders.Product
}

func (f *fakeProducts) ListProducts(context.Context) ([]orders.Product, error) {
	out := []orders.Product{}
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProducts) GetProduct(_ context.Context, id int64) (orders.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProducts) SetStock(ctx context.Context, id int64, qty int) (orders.Product, error) {
	p, err := f.GetProduct(ctx, id)
	if err != nil {
		return orders.Product{}, err
	}
	p.StockQuantity, p.InStock = qty, qty > 0
	f.products[id] = p
	return p, nil
}

type fakeSummary struct {
	s   analytics.Summary
	err error
}

func (f fakeSummary) Summary(context.Context) (analytics.Summary, error) { return f.s, f.err }

type fakeNotifications struct {
	items     map[int64]notifications.Notification
	lastLimit int
}

func (f *fakeNotifications) List(_ context.Context, limit int) ([]notifications.Notification, error) {
	f.lastLimit = limit
	out := []notifications.Notification{}
	for _, n := range f.items {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id int64) (notifications.Notification, error) {
	n, ok := f.items[id]
	if !ok {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	n.Read = true
	f.items[id] = n
	return n, nil
}

func (f *fakeNotifications) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return notifications.ErrNotFound
	}
	delete(f.items, id)
	return nil
}
