package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPlacement(t *testing.T, products ...Product) (*Placement, *memStore, *recordingEvents, *logtest.Hook) {
	t.Helper()
	store := newMemStore(products...)
	events := &recordingEvents{}
	logger, hook := logtest.NewNullLogger()
	return NewPlacement(store, events, logger), store, events, hook
}

func validInput(items ...LineItem) PlaceOrderInput {
	return PlaceOrderInput{
		UserID: 42,
		Items:  items,
		Address: ShippingAddress{
			Name:    "Asha",
			Phone:   "9000000000",
			Street:  "12 Lake Rd",
			City:    "Pune",
			State:   "MH",
			Pincode: "411001",
		},
		TotalCents: 2500,
	}
}

func item(productID int64, qty int) LineItem {
	return LineItem{ProductID: productID, Quantity: qty}
}

func assertInStockConsistent(t *testing.T, store *memStore) {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, p := range store.products {
		assert.Equal(t, p.StockQuantity > 0, p.InStock, "in_stock flag of product %d", id)
		assert.GreaterOrEqual(t, p.StockQuantity, 0, "stock of product %d", id)
	}
}

func TestPlaceOrder_LastUnitsThenInsufficient(t *testing.T) {
	placement, store, _, _ := setupPlacement(t, Product{ID: 1, StockQuantity: 2})
	ctx := context.Background()

	order, err := placement.PlaceOrder(ctx, validInput(item(1, 2)))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 0, store.product(1).StockQuantity)
	assert.False(t, store.product(1).InStock)

	_, err = placement.PlaceOrder(ctx, validInput(item(1, 1)))
	require.ErrorIs(t, err, ErrInsufficientStock)

	var perr *ProductError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(1), perr.ProductID)
	assert.Equal(t, 1, perr.Requested)
	assert.Equal(t, 0, perr.Available)

	assert.Equal(t, 1, store.orderCount())
	assertInStockConsistent(t, store)
}

func TestPlaceOrder_AtomicWhenAnyItemShort(t *testing.T) {
	placement, store, events, _ := setupPlacement(t,
		Product{ID: 1, StockQuantity: 10},
		Product{ID: 2, StockQuantity: 1},
		Product{ID: 3, StockQuantity: 5},
	)

	_, err := placement.PlaceOrder(context.Background(), validInput(item(1, 3), item(2, 2), item(3, 1)))

	require.ErrorIs(t, err, ErrInsufficientStock)
	var perr *ProductError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(2), perr.ProductID)

	assert.Equal(t, 0, store.orderCount())
	assert.Equal(t, 10, store.product(1).StockQuantity)
	assert.Equal(t, 1, store.product(2).StockQuantity)
	assert.Equal(t, 5, store.product(3).StockQuantity)
	assert.Empty(t, events.placed)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	placement, store, _, _ := setupPlacement(t, Product{ID: 1, StockQuantity: 10})

	_, err := placement.PlaceOrder(context.Background(), validInput(item(1, 1), item(99, 1)))

	require.ErrorIs(t, err, ErrProductNotFound)
	var perr *ProductError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(99), perr.ProductID)
	assert.Equal(t, 0, store.orderCount())
	assert.Equal(t, 10, store.product(1).StockQuantity)
}

func TestPlaceOrder_Conservation(t *testing.T) {
	placement, store, events, _ := setupPlacement(t,
		Product{ID: 1, StockQuantity: 10},
		Product{ID: 2, StockQuantity: 4},
		Product{ID: 3, StockQuantity: 7},
	)

	// product 1 appears twice and is reserved as 5 units in total
	order, err := placement.PlaceOrder(context.Background(), validInput(item(2, 4), item(1, 2), item(1, 3)))
	require.NoError(t, err)

	assert.Equal(t, 5, store.product(1).StockQuantity)
	assert.Equal(t, 0, store.product(2).StockQuantity)
	assert.Equal(t, 7, store.product(3).StockQuantity, "untouched product must keep its stock")
	assertInStockConsistent(t, store)

	stored, ok := store.order(order.ID)
	require.True(t, ok)
	assert.Equal(t, []LineItem{item(2, 4), item(1, 2), item(1, 3)}, stored.Items, "items are kept as submitted")
	assert.Equal(t, "Pune", stored.Shipping.City)

	require.Len(t, events.placed, 1)
	assert.Equal(t, order.ID, events.placed[0].ID)
}

func TestPlaceOrder_Defaults(t *testing.T) {
	placement, _, _, _ := setupPlacement(t, Product{ID: 1, StockQuantity: 1})

	in := validInput(item(1, 1))
	in.DiscountCode = "  "
	order, err := placement.PlaceOrder(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, "online", order.PaymentMethod)
	assert.Equal(t, "Unpaid", order.PaymentStatus)
	assert.Nil(t, order.DiscountCode)
	assert.Equal(t, int64(2500), order.TotalCents)
}

func TestPlaceOrder_ValidationRejectedBeforeTransaction(t *testing.T) {
	cases := map[string]func(in *PlaceOrderInput){
		"no items":          func(in *PlaceOrderInput) { in.Items = nil },
		"zero quantity":     func(in *PlaceOrderInput) { in.Items = []LineItem{item(1, 0)} },
		"bad product id":    func(in *PlaceOrderInput) { in.Items = []LineItem{item(0, 1)} },
		"missing user":      func(in *PlaceOrderInput) { in.UserID = 0 },
		"missing total":     func(in *PlaceOrderInput) { in.TotalCents = 0 },
		"missing street":    func(in *PlaceOrderInput) { in.Address.Street = "" },
		"negative charge":   func(in *PlaceOrderInput) { in.DeliveryChargeCents = -1 },
		"negative discount": func(in *PlaceOrderInput) { in.DiscountCents = -5 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			logger, _ := logtest.NewNullLogger()
			placement := NewPlacement(forbiddenStore{t: t}, nil, logger)

			in := validInput(item(1, 1))
			mutate(&in)
			_, err := placement.PlaceOrder(context.Background(), in)

			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPlaceOrder_ValidationDetailNamesField(t *testing.T) {
	placement, _, _, _ := setupPlacement(t)

	in := validInput(item(1, 0))
	_, err := placement.PlaceOrder(context.Background(), in)

	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Items[0].Quantity must be greater than 0")
}

func TestPlaceOrder_InsertFailureRollsBack(t *testing.T) {
	placement, store, _, _ := setupPlacement(t, Product{ID: 1, StockQuantity: 3})
	store.failInsert = errors.New("connection reset")

	_, err := placement.PlaceOrder(context.Background(), validInput(item(1, 1)))

	require.ErrorIs(t, err, ErrTransactionAborted)
	assert.Equal(t, 3, store.product(1).StockQuantity)
	assert.Equal(t, 0, store.orderCount())
}

func TestPlaceOrder_CommitFailureRecordsNothing(t *testing.T) {
	placement, store, events, _ := setupPlacement(t, Product{ID: 1, StockQuantity: 3})
	store.failCommit = errors.New("serialization failure")

	_, err := placement.PlaceOrder(context.Background(), validInput(item(1, 2)))

	require.ErrorIs(t, err, ErrTransactionAborted)
	assert.Contains(t, err.Error(), "serialization failure")
	assert.Equal(t, 3, store.product(1).StockQuantity)
	assert.Equal(t, 0, store.orderCount())
	assert.Empty(t, events.placed)
}

func TestPlaceOrder_EventFailureDoesNotFailPlacement(t *testing.T) {
	store := newMemStore(Product{ID: 1, StockQuantity: 3})
	logger, hook := logtest.NewNullLogger()
	placement := NewPlacement(store, failingEvents{}, logger)

	order, err := placement.PlaceOrder(context.Background(), validInput(item(1, 1)))

	require.NoError(t, err)
	_, ok := store.order(order.ID)
	assert.True(t, ok)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
}

func TestPlaceOrder_NoOversellUnderConcurrency(t *testing.T) {
	for round := 0; round < 20; round++ {
		placement, store, _, _ := setupPlacement(t, Product{ID: 7, StockQuantity: 1})

		var (
			wg   sync.WaitGroup
			errs = make([]error, 2)
		)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = placement.PlaceOrder(context.Background(), validInput(item(7, 1)))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 0, store.product(7).StockQuantity)
		assert.Equal(t, 1, store.orderCount())
		assertInStockConsistent(t, store)
	}
}

func TestPlaceOrder_OverlappingProductsDoNotDeadlock(t *testing.T) {
	const placements = 60
	placement, store, _, _ := setupPlacement(t,
		Product{ID: 1, StockQuantity: placements},
		Product{ID: 2, StockQuantity: placements},
		Product{ID: 3, StockQuantity: placements},
	)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < placements; i++ {
		items := []LineItem{item(1, 1), item(2, 1), item(3, 1)}
		if i%2 == 1 {
			items = []LineItem{item(3, 1), item(2, 1), item(1, 1)}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := placement.PlaceOrder(context.Background(), validInput(items...))
			assert.NoError(t, err)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("placements did not finish; lock ordering is broken")
	}

	for id := int64(1); id <= 3; id++ {
		assert.Equal(t, 0, store.product(id).StockQuantity)
	}
	assert.Equal(t, placements, store.orderCount())
	assertInStockConsistent(t, store)
}

func TestAggregateDemandSortsAndSums(t *testing.T) {
	got := aggregateDemand([]LineItem{item(9, 1), item(3, 2), item(9, 4), item(5, 1)})

	assert.Equal(t, []demand{{3, 2}, {5, 1}, {9, 5}}, got)
}

type recordingEvents struct {
	mu     sync.Mutex
	placed []Order
}

func (r *recordingEvents) OrderPlaced(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, o)
	return nil
}

type failingEvents struct{}

func (failingEvents) OrderPlaced(context.Context, Order) error { return errors.New("broker down") }

// forbiddenStore fails the test if a transaction is opened.
type forbiddenStore struct{ t *testing.T }

func (s forbiddenStore) InTx(context.Context, func(Tx) error) error {
	s.t.Error("transaction opened for invalid input")
	return nil
}
