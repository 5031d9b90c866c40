package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in orders.PlaceOrderInput) (orders.Order, error)
}

type OrderStatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID int64, patch orders.StatusPatch) (orders.Order, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	GetOrderStatus(ctx context.Context, id int64) (orders.Status, time.Time, error)
	ListOrders(ctx context.Context) ([]orders.Order, error)
	ListUserOrders(ctx context.Context, userID int64) ([]orders.Order, error)
}

type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (int64, bool, error)
	Remember(ctx context.Context, key string, orderID int64) error
}

// StatusCache keeps the latest status per order. Set must ignore a version
// older than the one already cached.
type StatusCache interface {
	Get(ctx context.Context, orderID int64) (orders.Status, bool, error)
	Set(ctx context.Context, orderID int64, status orders.Status, version time.Time) error
}

// StatusWatcher calls ready once subscribed and then fn for every change.
type StatusWatcher interface {
	Watch(ctx context.Context, orderID int64, ready func() error, fn func(redisx.StatusMessage) error) error
}

// OrdersHandler serves placement, reads and status updates. Idem, Cache and
// Watcher are optional.
type OrdersHandler struct {
	Placer  OrderPlacer
	Updater OrderStatusUpdater
	Reader  OrderReader
	Idem    IdempotencyStore
	Cache   StatusCache
	Watcher StatusWatcher
	Log     log.FieldLogger
	Timeout time.Duration

	// AllowedOrigins may open the status stream besides same-origin pages.
	AllowedOrigins []string
}

type PlaceOrderResp struct {
	Order      orders.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

type StatusResp struct {
	OrderID int64         `json:"order_id"`
	Status  orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/users/{userID}/orders", h.listUserOrders)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Get("/orders/{id}/status", h.getStatus)
	if h.Watcher != nil {
		r.Get("/orders/{id}/status/ws", h.watchStatus)
	}
}

func (h *OrdersHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceOrderInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, h.Log, err)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	idemKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if idemKey != "" && h.Idem != nil {
		if prev, ok := h.replay(ctx, idemKey); ok {
			writeJSON(w, http.StatusOK, PlaceOrderResp{Order: prev, Idempotent: true})
			return
		}
	}

	order, err := h.Placer.PlaceOrder(ctx, in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	entry := h.Log.WithField("order_id", order.ID)
	if idemKey != "" && h.Idem != nil {
		if err := h.Idem.Remember(ctx, idemKey, order.ID); err != nil {
			entry.WithError(err).Warn("remember idempotency key")
		}
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, order.ID, order.Status, order.UpdatedAt); err != nil {
			entry.WithError(err).Warn("cache order status")
		}
	}
	writeJSON(w, http.StatusCreated, PlaceOrderResp{Order: order})
}

// replay returns the order an idempotency key already produced. Any lookup
// problem falls through to a normal placement.
func (h *OrdersHandler) replay(ctx context.Context, key string) (orders.Order, bool) {
	id, ok, err := h.Idem.Lookup(ctx, key)
	if err != nil {
		h.Log.WithError(err).Warn("idempotency lookup")
		return orders.Order{}, false
	}
	if !ok {
		return orders.Order{}, false
	}
	o, err := h.Reader.GetOrder(ctx, id)
	if err != nil {
		h.Log.WithError(err).WithField("order_id", id).Warn("idempotent order unreadable")
		return orders.Order{}, false
	}
	return o, true
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	list, err := h.Reader.ListOrders(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	list, err := h.Reader.ListUserOrders(ctx, userID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	o, err := h.Reader.GetOrder(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	// unknown fields are rejected, not ignored
	var patch orders.StatusPatch
	if err := decodeJSON(w, r, &patch, true); err != nil {
		writeError(w, h.Log, err)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	o, err := h.Updater.UpdateStatus(ctx, id, patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		s, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			h.Log.WithError(err).WithField("order_id", id).Warn("read status cache")
		}
		if ok {
			writeJSON(w, http.StatusOK, StatusResp{OrderID: id, Status: s})
			return
		}
	}

	// 2) fallback to the database
	s, at, err := h.Reader.GetOrderStatus(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, id, s, at); err != nil {
			h.Log.WithError(err).WithField("order_id", id).Warn("cache order status")
		}
	}
	writeJSON(w, http.StatusOK, StatusResp{OrderID: id, Status: s})
}
