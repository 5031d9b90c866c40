package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

type ProductReader interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	GetProduct(ctx context.Context, id int64) (orders.Product, error)
}

type StockAdjuster interface {
	SetStock(ctx context.Context, productID int64, qty int) (orders.Product, error)
}

type ProductsHandler struct {
	Reader  ProductReader
	Stock   StockAdjuster
	Log     log.FieldLogger
	Timeout time.Duration
}

type SetStockReq struct {
	StockQuantity *int `json:"stock_quantity" validate:"required,gte=0"`
}

var validate = validator.New()

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/admin/products/{id}/stock", h.setStock)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	ps, err := h.Reader.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	p, err := h.Reader.GetProduct(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) setStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	var req SetStockReq
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.Log, validationFailure("stock_quantity must be a non-negative integer"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	p, err := h.Stock.SetStock(ctx, id, *req.StockQuantity)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
