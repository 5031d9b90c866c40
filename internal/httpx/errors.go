package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ariefcatur/storefront-orders/internal/notifications"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	ProductID int64  `json:"product_id,omitempty"`
}

type category struct {
	err    error
	status int
	name   string
}

// Checked in order; the first match wins.
var categories = []category{
	{orders.ErrValidation, http.StatusBadRequest, "validation_error"},
	{orders.ErrNoFieldsProvided, http.StatusBadRequest, "no_fields_provided"},
	{orders.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{notifications.ErrNotFound, http.StatusNotFound, "notification_not_found"},
	{orders.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{orders.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{orders.ErrTransactionAborted, http.StatusInternalServerError, "transaction_aborted"},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger log.FieldLogger, err error) {
	body := errorBody{Error: "internal_error", Detail: "internal error"}
	code := http.StatusInternalServerError
	for _, c := range categories {
		if errors.Is(err, c.err) {
			code, body.Error, body.Detail = c.status, c.name, err.Error()
			break
		}
	}

	var perr *orders.ProductError
	if errors.As(err, &perr) {
		body.ProductID = perr.ProductID
	}
	if code >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		if body.Error == "transaction_aborted" {
			body.Detail = "transaction aborted; no changes were made"
		}
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", orders.ErrValidation, err)
	}
	return nil
}

func validationFailure(detail string) error {
	return fmt.Errorf("%w: %s", orders.ErrValidation, detail)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", orders.ErrValidation, name, raw)
	}
	return id, nil
}
