package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/analytics"
	"github.com/ariefcatur/storefront-orders/internal/notifications"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type SummaryReader interface {
	Summary(ctx context.Context) (analytics.Summary, error)
}

type NotificationStore interface {
	List(ctx context.Context, limit int) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, id int64) (notifications.Notification, error)
	Delete(ctx context.Context, id int64) error
}

type AdminHandler struct {
	Summary       SummaryReader
	Notifications NotificationStore
	Log           log.FieldLogger
	Timeout       time.Duration
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/notifications", h.listNotifications)
		r.Patch("/notifications/{id}/read", h.markRead)
		r.Delete("/notifications/{id}", h.deleteNotification)
	})
}

func (h *AdminHandler) summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	s, err := h.Summary.Summary(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *AdminHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.Log, validationFailure("limit must be a positive integer"))
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	ns, err := h.Notifications.List(ctx, limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *AdminHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	n, err := h.Notifications.MarkRead(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *AdminHandler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeoutOr(h.Timeout))
	defer cancel()

	if err := h.Notifications.Delete(ctx, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
