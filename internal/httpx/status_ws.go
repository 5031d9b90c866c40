package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// checkOrigin admits clients without an Origin header, same-origin pages and
// the configured origins.
func (h *OrdersHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// watchStatus streams the order's current status followed by every change
// until either side goes away.
func (h *OrdersHandler) watchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	lookupCtx, cancelLookup := h.context(r)
	_, _, err = h.Reader.GetOrderStatus(lookupCtx, id)
	cancelLookup()
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.WithError(err).WithField("order_id", id).Warn("websocket upgrade")
		return
	}
	entry := h.Log.WithField("order_id", id)

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		readUntilClosed(conn)
	}()
	go func() {
		defer wg.Done()
		pingUntilDone(ctx, conn)
	}()

	send := func(m redisx.StatusMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}
	// the current status is read only once subscribed, so no change is lost in between
	sendCurrent := func() error {
		lookupCtx, cancelLookup := context.WithTimeout(ctx, timeoutOr(h.Timeout))
		defer cancelLookup()
		status, at, err := h.Reader.GetOrderStatus(lookupCtx, id)
		if err != nil {
			return err
		}
		return send(redisx.NewStatusMessage(id, status, at))
	}
	if err := h.Watcher.Watch(ctx, id, sendCurrent, send); err != nil && ctx.Err() == nil {
		entry.WithError(err).Warn("status stream ended")
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	wg.Wait()
}

// readUntilClosed discards client frames; it returns once the peer closes or
// stops answering pings.
func readUntilClosed(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func pingUntilDone(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
