package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev-friendly, lock origins down via the proxy in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWebSocket registers the /api/stream/ws endpoint.
func (h *StreamingHandler) RegisterWebSocket(mux *http.ServeMux) {
	mux.HandleFunc("/api/stream/ws", h.handleWS)
}

// handleWS streams query progress as JSON frames. Like the SSE endpoint it
// replays the backlog first and closes after a terminal event.
// GET /api/stream/ws?request_id=<id>
func (h *StreamingHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "request_id required")
		return
	}
	typeFilter := parseTypeFilter(r)
	lastID := lastEventID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.mgr.Subscribe(requestID, 256)
	defer h.mgr.Unsubscribe(requestID, ch)

	written := lastID
	for _, ev := range h.mgr.ReplaySince(requestID, lastID) {
		written = ev.Seq
		if passesFilter(typeFilter, ev.Type) {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		if isTerminal(ev.Type) {
			h.closeConn(conn, requestID)
			return
		}
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	// Reader pump, client frames are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if ev.Seq <= written {
				continue
			}
			written = ev.Seq
			if passesFilter(typeFilter, ev.Type) {
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
			if isTerminal(ev.Type) {
				h.closeConn(conn, requestID)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *StreamingHandler) closeConn(conn *websocket.Conn, requestID string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "query finished")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		h.logger.Debug("WebSocket close failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}
