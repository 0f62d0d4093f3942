package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/streaming"
)

// StreamingHandler serves live progress for in-flight queries.
type StreamingHandler struct {
	mgr    *streaming.Manager
	logger *zap.Logger
}

func NewStreamingHandler(mgr *streaming.Manager, logger *zap.Logger) *StreamingHandler {
	return &StreamingHandler{mgr: mgr, logger: logger}
}

// RegisterRoutes registers the stream routes on the provided mux.
func (h *StreamingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stream/sse", h.handleSSE)
	mux.HandleFunc("/api/stream/events", h.handleEvents)
	h.RegisterWebSocket(mux)
}

// isTerminal reports whether no further events can follow for the request.
func isTerminal(eventType string) bool {
	return eventType == streaming.EventAnswerCompleted || eventType == streaming.EventQueryFailed
}

// parseTypeFilter reads the optional comma-separated types parameter.
func parseTypeFilter(r *http.Request) map[string]struct{} {
	filter := map[string]struct{}{}
	if s := r.URL.Query().Get("types"); s != "" {
		for _, t := range strings.Split(s, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				filter[t] = struct{}{}
			}
		}
	}
	return filter
}

// lastEventID reads the SSE Last-Event-ID header, falling back to the
// last_event_id query parameter. Zero replays the whole ring.
func lastEventID(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// handleSSE streams query progress via Server-Sent Events. The backlog is
// replayed first, so connecting after the POST still yields the full trace,
// and the stream closes once the request reaches a terminal event.
// GET /api/stream/sse?request_id=<id>
func (h *StreamingHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "request_id required")
		return
	}
	typeFilter := parseTypeFilter(r)
	lastID := lastEventID(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := h.mgr.Subscribe(requestID, 256)
	defer h.mgr.Unsubscribe(requestID, ch)

	fmt.Fprintf(w, ": connected to request %s\n\n", requestID)
	flusher.Flush()

	// Replay the backlog; track the highest sequence written so live
	// delivery skips anything the replay already covered. Terminal events
	// close the stream even when the type filter hides them.
	written := lastID
	done := false
	for _, ev := range h.mgr.ReplaySince(requestID, lastID) {
		written = ev.Seq
		if passesFilter(typeFilter, ev.Type) {
			writeSSEEvent(w, ev)
		}
		if isTerminal(ev.Type) {
			done = true
			break
		}
	}
	flusher.Flush()
	if done {
		return
	}

	hb := time.NewTicker(15 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("request_id", requestID))
			return
		case evt := <-ch:
			if evt.Seq <= written {
				continue
			}
			written = evt.Seq
			if passesFilter(typeFilter, evt.Type) {
				writeSSEEvent(w, evt)
				flusher.Flush()
			}
			if isTerminal(evt.Type) {
				return
			}
		case <-hb.C:
			// Heartbeat to keep connections alive through proxies.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func passesFilter(filter map[string]struct{}, eventType string) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[eventType]
	return ok
}

func writeSSEEvent(w http.ResponseWriter, ev streaming.Event) {
	if ev.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", ev.Seq)
	}
	if ev.Type != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	fmt.Fprintf(w, "data: %s\n\n", string(ev.Marshal()))
}

// handleEvents returns the buffered events for a request as plain JSON, a
// polling fallback for clients that cannot hold a stream open.
// GET /api/stream/events?request_id=<id>&since=<seq>
func (h *StreamingHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "request_id required")
		return
	}

	var since uint64
	if q := r.URL.Query().Get("since"); q != "" {
		n, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a sequence number")
			return
		}
		since = n
	}

	events := h.mgr.ReplaySince(requestID, since)
	nextSince := since
	completed := false
	for _, ev := range events {
		nextSince = ev.Seq
		if isTerminal(ev.Type) {
			completed = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"events":     events,
		"next_since": nextSince,
		"completed":  completed,
	})
}
