package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/streaming"
)

func newStreamServer(t *testing.T) (*httptest.Server, *streaming.Manager) {
	t.Helper()
	mgr := streaming.NewManager(32)
	srv := NewServer(nil, mgr, config.DefaultEngineConfig(), nil, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mgr
}

func publishTrace(mgr *streaming.Manager, requestID string) {
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventQueryReceived, Message: "câu hỏi"})
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventDecisionMade, Message: "SEARCH_INTERNAL"})
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventSearchStarted, Message: "câu hỏi"})
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventSearchCompleted, Data: map[string]interface{}{"added": 1}})
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventDecisionMade, Message: "ANSWER"})
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventAnswerStarted})
	mgr.Publish(requestID, streaming.Event{Type: streaming.EventAnswerCompleted, Data: map[string]interface{}{"iterations": 1}})
}

func TestSSEReplaysFullTraceAndCloses(t *testing.T) {
	ts, mgr := newStreamServer(t)
	publishTrace(mgr, "req-sse")

	resp, err := http.Get(ts.URL + "/api/stream/sse?request_id=req-sse")
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %s", ct)
	}

	// The replayed trace ends with ANSWER_COMPLETED, so the handler closes
	// the stream and the whole body is readable.
	body := readBody(t, resp)
	if !strings.Contains(body, ": connected to request req-sse") {
		t.Fatalf("missing connect comment in %q", body)
	}
	if !strings.Contains(body, "id: 1\nevent: QUERY_RECEIVED\n") {
		t.Fatalf("missing first event in %q", body)
	}
	if !strings.Contains(body, "event: ANSWER_COMPLETED\n") {
		t.Fatalf("missing terminal event in %q", body)
	}
	if strings.Count(body, "event: ") != 7 {
		t.Fatalf("event count = %d, want 7\n%s", strings.Count(body, "event: "), body)
	}
}

func TestSSEResumesFromLastEventID(t *testing.T) {
	ts, mgr := newStreamServer(t)
	publishTrace(mgr, "req-resume")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stream/sse?request_id=req-resume", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Last-Event-ID", "5")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	body := readBody(t, resp)
	if strings.Contains(body, "id: 5\n") || strings.Contains(body, "event: QUERY_RECEIVED\n") {
		t.Fatalf("replayed already-delivered events:\n%s", body)
	}
	if !strings.Contains(body, "id: 6\nevent: ANSWER_STARTED\n") {
		t.Fatalf("missing resumed event in %q", body)
	}
	if strings.Count(body, "event: ") != 2 {
		t.Fatalf("event count = %d, want 2\n%s", strings.Count(body, "event: "), body)
	}
}

func TestSSETypeFilter(t *testing.T) {
	ts, mgr := newStreamServer(t)
	publishTrace(mgr, "req-filter")

	resp, err := http.Get(ts.URL + "/api/stream/sse?request_id=req-filter&types=DECISION_MADE,ANSWER_COMPLETED")
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	body := readBody(t, resp)
	if strings.Contains(body, "event: SEARCH_STARTED\n") {
		t.Fatalf("filter leaked events:\n%s", body)
	}
	if strings.Count(body, "event: DECISION_MADE\n") != 2 {
		t.Fatalf("decision events missing:\n%s", body)
	}
	if !strings.Contains(body, "event: ANSWER_COMPLETED\n") {
		t.Fatalf("terminal event missing:\n%s", body)
	}
}

func TestSSELiveDelivery(t *testing.T) {
	ts, mgr := newStreamServer(t)

	resp, err := http.Get(ts.URL + "/api/stream/sse?request_id=req-live")
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	defer resp.Body.Close()

	// Publish after the subscription is up; the connect comment arrives
	// first, so waiting for it avoids racing the subscribe.
	done := make(chan string, 1)
	go func() {
		done <- readBody(t, resp)
	}()
	time.Sleep(50 * time.Millisecond)
	publishTrace(mgr, "req-live")

	select {
	case body := <-done:
		if !strings.Contains(body, "event: QUERY_RECEIVED\n") {
			t.Fatalf("missing live event in %q", body)
		}
		if !strings.Contains(body, "event: ANSWER_COMPLETED\n") {
			t.Fatalf("missing live terminal event in %q", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after the terminal event")
	}
}

func TestSSERequiresRequestID(t *testing.T) {
	ts, _ := newStreamServer(t)

	resp, err := http.Get(ts.URL + "/api/stream/sse")
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEventsPollEndpoint(t *testing.T) {
	ts, mgr := newStreamServer(t)
	publishTrace(mgr, "req-poll")

	resp, err := http.Get(ts.URL + "/api/stream/events?request_id=req-poll")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	var trace struct {
		RequestID string            `json:"request_id"`
		Events    []streaming.Event `json:"events"`
		NextSince uint64            `json:"next_since"`
		Completed bool              `json:"completed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&trace); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	if len(trace.Events) != 7 {
		t.Fatalf("events = %d, want 7", len(trace.Events))
	}
	if trace.NextSince != 7 || !trace.Completed {
		t.Fatalf("next_since = %d completed = %v", trace.NextSince, trace.Completed)
	}

	resp, err = http.Get(ts.URL + "/api/stream/events?request_id=req-poll&since=5")
	if err != nil {
		t.Fatalf("GET events since: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&trace); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if len(trace.Events) != 2 {
		t.Fatalf("events after 5 = %d, want 2", len(trace.Events))
	}
	if trace.Events[0].Seq != 6 {
		t.Fatalf("first seq = %d, want 6", trace.Events[0].Seq)
	}

	resp, err = http.Get(ts.URL + "/api/stream/events?request_id=req-poll&since=nope")
	if err != nil {
		t.Fatalf("GET events bad since: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSocketStreamReplaysAndCloses(t *testing.T) {
	ts, mgr := newStreamServer(t)
	publishTrace(mgr, "req-ws")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream/ws?request_id=req-ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var got []streaming.Event
	for {
		var ev streaming.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		got = append(got, ev)
	}

	if len(got) != 7 {
		t.Fatalf("events = %d, want 7", len(got))
	}
	if got[0].Type != streaming.EventQueryReceived || got[0].Seq != 1 {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[6].Type != streaming.EventAnswerCompleted {
		t.Fatalf("last event = %+v", got[6])
	}
}

func TestWebSocketRequiresRequestID(t *testing.T) {
	ts, _ := newStreamServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial should fail without request_id")
	}
	if resp != nil {
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		resp.Body.Close()
	}
}
