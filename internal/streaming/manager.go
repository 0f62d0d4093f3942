package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
)

// Event is one loop progress event, keyed by the request it belongs to.
// Seq is assigned by the manager and is monotonic per request.
type Event struct {
	RequestID string                 `json:"request_id"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Seq       uint64                 `json:"seq"`
}

// Event types emitted over the lifetime of one query.
const (
	EventQueryReceived   = "QUERY_RECEIVED"
	EventDecisionMade    = "DECISION_MADE"
	EventSearchStarted   = "SEARCH_STARTED"
	EventSearchCompleted = "SEARCH_COMPLETED"
	EventQueryRefined    = "QUERY_REFINED"
	EventAnswerStarted   = "ANSWER_STARTED"
	EventAnswerCompleted = "ANSWER_COMPLETED"
	EventQueryFailed     = "QUERY_FAILED"
)

// Manager provides in-memory pub/sub for query events. Each request gets a
// bounded ring buffer so late subscribers (SSE reconnects with Last-Event-ID)
// can replay what they missed.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	lastPublish map[string]time.Time
	capacity    int
	maxRequests int
}

var (
	defaultMgr      *Manager
	once            sync.Once
	defaultCapacity = 256
)

// Retained request histories are capped; the ring with the oldest publish
// is evicted when a new request would exceed the cap.
const defaultMaxRequests = 1024

// NewManager builds a manager with the given per-request ring capacity.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		lastPublish: make(map[string]time.Time),
		capacity:    capacity,
		maxRequests: defaultMaxRequests,
	}
}

// Get returns the global streaming manager, initializing it lazily.
func Get() *Manager {
	once.Do(func() {
		defaultMgr = NewManager(defaultCapacity)
	})
	return defaultMgr
}

// Configure sets the ring capacity for rings created after the call.
func Configure(capacity int) {
	if capacity <= 0 {
		return
	}
	defaultCapacity = capacity
	if defaultMgr != nil {
		defaultMgr.mu.Lock()
		defaultMgr.capacity = capacity
		defaultMgr.mu.Unlock()
	}
}

// Subscribe adds a subscriber channel for a request ID. The caller must
// drain the channel and call Unsubscribe when done.
func (m *Manager) Subscribe(requestID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[requestID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[requestID] = subs
	}
	subs[ch] = struct{}{}
	metrics.StreamSubscribers.Inc()
	return ch
}

// Unsubscribe removes the subscriber channel and closes it.
func (m *Manager) Unsubscribe(requestID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[requestID]; ok {
		if _, member := subs[ch]; !member {
			return
		}
		delete(subs, ch)
		close(ch)
		metrics.StreamSubscribers.Dec()
		if len(subs) == 0 {
			delete(m.subscribers, requestID)
		}
	}
}

// Publish assigns the event its sequence number, records it in the request
// ring, and fans it out to subscribers without blocking. Slow subscribers
// lose events rather than stalling the query loop.
func (m *Manager) Publish(requestID string, evt Event) {
	evt.RequestID = requestID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rg := m.history[requestID]
	if rg == nil {
		if len(m.history) >= m.maxRequests {
			m.evictOldestLocked()
		}
		rg = newRing(m.capacity)
		m.history[requestID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	m.lastPublish[requestID] = evt.Timestamp

	// Fan out under the lock so Unsubscribe cannot close a channel
	// mid-send. Sends never block.
	for ch := range m.subscribers[requestID] {
		select {
		case ch <- evt:
		default:
			metrics.StreamEventsDropped.Inc()
		}
	}
}

// ReplaySince returns retained events with Seq > since, oldest first.
// Sequence numbers start at 1, so since=0 replays the whole ring.
func (m *Manager) ReplaySince(requestID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[requestID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the retained history for a request. Active subscribers keep
// their channels; only replay is affected.
func (m *Manager) Forget(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, requestID)
	delete(m.lastPublish, requestID)
}

// evictOldestLocked removes the ring with the oldest last publish. Caller
// holds m.mu.
func (m *Manager) evictOldestLocked() {
	var victim string
	var oldest time.Time
	for id, ts := range m.lastPublish {
		if victim == "" || ts.Before(oldest) {
			victim = id
			oldest = ts
		}
	}
	if victim != "" {
		delete(m.history, victim)
		delete(m.lastPublish, victim)
	}
}

// Marshal returns the event as JSON for SSE data frames and logs.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// ring is a fixed-capacity ring buffer of events.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	// overwrite oldest
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		idx := (r.start + i) % len(r.buf)
		ev := r.buf[idx]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
