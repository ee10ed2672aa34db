package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"farmchain/core/events"
	"farmchain/core/types"
	"farmchain/observability"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

// Hub fans committed events out to websocket subscribers. Slow subscribers
// lose events rather than stall the engine.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
}

type subscriber struct {
	pool string
	ch   chan *types.Event
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if h == nil || rendered == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.pool != "" && !strings.EqualFold(sub.pool, rendered.Attr("pool")) {
			continue
		}
		select {
		case sub.ch <- rendered.Clone():
		default:
			observability.Events().RecordDrop("stream")
		}
	}
}

// Subscribe registers a listener for events of pool, or of every pool when
// pool is empty. The returned function unregisters it.
func (h *Hub) Subscribe(pool string) (<-chan *types.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	sub := &subscriber{pool: strings.TrimSpace(pool), ch: make(chan *types.Event, subscriberBuffer)}
	h.subs[id] = sub
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errStreamDisabled)
		return
	}
	pool := strings.TrimSpace(r.URL.Query().Get("pool"))
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, cancel := s.hub.Subscribe(pool)
	defer cancel()
	// Reads are ignored; CloseRead cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
