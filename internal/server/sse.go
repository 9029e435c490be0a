package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/events"
)

const (
	// sseReplaySize is the number of recent events kept for Last-Event-ID
	// reconnection.
	sseReplaySize = 512

	sseKeepaliveInterval = 15 * time.Second

	sseClientBuffer = 64
)

type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseHub fans events out to connected stream clients and keeps a bounded
// replay log.
type sseHub struct {
	mu      sync.Mutex
	clients map[*sseClient]struct{}
	nextID  uint64
	replay  []sseEvent // oldest first, at most sseReplaySize entries
}

type sseClient struct {
	patterns []string
	ch       chan sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast assigns the next id to an event and delivers it to every
// matching client. Slow clients lose events rather than block the caller.
func (h *sseHub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	evt := sseEvent{ID: h.nextID, Topic: topic, Data: payload}
	if len(h.replay) == sseReplaySize {
		h.replay = append(h.replay[:0], h.replay[1:]...)
	}
	h.replay = append(h.replay, evt)

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

// subscribe registers a client and returns the buffered events after
// lastID that it should see first. Registration and the replay snapshot
// happen under one lock, so no event is both replayed and delivered.
func (h *sseHub) subscribe(patterns []string, lastID uint64) (*sseClient, []sseEvent) {
	c := &sseClient{patterns: patterns, ch: make(chan sseEvent, sseClientBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if lastID == 0 {
		return c, nil
	}
	var missed []sseEvent
	for _, evt := range h.replay {
		if evt.ID > lastID && c.matches(evt.Topic) {
			missed = append(missed, evt)
		}
	}
	return c, missed
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *sseHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *sseClient) matches(topic string) bool {
	return events.MatchAny(c.patterns, topic)
}

// handleEventStream handles GET /v1/events/stream?topics=a,b.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var patterns []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			patterns = append(patterns, t)
		}
	}
	var lastID uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastID, _ = strconv.ParseUint(v, 10, 64)
	}

	client, missed := s.sseHub.subscribe(patterns, lastID)
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, evt := range missed {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
