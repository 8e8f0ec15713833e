package ws

import (
	"log/slog"
	"sync"

	"walkie/internal/models"
)

// sendBuffer is the per-connection outbound queue depth. A connection that
// cannot drain this many events is considered too slow and loses events
// rather than stalling the dispatch path.
const sendBuffer = 100

// Hub is the registry of live connections. It is the delivery side of the
// relay: the engine decides who hears an event, the hub owns the channel
// that carries it to the socket.
type Hub struct {
	connections map[string]chan models.ServerEvent
	log         *slog.Logger

	mu sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connections: make(map[string]chan models.ServerEvent),
		log:         logger,
	}
}

// Attach registers the connection and returns its outbound event channel.
func (h *Hub) Attach(connID string) chan models.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ServerEvent, sendBuffer)
	h.connections[connID] = ch
	return ch
}

// Detach removes the connection and closes its channel.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.connections[connID]; ok {
		close(ch)
		delete(h.connections, connID)
	}
}

// Send queues the event for one connection. Unknown connections and full
// queues drop the event.
func (h *Hub) Send(connID string, ev models.ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.connections[connID]
	if !ok {
		return
	}

	// The read lock is held across the send attempt so Detach cannot close
	// the channel underneath it.
	select {
	case ch <- ev:
	default:
		h.log.Warn("dropping event for slow connection", "conn_id", connID, "event", ev.Event)
	}
}

// SendAll queues the event for every live connection.
func (h *Hub) SendAll(ev models.ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, ch := range h.connections {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropping event for slow connection", "conn_id", connID, "event", ev.Event)
		}
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
