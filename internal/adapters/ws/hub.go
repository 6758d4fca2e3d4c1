package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/google/uuid"
)

// Hub is the subscriber registry and notification dispatcher in one place: it
// owns the userID -> connection map, and it is the only component that
// mutates it. Fan-out works on a copy-on-read snapshot so no lock is held
// while pushing to connection buffers.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[uuid.UUID]*Client
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]map[uuid.UUID]*Client),
		logger: logger,
	}
}

// Register adds a live connection for a user. Registering the same
// connection id twice is a no-op.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byConn, ok := h.conns[client.userID]
	if !ok {
		byConn = make(map[uuid.UUID]*Client)
		h.conns[client.userID] = byConn
	}
	if _, exists := byConn[client.connID]; exists {
		return
	}
	byConn[client.connID] = client
}

// Unregister removes one connection, never its siblings. The user's registry
// entry disappears with its last connection.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byConn, ok := h.conns[client.userID]
	if !ok {
		return
	}
	delete(byConn, client.connID)
	if len(byConn) == 0 {
		delete(h.conns, client.userID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connection ids.
func (h *Hub) ConnectionsFor(userID string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	byConn := h.conns[userID]
	out := make([]uuid.UUID, 0, len(byConn))
	for id := range byConn {
		out = append(out, id)
	}
	return out
}

// Dispatch pushes an outcome to every live connection of the user. With no
// live connection the event is dropped: the outcome stays discoverable via
// the read path, so there is no buffering or replay here.
func (h *Hub) Dispatch(userID string, outcome domain.Outcome) {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return
	}

	h.mu.RLock()
	byConn := h.conns[userID]
	targets := make([]*Client, 0, len(byConn))
	for _, client := range byConn {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(raw) {
			h.logger.Warn("outcome push dropped, slow connection",
				"module", "ws.hub",
				"layer", "adapter",
				"operation", "dispatch",
				"outcome", "failure",
				"user_id", userID,
				"connection_id", client.connID.String(),
			)
		}
	}
}
