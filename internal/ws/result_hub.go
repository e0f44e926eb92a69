package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"veritas/internal/pipeline"
)

const writeWait = 10 * time.Second

// client serializes writes to one connection
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// OwnerSubscriber delivers one owner's results to a handler until unsubscribed
type OwnerSubscriber interface {
	SubscribeOwner(ownerID string, handler pipeline.ResultHandler) func()
}

// ResultHub manages WebSocket connections for live analysis results.
// It holds one bus subscription per owner with at least one connection.
type ResultHub struct {
	// clients maps owner_id -> set of connections
	clients map[string]map[*client]bool
	// unsubscribe maps owner_id -> bus unsubscribe function
	unsubscribe map[string]func()
	bus         OwnerSubscriber
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewResultHub creates a new result hub; bus may be nil when results are
// pushed through OnAnalysisResult directly
func NewResultHub(bus OwnerSubscriber, logger *zap.Logger) *ResultHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultHub{
		clients:     make(map[string]map[*client]bool),
		unsubscribe: make(map[string]func()),
		bus:         bus,
		logger:      logger.With(zap.String("component", "ws-hub")),
	}
}

// Register adds a connection for an owner
func (h *ResultHub) Register(ownerID string, c *client) {
	h.mu.Lock()
	if h.clients[ownerID] == nil {
		h.clients[ownerID] = make(map[*client]bool)
	}
	h.clients[ownerID][c] = true
	first := len(h.clients[ownerID]) == 1
	h.logger.Debug("client registered", zap.String("owner", ownerID), zap.Int("total", len(h.clients[ownerID])))
	h.mu.Unlock()

	if first && h.bus != nil {
		h.subscribe(ownerID)
	}
}

// subscribe runs outside the hub lock; the bus may be publishing into the hub
func (h *ResultHub) subscribe(ownerID string) {
	unsub := h.bus.SubscribeOwner(ownerID, pipeline.ResultHandlerFunc(h.OnAnalysisResult))

	h.mu.Lock()
	_, connected := h.clients[ownerID]
	_, subscribed := h.unsubscribe[ownerID]
	keep := connected && !subscribed
	if keep {
		h.unsubscribe[ownerID] = unsub
	}
	h.mu.Unlock()

	if !keep {
		unsub()
	}
}

// Unregister removes a connection for an owner
func (h *ResultHub) Unregister(ownerID string, c *client) {
	var unsub func()

	h.mu.Lock()
	if conns, ok := h.clients[ownerID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, ownerID)
			unsub = h.unsubscribe[ownerID]
			delete(h.unsubscribe, ownerID)
		}
		h.logger.Debug("client unregistered", zap.String("owner", ownerID))
	}
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// HasClients returns true if any client is connected for an owner
func (h *ResultHub) HasClients(ownerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.clients[ownerID]
	return ok && len(conns) > 0
}

// ClientCount returns the total number of connected clients
func (h *ResultHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// BroadcastToOwner sends a message to all clients subscribed to an owner
func (h *ResultHub) BroadcastToOwner(ownerID string, message []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[ownerID]))
	for c := range h.clients[ownerID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, message); err != nil {
			h.logger.Warn("dropping client after write error", zap.String("owner", ownerID), zap.Error(err))
			h.Unregister(ownerID, c)
			c.conn.Close()
		}
	}
}

// OnAnalysisResult pushes a stored result to its owner's connections
func (h *ResultHub) OnAnalysisResult(result *pipeline.AnalysisResult) {
	if result == nil || !h.HasClients(result.OwnerID) {
		return
	}

	data, err := json.Marshal(NewResultMessage(result))
	if err != nil {
		h.logger.Error("failed to marshal result message", zap.Error(err))
		return
	}
	h.BroadcastToOwner(result.OwnerID, data)
}

// Close disconnects every client and drops all bus subscriptions
func (h *ResultHub) Close() {
	h.mu.Lock()
	unsubs := make([]func(), 0, len(h.unsubscribe))
	for ownerID, unsub := range h.unsubscribe {
		unsubs = append(unsubs, unsub)
		delete(h.unsubscribe, ownerID)
	}
	for ownerID, conns := range h.clients {
		for c := range conns {
			c.conn.Close()
		}
		delete(h.clients, ownerID)
	}
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

var _ pipeline.ResultHandler = (*ResultHub)(nil)
