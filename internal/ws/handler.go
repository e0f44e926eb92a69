package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ResultsPathPrefix is the route prefix; the owner id follows it
const ResultsPathPrefix = "/ws/results/"

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections for live analysis results
type Handler struct {
	hub    *ResultHub
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *ResultHub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger.With(zap.String("component", "ws-handler"))}
}

// ServeHTTP handles WebSocket upgrade requests
// Expected URL format: /ws/results/{owner_id}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.Trim(strings.TrimPrefix(r.URL.Path, ResultsPathPrefix), "/")
	if ownerID == "" || strings.Contains(ownerID, "/") {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	h.logger.Info("client connected", zap.String("owner", ownerID), zap.String("remote", r.RemoteAddr))

	c := &client{conn: conn}
	h.hub.Register(ownerID, c)

	go h.readPump(ownerID, c)
}

// readPump keeps the connection alive and detects client disconnection
func (h *Handler) readPump(ownerID string, c *client) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.hub.Unregister(ownerID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.String("owner", ownerID), zap.Error(err))
			}
			return
		}
	}
}
