package notifications

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vaultgate/internal/pkg/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients connect from extension/app origins that never match the API
	// host, and the hub authenticates with the access token anyway.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the change notification pushed to connected clients. Clients
// treat any message as a hint to re-sync, so the payload stays minimal.
type Message struct {
	Type string    `json:"type"`
	Date time.Time `json:"date"`
}

// client wraps a websocket connection with a write mutex. gorilla/websocket
// allows a single concurrent writer; pings and notifications race without it.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) writeControl(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Hub fans vault-change notifications out to every connected device of a
// user. One user may hold several connections (desktop, extension, mobile).
type Hub struct {
	connections map[string]map[*websocket.Conn]*client
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]*client),
	}
}

func (h *Hub) Register(userID string, conn *websocket.Conn) *client {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*websocket.Conn]*client)
	}
	cl := &client{conn: conn}
	h.connections[userID][conn] = cl
	return cl
}

func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if conns, exists := h.connections[userID]; exists {
		if _, ok := conns[conn]; ok {
			_ = conn.Close()
			delete(conns, conn)
		}
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
}

// NotifySyncNeeded tells every device of the user to pull a fresh sync.
// Dead connections are dropped along the way.
func (h *Hub) NotifySyncNeeded(userID string) {
	h.mutex.RLock()
	clients := make([]*client, 0, len(h.connections[userID]))
	for _, cl := range h.connections[userID] {
		clients = append(clients, cl)
	}
	h.mutex.RUnlock()

	msg := Message{Type: "syncVault", Date: time.Now().UTC()}
	for _, cl := range clients {
		if err := cl.writeJSON(msg); err != nil {
			h.Unregister(userID, cl.conn)
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conns := range h.connections {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.connections, userID)
	}
}

// WSHandler upgrades /notifications/hub requests into hub connections.
type WSHandler struct {
	hub    *Hub
	tokens *token.Service
}

func NewWSHandler(hub *Hub, tokens *token.Service) *WSHandler {
	return &WSHandler{hub: hub, tokens: tokens}
}

// HandleWebSocket authenticates via the access_token query parameter, since
// browser WebSocket clients cannot send an Authorization header.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	raw := c.Query("access_token")
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access_token query parameter is required"})
		return
	}

	claims, err := h.tokens.ValidateAccessToken(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	userID := claims.Subject

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	cl := h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(cl, done)

	// Clients do not send anything meaningful; the read loop only exists to
	// notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) pingLoop(cl *client, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := cl.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
