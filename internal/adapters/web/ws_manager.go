package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// sameHostOrigin accepts requests without an Origin header and browser
// requests served from the same host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// WSMessage is the envelope of every feed message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSManager fans out every handled exchange to connected websocket clients.
type WSManager struct {
	Clients map[*websocket.Conn]struct{}
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewWSManager(logger *slog.Logger) *WSManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSManager{
		Clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
	}
}

func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}

	m.mu.Lock()
	m.Clients[conn] = struct{}{}
	m.mu.Unlock()
	m.logger.Debug("WebSocket connected", "remote", r.RemoteAddr)

	// Clean up on disconnect
	go func() {
		defer m.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// RecordExchange broadcasts ex as an "exchange" message.
func (m *WSManager) RecordExchange(ex domain.Exchange) {
	m.broadcastMessage(WSMessage{Type: "exchange", Payload: ex})
}

// ClientCount returns the number of connected clients.
func (m *WSManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Clients)
}

// CloseAll disconnects every client.
func (m *WSManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.Close()
		delete(m.Clients, conn)
	}
}

func (m *WSManager) drop(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.Clients, conn)
	m.mu.Unlock()
	conn.Close()
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Warn("JSON marshal error", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.Clients, conn)
		}
	}
}
