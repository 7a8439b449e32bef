package session

import (
	"calcpad/metrics"
	"calcpad/models"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// События WebSocket
const (
	EventInput   = "input"
	EventDisplay = "display"
	EventHistory = "history"
	EventError   = "error"
)

const writeTimeout = 5 * time.Second

// Event - сообщение сервера клиенту
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebSocketMessage - сообщение клиента
type WebSocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket - живой канал клавиатуры: клиент шлет {"event":"input"},
// сервер отвечает событиями display и history.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	s, err := m.Verify(token)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("WebSocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn}
	s.addClient(c)
	metrics.ActiveWebSocketConnections.Inc()
	m.log.Info("WebSocket connected: %s", s.ID)

	defer func() {
		s.removeClient(c)
		conn.Close()
		metrics.ActiveWebSocketConnections.Dec()
		m.log.Info("WebSocket disconnected: %s", s.ID)
	}()

	if err := c.send(Event{Event: EventDisplay, Data: InputResult{Display: s.Snapshot()}}); err != nil {
		return
	}
	if entries, err := m.history.List(); err == nil {
		if err := c.send(Event{Event: EventHistory, Data: entries}); err != nil {
			return
		}
	}

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Warn("WebSocket read error for %s: %v", s.ID, err)
			}
			return
		}

		if msg.Event != EventInput {
			m.log.Debug("ignoring WebSocket event %q", msg.Event)
			continue
		}

		var key models.KeyInput
		if err := json.Unmarshal(msg.Data, &key); err != nil {
			m.log.Debug("malformed input event: %v", err)
			continue
		}
		m.Input(s, key.Category, key.Value)
	}
}

func (s *Session) addClient(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Session) removeClient(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, c)
}

func (s *Session) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Session) broadcast(ev Event) {
	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.send(ev); err != nil {
			c.conn.Close()
		}
	}
}

func (s *Session) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}
