// Package websocket fans fleet events out to connected rider, driver and
// admin apps. Queued events are coalesced per (type, key) and flushed on a
// fixed cadence; immediate events bypass the queue.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"shuttle-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Manager struct {
	config    Config
	validator TokenValidator

	clients map[string]*Client
	mutex   sync.RWMutex

	pendingMu sync.Mutex
	pending   map[string]Message
	order     []string
	unkeyed   uint64

	flushing atomic.Bool
	sent     atomic.Int64
	failed   atomic.Int64

	upgrader websocket.Upgrader
	done     chan struct{}
	stopOnce sync.Once
	loopWg   sync.WaitGroup
}

// NewManager creates a broadcast manager. A nil validator treats every
// connection as an anonymous rider.
func NewManager(config Config, validator TokenValidator) *Manager {
	return &Manager{
		config:    config,
		validator: validator,
		clients:   make(map[string]*Client),
		pending:   make(map[string]Message),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// origin checks happen in the CORS middleware
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Start runs the flush loop until Stop.
func (m *Manager) Start() error {
	m.loopWg.Add(1)
	go m.run()
	log.Println("Broadcast manager started")
	return nil
}

// Stop flushes what is queued and closes every connection.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		close(m.done)
		m.loopWg.Wait()
		m.Flush()

		m.mutex.Lock()
		for id, client := range m.clients {
			client.conn.Close()
			delete(m.clients, id)
		}
		m.mutex.Unlock()
		log.Println("Broadcast manager stopped")
	})
	return nil
}

func (m *Manager) run() {
	defer m.loopWg.Done()
	ticker := time.NewTicker(m.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Flush()
		case <-m.done:
			return
		}
	}
}

// Queue stores the event until the next flush, replacing any queued event
// with the same type and dedupeKey. Events without a key are never merged.
func (m *Manager) Queue(eventType string, data interface{}, dedupeKey string) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	if dedupeKey == "" {
		m.unkeyed++
		dedupeKey = "#" + strconv.FormatUint(m.unkeyed, 10)
	}
	key := eventType + ":" + dedupeKey

	if _, ok := m.pending[key]; !ok {
		if len(m.order) >= m.config.MaxPending {
			m.evictOldest()
		}
		m.order = append(m.order, key)
	}
	m.pending[key] = Message{Type: eventType, Data: data}
}

func (m *Manager) evictOldest() {
	n := m.config.EvictBatch
	if n > len(m.order) {
		n = len(m.order)
	}
	for _, key := range m.order[:n] {
		delete(m.pending, key)
	}
	m.order = append([]string(nil), m.order[n:]...)
	log.Printf("Broadcast queue full, dropped %d oldest events", n)
}

// Flush sends everything queued to every client. A flush that starts while
// another is in progress does nothing.
func (m *Manager) Flush() {
	if !m.flushing.CompareAndSwap(false, true) {
		return
	}
	defer m.flushing.Store(false)

	m.pendingMu.Lock()
	if len(m.order) == 0 {
		m.pendingMu.Unlock()
		return
	}
	batch := make([]Message, 0, len(m.order))
	for _, key := range m.order {
		batch = append(batch, m.pending[key])
	}
	m.pending = make(map[string]Message)
	m.order = nil
	m.pendingMu.Unlock()

	m.deliver(m.snapshot(nil), batch)
}

// BroadcastImmediate sends one event right away. A non-empty audience
// restricts delivery to clients holding one of those roles.
func (m *Manager) BroadcastImmediate(eventType string, data interface{}, audience ...string) {
	m.deliver(m.snapshot(audience), []Message{{Type: eventType, Data: data}})
}

func (m *Manager) snapshot(audience []string) []*Client {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		if len(audience) == 0 || hasRole(audience, c.Role) {
			clients = append(clients, c)
		}
	}
	return clients
}

func hasRole(audience []string, role string) bool {
	for _, r := range audience {
		if r == role {
			return true
		}
	}
	return false
}

// deliver writes batch to each client on its own goroutine. A failing
// client is dropped without affecting the others.
func (m *Manager) deliver(clients []*Client, batch []Message) {
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for _, msg := range batch {
				if err := c.write(msg); err != nil {
					m.failed.Add(1)
					log.Printf("Error writing %s to client %s: %v", msg.Type, c.ID, err)
					m.UnregisterClient(c.ID)
					return
				}
				m.sent.Add(1)
			}
		}(c)
	}
	wg.Wait()
}

// RegisterClient adds an authenticated connection.
func (m *Manager) RegisterClient(conn Conn, userID, role string) *Client {
	client := &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		Role:        role,
		ConnectedAt: time.Now(),
		conn:        conn,
	}

	m.mutex.Lock()
	m.clients[client.ID] = client
	m.mutex.Unlock()

	log.Printf("Client %s registered as %s", client.ID, role)
	return client
}

// UnregisterClient closes and forgets the client. Unknown ids are ignored.
func (m *Manager) UnregisterClient(clientID string) {
	m.mutex.Lock()
	client, ok := m.clients[clientID]
	delete(m.clients, clientID)
	m.mutex.Unlock()

	if ok {
		client.conn.Close()
		log.Printf("Client %s unregistered", clientID)
	}
}

// GetConnectedClients returns the number of connected clients
func (m *Manager) GetConnectedClients() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// GetClientStats returns detailed client statistics
func (m *Manager) GetClientStats() ClientStats {
	m.mutex.RLock()
	stats := ClientStats{
		TotalClients: len(m.clients),
		ByRole:       make(map[string]int),
	}
	for _, c := range m.clients {
		stats.ByRole[c.Role]++
	}
	m.mutex.RUnlock()

	m.pendingMu.Lock()
	stats.PendingMessages = len(m.order)
	m.pendingMu.Unlock()

	stats.MessagesSent = m.sent.Load()
	stats.SendFailures = m.failed.Load()
	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (m *Manager) GetUpgrader() *websocket.Upgrader {
	return &m.upgrader
}

type inbound struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// Serve runs the handshake and read loop of an upgraded connection and
// returns when the client goes away. The role comes from token when given,
// otherwise from an auth message sent within the auth timeout; anything
// else is an anonymous rider.
func (m *Manager) Serve(conn *websocket.Conn, token string) {
	conn.SetReadDeadline(time.Now().Add(m.config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(m.config.PongWait))
		return nil
	})

	inbox := make(chan inbound)
	done := make(chan struct{})
	defer close(done)
	go m.readLoop(conn, inbox, done)

	userID, role := "", models.RoleRider
	var early *inbound
	if token != "" {
		userID, role = m.resolve(token)
	} else {
		timer := time.NewTimer(m.config.AuthTimeout)
		select {
		case msg, ok := <-inbox:
			timer.Stop()
			if !ok {
				conn.Close()
				return
			}
			if msg.Type == MessageTypeAuth {
				userID, role = m.resolve(msg.Token)
			} else {
				early = &msg
			}
		case <-timer.C:
		}
	}

	client := m.RegisterClient(deadlineConn{Conn: conn, timeout: m.config.WriteTimeout}, userID, role)
	defer m.UnregisterClient(client.ID)

	if err := client.write(Message{Type: MessageTypeAuthOK, Data: map[string]string{
		"clientId": client.ID,
		"role":     role,
	}}); err != nil {
		return
	}
	if early != nil {
		m.handleInbound(client, *early)
	}

	go m.pingLoop(conn, done)

	for msg := range inbox {
		m.handleInbound(client, msg)
	}
}

// readLoop decodes inbound messages until the connection fails.
func (m *Manager) readLoop(conn *websocket.Conn, inbox chan<- inbound, done <-chan struct{}) {
	defer close(inbox)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(m.config.PongWait))

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		select {
		case inbox <- msg:
		case <-done:
			return
		}
	}
}

func (m *Manager) resolve(token string) (string, string) {
	if m.validator == nil || token == "" {
		return "", models.RoleRider
	}
	claims, err := m.validator.ValidateToken(token)
	if err != nil {
		log.Printf("WebSocket token rejected, continuing as rider: %v", err)
		return "", models.RoleRider
	}
	switch claims.Role {
	case models.RoleDriver, models.RoleAdmin, models.RoleRider:
		return claims.UserID, claims.Role
	}
	return claims.UserID, models.RoleRider
}

func (m *Manager) handleInbound(client *Client, msg inbound) {
	switch msg.Type {
	case MessageTypePing:
		if err := client.write(Message{Type: MessageTypePong, Data: time.Now()}); err != nil {
			log.Printf("Error sending pong to client %s: %v", client.ID, err)
		}
	case MessageTypeAuth:
		client.write(Message{Type: MessageTypeError, Data: "already authenticated"})
	}
}

func (m *Manager) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(m.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
