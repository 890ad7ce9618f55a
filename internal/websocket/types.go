package websocket

import (
	"sync"
	"time"

	"shuttle-backend/pkg/jwt"

	"github.com/gorilla/websocket"
)

// Message is the envelope every event is sent in.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Conn is the part of a websocket connection the manager writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// TokenValidator checks bearer tokens presented during the handshake.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Client is one connected app. Role is fixed at handshake time.
type Client struct {
	ID          string
	UserID      string
	Role        string
	ConnectedAt time.Time

	conn    Conn
	writeMu sync.Mutex
}

func (c *Client) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int            `json:"totalClients"`
	ByRole          map[string]int `json:"byRole"`
	PendingMessages int            `json:"pendingMessages"`
	MessagesSent    int64          `json:"messagesSent"`
	SendFailures    int64          `json:"sendFailures"`
}

// Message types for client/server housekeeping
const (
	MessageTypeAuth   = "auth"
	MessageTypeAuthOK = "auth_ok"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"
)

// deadlineConn bounds every write on a gorilla connection.
type deadlineConn struct {
	*websocket.Conn
	timeout time.Duration
}

func (c deadlineConn) WriteJSON(v interface{}) error {
	c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.Conn.WriteJSON(v)
}
