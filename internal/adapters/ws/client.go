package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 45 * time.Second
	sendBufferSize = 16
	maxMessageSize = 512
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced at the gateway in front of this
	// service.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is one live connection. Pushes go through a bounded send channel;
// the write pump owns the socket, and a full buffer drops the push instead of
// blocking the dispatcher.
type Client struct {
	hub    *Hub
	conn   *gorilla.Conn
	userID string
	connID uuid.UUID
	send   chan []byte
	logger *slog.Logger
}

// ServeWS upgrades the request and registers the connection for the given
// user. The caller has already resolved and checked the user identity.
func ServeWS(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		connID: uuid.New(),
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
	hub.Register(client)
	go client.writePump()
	go client.readPump()
}

func (c *Client) trySend(raw []byte) bool {
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

// readPump drains inbound frames. The channel is push-only; clients send
// nothing but control frames, and a read error means the connection is gone.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(gorilla.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gorilla.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
