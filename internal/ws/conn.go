package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vibecode/collabhub/internal/protocol"
)

// Conn is one registered WebSocket connection. The hub owns it from accept
// until close.
type Conn struct {
	id   string
	path string
	ws   *websocket.Conn
	hub  *Hub
	send chan []byte

	mu        sync.Mutex
	closed    bool
	projectID string
	user      *protocol.User
}

func newConn(h *Hub, conn *websocket.Conn, path string) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		path: path,
		ws:   conn,
		hub:  h,
		send: make(chan []byte, h.cfg.SendBuffer),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Path() string { return c.path }

// Send queues a frame without blocking. It returns false when the
// connection is closed or its buffer is full; the frame is dropped.
func (c *Conn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("ws client %s too slow, dropping frame", c.id)
		return false
	}
}

func (c *Conn) sendJSON(v any) bool {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Printf("ws marshal error: %v", err)
		return false
	}
	return c.Send(data)
}

// Project returns the room the connection joined and the identity it
// presented, if any.
func (c *Conn) Project() (string, *protocol.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID, c.user
}

func (c *Conn) bind(projectID string, u protocol.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectID = projectID
	c.user = &u
}

func (c *Conn) unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectID = ""
	c.user = nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// shutdown stops accepting frames and lets writePump drain and exit.
func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump owns all writes to the socket, including the keepalive ping.
// The ping ticker dies with it.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws write error for %s: %v", c.id, err)
				c.hub.Unregister(c)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

// readPump feeds inbound frames to the router one at a time and
// unregisters the connection when the socket fails or closes.
func (c *Conn) readPump() {
	defer c.hub.Unregister(c)

	if c.hub.cfg.MaxMessageSize > 0 {
		c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	}
	if timeout := c.hub.cfg.PongTimeout; timeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(timeout))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(timeout))
		})
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("WebSocket error for %s: %v", c.id, err)
			}
			return
		}
		c.hub.Dispatch(c, data)
	}
}
