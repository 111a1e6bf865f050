package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/vibecode/collabhub/internal/protocol"
)

const (
	// DefaultReconnectDelay is the fixed wait between a dropped connection
	// and the next dial. It never grows and attempts never stop.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultHeartbeatInterval is how often a JSON heartbeat is sent.
	DefaultHeartbeatInterval = 30 * time.Second

	writeTimeout = 10 * time.Second
)

var errNotConnected = errors.New("not connected")

// WSClient manages one WebSocket connection to the hub.
type WSClient struct {
	url     string
	channel Channel

	reconnectDelay    time.Duration
	heartbeatInterval time.Duration

	mu          sync.Mutex
	writeMu     sync.Mutex // serialises all conn writes
	conn        *websocket.Conn
	hbCancel    context.CancelFunc
	dials       int
	connections int
}

// NewWSClient creates a client for the given hub URL. ch tags every message
// the client produces.
func NewWSClient(url string, ch Channel) *WSClient {
	return &WSClient{
		url:               url,
		channel:           ch,
		reconnectDelay:    DefaultReconnectDelay,
		heartbeatInterval: DefaultHeartbeatInterval,
	}
}

// SetReconnectDelay overrides the fixed reconnect delay.
func (c *WSClient) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		c.reconnectDelay = d
	}
}

// SetHeartbeatInterval overrides the heartbeat period.
func (c *WSClient) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		c.heartbeatInterval = d
	}
}

func (c *WSClient) Channel() Channel { return c.channel }

// Dials returns how many connection attempts the client has made.
func (c *WSClient) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

// Connections returns how many times the client has connected.
func (c *WSClient) Connections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connections
}

// Listen returns a Bubble Tea command that dials the hub immediately and
// keeps retrying at the fixed delay until it connects or ctx ends.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return c.connect(ctx)
	}
}

// Reconnect is Listen after one fixed delay. The UI issues it when a
// connection drops.
func (c *WSClient) Reconnect(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		if !sleep(ctx, c.reconnectDelay) {
			return nil
		}
		return c.connect(ctx)
	}
}

func (c *WSClient) connect(ctx context.Context) tea.Msg {
	for {
		if ctx.Err() != nil {
			return nil
		}

		c.mu.Lock()
		c.dials++
		c.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("ws dial %s error: %v (retry in %v)", c.channel, err, c.reconnectDelay)
			if !sleep(ctx, c.reconnectDelay) {
				return nil
			}
			continue
		}

		c.mu.Lock()
		if c.hbCancel != nil {
			c.hbCancel()
		}
		hbCtx, hbCancel := context.WithCancel(ctx)
		c.conn = conn
		c.hbCancel = hbCancel
		c.connections++
		c.mu.Unlock()

		go c.heartbeatLoop(hbCtx, conn)

		return WSConnectedMsg{From: c.channel}
	}
}

// ReadLoop returns a Bubble Tea command that reads until the next message
// the UI cares about. It should be started after WSConnectedMsg and
// re-issued after every message it returns.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{From: c.channel, Err: errNotConnected}
		}

		readTimeout := 3 * c.heartbeatInterval
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.drop(conn)
				if ctx.Err() != nil {
					return nil
				}
				return WSDisconnectedMsg{From: c.channel, Err: err}
			}
			conn.SetReadDeadline(time.Now().Add(readTimeout))

			msg, err := c.decode(data)
			if err != nil {
				log.Printf("ws %s bad frame: %v", c.channel, err)
				continue
			}
			if msg != nil {
				return msg
			}
		}
	}
}

// Close drops the current connection without reconnecting.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.drop(conn)
	}
}

func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.hbCancel != nil {
			c.hbCancel()
			c.hbCancel = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// heartbeatLoop sends {"type":"heartbeat"} on conn until ctx is cancelled
// or the connection changes.
func (c *WSClient) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			if err := c.write(conn, heartbeatRequest{Type: protocol.MsgHeartbeat}); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) write(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// Send writes v as a JSON text frame on the current connection.
func (c *WSClient) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	if err := c.write(conn, v); err != nil {
		return fmt.Errorf("send %s: %w", c.channel, err)
	}
	return nil
}

func (c *WSClient) Join(projectID string, u protocol.User) error {
	return c.Send(joinRequest{Type: protocol.MsgJoinCollaboration, ProjectID: projectID, User: u})
}

func (c *WSClient) Leave(projectID string) error {
	return c.Send(leaveRequest{Type: protocol.MsgLeaveCollab, ProjectID: projectID})
}

func (c *WSClient) Chat(projectID string, u protocol.User, text string) error {
	return c.Send(chatRequest{
		Type:      protocol.MsgChat,
		ProjectID: projectID,
		User:      u,
		Message:   text,
		Timestamp: protocol.Now(),
	})
}

func (c *WSClient) FileChange(projectID, fileName, content string) error {
	return c.Send(fileChangeRequest{
		Type:      protocol.MsgFileChange,
		ProjectID: projectID,
		FileName:  fileName,
		Content:   content,
	})
}

func (c *WSClient) Cursor(projectID string, u protocol.User, position any) error {
	raw, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	return c.Send(cursorRequest{
		Type:      protocol.MsgCursorPosition,
		ProjectID: projectID,
		User:      u,
		Position:  raw,
	})
}

func (c *WSClient) Command(projectID, command string) error {
	return c.Send(commandRequest{Type: protocol.MsgCommand, ProjectID: projectID, Command: command})
}

// decode maps one server envelope to a Bubble Tea message. pong and
// unknown types yield nil.
func (c *WSClient) decode(data []byte) (tea.Msg, error) {
	var head struct {
		Type protocol.MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	from := c.channel
	switch head.Type {
	case protocol.MsgWelcome:
		var p protocol.Welcome
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSWelcomeMsg{From: from, Payload: p}, nil

	case protocol.MsgCollaboratorsList:
		var p protocol.CollaboratorsList
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSCollaboratorsMsg{From: from, Users: p.Collaborators}, nil

	case protocol.MsgUserJoined, protocol.MsgUserLeft:
		var p protocol.Presence
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSPresenceMsg{From: from, Joined: head.Type == protocol.MsgUserJoined, User: p.User}, nil

	case protocol.MsgChat:
		var p protocol.ChatMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSChatMsg{From: from, Payload: p}, nil

	case protocol.MsgFileChange:
		var p protocol.FileChangeMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSFileChangeMsg{From: from, Payload: p}, nil

	case protocol.MsgCursorPosition:
		var p protocol.CursorMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSCursorMsg{From: from, Payload: p}, nil

	case protocol.MsgComponentAdded, protocol.MsgComponentRemoved, protocol.MsgComponentUpdated:
		return WSComponentMsg{From: from, Type: head.Type, Raw: json.RawMessage(data)}, nil

	case protocol.MsgTerminal:
		var p protocol.Terminal
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSTerminalMsg{From: from, Output: p.Output}, nil

	case protocol.MsgServerStatus:
		var p protocol.ServerStatus
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSStatusMsg{From: from, Payload: p}, nil

	case protocol.MsgError:
		var p protocol.ErrorMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return WSErrorMsg{From: from, Message: p.Message}, nil
	}
	return nil, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
