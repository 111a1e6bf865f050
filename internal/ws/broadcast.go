package ws

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibecode/collabhub/internal/config"
	"github.com/vibecode/collabhub/internal/presence"
	"github.com/vibecode/collabhub/internal/protocol"
	"github.com/vibecode/collabhub/internal/terminal"
)

// ErrTooManyConnections is returned by Accept when the hub is at its
// configured connection limit.
var ErrTooManyConnections = errors.New("too many connections")

// Hub is the connection registry. It classifies each accepted connection,
// routes its messages, and owns the hub-wide status broadcast. All state is
// per instance.
type Hub struct {
	cfg       config.HubConfig
	presence  *presence.Manager
	terminals *terminal.Multiplexer
	sampler   *sampler

	mu    sync.RWMutex
	conns map[string]*Conn

	statusTicker *time.Ticker
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewHub(cfg config.HubConfig, term config.TerminalConfig) *Hub {
	h := &Hub{
		cfg:       cfg,
		presence:  presence.NewManager(),
		terminals: terminal.New(term.LogInterval, term.LogWindow),
		sampler:   newSampler(),
		conns:     make(map[string]*Conn),
		stop:      make(chan struct{}),
	}

	h.statusTicker = time.NewTicker(cfg.StatusInterval)
	h.wg.Add(1)
	go h.statusLoop()

	return h
}

// Accept registers an upgraded socket and starts its pumps. path decides
// whether it is a terminal or a collaboration connection.
func (h *Hub) Accept(conn *websocket.Conn, path string) (*Conn, error) {
	c := newConn(h, conn, path)
	if err := h.register(c); err != nil {
		return nil, err
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (h *Hub) register(c *Conn) error {
	h.mu.Lock()
	if h.cfg.MaxConnections > 0 && len(h.conns) >= h.cfg.MaxConnections {
		h.mu.Unlock()
		return ErrTooManyConnections
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	log.Printf("WebSocket connection established: %s at %s", c.id, c.path)

	if projectID, ok := TerminalProject(c.path); ok {
		h.terminals.Attach(c, projectID)
	} else {
		c.sendJSON(protocol.NewWelcome(c.id))
	}
	return nil
}

// Unregister runs every close-time cleanup: the connection stops taking
// frames, leaves its room, leaves its terminal session and loses its log
// bursts. Each step tolerates connections that never joined anything, so
// Unregister may be called more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.shutdown()
	h.presence.Leave(c.id)
	h.terminals.Detach(c.id)
	c.unbind()

	if ok {
		log.Printf("WebSocket connection closed: %s", c.id)
	}
}

// Broadcast sends data to every open connection in every room and every
// terminal session. It returns how many connections accepted the frame.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range conns {
		if c.Send(data) {
			n++
		}
	}
	return n
}

func (h *Hub) statusLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return
		case <-h.statusTicker.C:
			h.BroadcastStatus()
		}
	}
}

// BroadcastStatus samples hub and process metrics and sends them to every
// connection as a server_status envelope.
func (h *Hub) BroadcastStatus() int {
	status := h.Status()
	status.Type = protocol.MsgServerStatus
	data, err := protocol.Encode(status)
	if err != nil {
		log.Printf("status marshal error: %v", err)
		return 0
	}
	return h.Broadcast(data)
}

// Status returns the current metrics without an envelope type.
func (h *Hub) Status() protocol.ServerStatus {
	m := h.sampler.sample()
	return protocol.ServerStatus{
		Clients:          h.ClientCount(),
		Uptime:           m.uptime.Seconds(),
		MemoryUsage:      m.heapMB,
		RSSMB:            m.rssMB,
		CPUPercent:       m.cpuPercent,
		Rooms:            h.presence.RoomCount(),
		TerminalSessions: h.terminals.SessionCount(),
		Timestamp:        protocol.Now(),
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close stops the status timer, closes every connection and cancels every
// pending log burst.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		h.statusTicker.Stop()
		close(h.stop)
		h.wg.Wait()

		h.mu.RLock()
		conns := make([]*Conn, 0, len(h.conns))
		for _, c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.RUnlock()

		for _, c := range conns {
			h.Unregister(c)
		}
		h.terminals.Close()
	})
}
