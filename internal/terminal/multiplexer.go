// Package terminal simulates one shell session per project. Commands are
// resolved against static rules and the output goes back to the issuing
// connection only; "start" and "run" commands also stream a short burst of
// log lines.
package terminal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vibecode/collabhub/internal/protocol"
)

// Sender is a connection that can receive encoded envelopes without blocking.
type Sender interface {
	ID() string
	Send(data []byte) bool
}

// burst is one running log stream. stop is closed exactly once via cancel.
type burst struct {
	stop chan struct{}
	once sync.Once
}

func (b *burst) cancel() {
	b.once.Do(func() { close(b.stop) })
}

type Multiplexer struct {
	logInterval time.Duration
	logWindow   time.Duration

	mu       sync.Mutex
	sessions map[string]map[string]Sender // project id -> connection id -> conn
	attached map[string]string            // connection id -> project id
	bursts   map[string]map[*burst]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New returns a multiplexer whose log bursts emit one line every
// logInterval for at most logWindow.
func New(logInterval, logWindow time.Duration) *Multiplexer {
	if logInterval <= 0 {
		logInterval = 3 * time.Second
	}
	return &Multiplexer{
		logInterval: logInterval,
		logWindow:   logWindow,
		sessions:    make(map[string]map[string]Sender),
		attached:    make(map[string]string),
		bursts:      make(map[string]map[*burst]struct{}),
	}
}

// Attach registers conn as a terminal client of projectID and greets it.
func (m *Multiplexer) Attach(conn Sender, projectID string) {
	m.mu.Lock()
	if prev, ok := m.attached[conn.ID()]; ok {
		m.removeLocked(conn.ID(), prev)
	}
	s, ok := m.sessions[projectID]
	if !ok {
		s = make(map[string]Sender)
		m.sessions[projectID] = s
	}
	s[conn.ID()] = conn
	m.attached[conn.ID()] = projectID
	m.mu.Unlock()

	send(conn, fmt.Sprintf("Connected to terminal for project %s.\nType 'help' for available commands.", projectID))
	log.Printf("Terminal session attached for project %s (%s)", projectID, conn.ID())
}

// Detach removes the connection from its terminal session and cancels any
// log bursts it started. It is safe to call for connections that never
// attached or already detached.
func (m *Multiplexer) Detach(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for b := range m.bursts[connID] {
		b.cancel()
	}
	delete(m.bursts, connID)

	projectID, ok := m.attached[connID]
	if !ok {
		return false
	}
	m.removeLocked(connID, projectID)
	log.Printf("Terminal session removed for project %s (%s)", projectID, connID)
	return true
}

func (m *Multiplexer) removeLocked(connID, projectID string) {
	delete(m.attached, connID)
	if s, ok := m.sessions[projectID]; ok {
		delete(s, connID)
		if len(s) == 0 {
			delete(m.sessions, projectID)
		}
	}
}

// Execute resolves command and replies to conn alone. It does not require
// conn to be attached to projectID's session. The resolved output is
// returned for logging and tests.
func (m *Multiplexer) Execute(conn Sender, projectID, command string) string {
	output := Resolve(command)
	send(conn, output)
	log.Printf("Terminal command for project %s (%s): %q", projectID, conn.ID(), command)

	if StartsProcess(command) {
		m.startBurst(conn)
	}
	return output
}

func (m *Multiplexer) startBurst(conn Sender) {
	lines := int(m.logWindow / m.logInterval)
	if lines < 1 {
		lines = 1
	}

	b := &burst{stop: make(chan struct{})}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	set, ok := m.bursts[conn.ID()]
	if !ok {
		set = make(map[*burst]struct{})
		m.bursts[conn.ID()] = set
	}
	set[b] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.forget(conn.ID(), b)

		ticker := time.NewTicker(m.logInterval)
		defer ticker.Stop()
		for i := 0; i < lines; i++ {
			select {
			case <-b.stop:
				return
			case now := <-ticker.C:
				line := fmt.Sprintf("[%s] Simulated log output from your application...", now.Format("3:04:05 PM"))
				if !send(conn, line) {
					return
				}
			}
		}
	}()
}

func (m *Multiplexer) forget(connID string, b *burst) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.bursts[connID]; ok {
		delete(set, b)
		if len(set) == 0 {
			delete(m.bursts, connID)
		}
	}
}

// Attached returns the ids of the connections attached to projectID.
func (m *Multiplexer) Attached(projectID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions[projectID]))
	for id := range m.sessions[projectID] {
		ids = append(ids, id)
	}
	return ids
}

// SessionCount returns the number of projects with at least one attached
// terminal connection.
func (m *Multiplexer) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ActiveBursts returns how many log bursts are still running for connID.
func (m *Multiplexer) ActiveBursts(connID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bursts[connID])
}

// Close cancels every running burst and waits for them to exit. No new
// bursts start afterwards.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	m.closed = true
	for id, set := range m.bursts {
		for b := range set {
			b.cancel()
		}
		delete(m.bursts, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func send(conn Sender, output string) bool {
	data, err := protocol.Encode(protocol.NewTerminal(output))
	if err != nil {
		log.Printf("terminal: marshal error: %v", err)
		return false
	}
	return conn.Send(data)
}
