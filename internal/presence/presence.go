// Package presence keeps the per-project room table: which connections are
// collaborating on which project, under which identity.
package presence

import (
	"log"
	"sync"

	"github.com/vibecode/collabhub/internal/protocol"
)

// Sender is a connection that can receive encoded envelopes. Send must not
// block; it reports whether the frame was queued.
type Sender interface {
	ID() string
	Send(data []byte) bool
}

type member struct {
	conn Sender
	user protocol.User
}

// room keeps members in join order so fan-out order is stable.
type room struct {
	members map[string]*member
	order   []string
}

func newRoom() *room {
	return &room{members: make(map[string]*member)}
}

func (r *room) add(m *member) {
	if _, ok := r.members[m.conn.ID()]; !ok {
		r.order = append(r.order, m.conn.ID())
	}
	r.members[m.conn.ID()] = m
}

func (r *room) remove(id string) (*member, bool) {
	m, ok := r.members[id]
	if !ok {
		return nil, false
	}
	delete(r.members, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return m, true
}

func (r *room) each(fn func(*member)) {
	for _, id := range r.order {
		fn(r.members[id])
	}
}

// Manager owns every room. A connection is in at most one room at a time.
//
// Sends happen while mu is held so that a joiner's member snapshot and the
// presence events other members see are ordered consistently. This is safe
// only because Sender.Send never blocks.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*room
	where map[string]string // connection id -> project id
}

func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*room),
		where: make(map[string]string),
	}
}

// Join adds conn to the room for projectID, creating the room if needed.
// Every other member receives user_joined; conn alone receives the current
// collaborator list, minus any entry whose identity id equals user.ID.
// A connection already in a room leaves it first.
func (m *Manager) Join(conn Sender, projectID string, user protocol.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.where[conn.ID()]; ok {
		m.leaveLocked(conn.ID())
	}

	r, ok := m.rooms[projectID]
	if !ok {
		r = newRoom()
		m.rooms[projectID] = r
	}
	r.add(&member{conn: conn, user: user})
	m.where[conn.ID()] = projectID

	joined := encode(protocol.NewUserJoined(user))
	list := make([]protocol.User, 0, len(r.members))
	r.each(func(mb *member) {
		if mb.conn.ID() != conn.ID() {
			deliver(mb.conn, joined)
		}
		if mb.user.ID != user.ID {
			list = append(list, mb.user)
		}
	})
	deliver(conn, encode(protocol.NewCollaboratorsList(list)))

	log.Printf("User %s (%s) joined project %s", user.Name, conn.ID(), projectID)
}

// Leave removes the connection from its room, if any, and tells the
// remaining members. The room is deleted once empty. It reports whether the
// connection was a member; calling it again is a no-op.
func (m *Manager) Leave(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(connID)
}

func (m *Manager) leaveLocked(connID string) bool {
	projectID, ok := m.where[connID]
	if !ok {
		return false
	}
	delete(m.where, connID)

	r, ok := m.rooms[projectID]
	if !ok {
		return false
	}
	mb, ok := r.remove(connID)
	if !ok {
		return false
	}

	left := encode(protocol.NewUserLeft(mb.user))
	r.each(func(other *member) {
		deliver(other.conn, left)
	})
	log.Printf("User %s (%s) left project %s", mb.user.Name, connID, projectID)

	if len(r.members) == 0 {
		delete(m.rooms, projectID)
		log.Printf("No more collaborators for project %s", projectID)
	}
	return true
}

// Broadcast sends data to every member of the project's room except the
// connection with id except (pass "" to include everyone). A missing room
// is a no-op. It returns the number of members the frame was queued for.
func (m *Manager) Broadcast(projectID, except string, data []byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[projectID]
	if !ok {
		return 0
	}
	n := 0
	r.each(func(mb *member) {
		if mb.conn.ID() == except {
			return
		}
		if deliver(mb.conn, data) {
			n++
		}
	})
	return n
}

// Members returns the identities in the project's room in join order.
func (m *Manager) Members(projectID string) []protocol.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[projectID]
	if !ok {
		return nil
	}
	users := make([]protocol.User, 0, len(r.order))
	r.each(func(mb *member) {
		users = append(users, mb.user)
	})
	return users
}

// RoomOf returns the project the connection has joined, if any.
func (m *Manager) RoomOf(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.where[connID]
	return p, ok
}

// RoomCount returns the number of non-empty rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func deliver(s Sender, data []byte) bool {
	if data == nil {
		return false
	}
	if !s.Send(data) {
		log.Printf("presence: dropped frame for %s", s.ID())
		return false
	}
	return true
}

func encode(v any) []byte {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Printf("presence: marshal error: %v", err)
		return nil
	}
	return data
}
