// Package roster renders the list of collaborators in the current room.
package roster

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vibecode/collabhub/internal/protocol"
	"github.com/vibecode/collabhub/internal/theme"
)

// Model tracks the other members of the room in arrival order.
type Model struct {
	users []protocol.User
}

// Set replaces the roster with a collaborators_list snapshot.
func (m *Model) Set(users []protocol.User) {
	m.users = append([]protocol.User(nil), users...)
}

func (m *Model) Add(u protocol.User) {
	m.users = append(m.users, u)
}

// Remove drops one entry with the given id. Two connections may share an
// id, so only the first match goes.
func (m *Model) Remove(id string) bool {
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Model) Clear() { m.users = nil }

func (m Model) Users() []protocol.User { return m.users }

func (m Model) Len() int { return len(m.users) }

// View renders the roster as a column of width characters.
func (m Model) View(width int) string {
	lines := []string{theme.StyleHeader.Render("Collaborators")}
	if len(m.users) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("nobody else here"))
	}
	for _, u := range m.users {
		name := u.Name
		if name == "" {
			name = u.ID
		}
		dot := lipgloss.NewStyle().Foreground(theme.UserColor(u.ID, u.Color)).Render("●")
		lines = append(lines, dot+" "+name)
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}
