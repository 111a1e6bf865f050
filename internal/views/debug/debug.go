// Package debug provides a scrollable event log overlay.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibecode/collabhub/internal/theme"
)

const maxEntries = 200

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string // "ws", "pres", "term", "err"
	Message string
}

// Model holds the event log and the viewport it scrolls in.
type Model struct {
	entries []Entry
	vp      viewport.Model
}

func New() Model {
	return Model{vp: viewport.New(40, 10)}
}

// Add appends an entry, caps the buffer and follows the tail if the view
// was already at the bottom.
func (m *Model) Add(kind, message string) {
	follow := m.vp.AtBottom()
	m.entries = append(m.entries, Entry{Time: time.Now(), Kind: kind, Message: message})
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
	m.refresh()
	if follow {
		m.vp.GotoBottom()
	}
}

func (m Model) Entries() []Entry { return m.entries }

// SetSize fits the log inside a panel of the given outer size.
func (m *Model) SetSize(width, height int) {
	m.vp.Width = max(width-6, 20)
	m.vp.Height = max(height-8, 3)
	m.refresh()
}

// Update scrolls the log.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return cmd
}

func (m *Model) refresh() {
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindToColor(e.Kind)).Width(5).Render(e.Kind)
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, e.Message))
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}

// View renders the log as an overlay panel.
func (m Model) View() string {
	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("pgup/pgdn:scroll  esc:close  %d entries", len(m.entries)))

	body := m.vp.View()
	if len(m.entries) == 0 {
		body = theme.StyleDimmed.Render("  No events recorded yet.")
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
}

func kindToColor(kind string) lipgloss.Color {
	switch kind {
	case "ws":
		return theme.ColorChat
	case "term":
		return theme.ColorTerminal
	case "pres":
		return theme.ColorSystem
	case "err":
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
