// Package chat renders the project chat pane. Message bodies are markdown.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibecode/collabhub/internal/protocol"
	"github.com/vibecode/collabhub/internal/theme"
)

const maxLines = 500

// Model is the chat scrollback.
type Model struct {
	style    string
	renderer *glamour.TermRenderer
	lines    []string
	vp       viewport.Model
}

// New creates a chat pane that renders markdown with the named glamour
// style ("dark", "light", "notty", ...).
func New(style string) Model {
	m := Model{style: style, vp: viewport.New(40, 10)}
	m.renderer = newRenderer(style, 40)
	return m
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// SetSize resizes the pane and rewraps future messages to its width.
func (m *Model) SetSize(width, height int) {
	if width != m.vp.Width {
		m.renderer = newRenderer(m.style, max(width-2, 10))
	}
	m.vp.Width = width
	m.vp.Height = height
	m.vp.SetContent(strings.Join(m.lines, "\n"))
}

// AddMessage appends a chat message from u.
func (m *Model) AddMessage(u protocol.User, text, timestamp string) {
	name := u.Name
	if name == "" {
		name = u.ID
	}
	head := lipgloss.NewStyle().Bold(true).Foreground(theme.UserColor(u.ID, u.Color)).Render(name)
	if ts := clock(timestamp); ts != "" {
		head = theme.StyleDimmed.Render(ts) + " " + head
	}
	m.add(head + "\n" + m.markdown(text))
}

// AddSystem appends a hub notice such as a join or leave.
func (m *Model) AddSystem(text string) {
	m.add(theme.StyleSystem.Render("* " + text))
}

func (m *Model) AddError(text string) {
	m.add(theme.StyleError.Render("! " + text))
}

// Len returns the number of entries in the scrollback.
func (m Model) Len() int { return len(m.lines) }

func (m *Model) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return cmd
}

func (m Model) View() string { return m.vp.View() }

func (m *Model) add(entry string) {
	m.lines = append(m.lines, entry)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	m.vp.GotoBottom()
}

func (m *Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// clock extracts HH:MM:SS from an envelope timestamp.
func clock(ts string) string {
	i := strings.IndexByte(ts, 'T')
	if i < 0 || len(ts) < i+9 {
		return ""
	}
	return ts[i+1 : i+9]
}
