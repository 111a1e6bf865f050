// Package console renders the project terminal pane.
package console

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vibecode/collabhub/internal/terminal"
	"github.com/vibecode/collabhub/internal/theme"
)

const maxLines = 1000

type Model struct {
	lines []string
	vp    viewport.Model
}

func New() Model {
	return Model{vp: viewport.New(40, 10)}
}

// Write appends one terminal envelope's output. The clear sentinel empties
// the pane instead.
func (m *Model) Write(output string) {
	if output == terminal.ClearSentinel {
		m.lines = nil
		m.refresh()
		return
	}
	m.lines = append(m.lines, strings.Split(output, "\n")...)
	m.refresh()
}

// Echo shows a command the user typed.
func (m *Model) Echo(command string) {
	m.lines = append(m.lines, theme.StylePrompt.Render("$ ")+command)
	m.refresh()
}

func (m *Model) AddError(text string) {
	m.lines = append(m.lines, theme.StyleError.Render(text))
	m.refresh()
}

// Lines returns the pane contents.
func (m Model) Lines() []string { return m.lines }

func (m *Model) SetSize(width, height int) {
	m.vp.Width = width
	m.vp.Height = height
	m.refresh()
}

func (m *Model) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return cmd
}

func (m Model) View() string { return m.vp.View() }

func (m *Model) refresh() {
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	m.vp.GotoBottom()
}
