package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vibecode/collabhub/internal/protocol"
	"github.com/vibecode/collabhub/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	CollabConnected   bool
	TerminalConnected bool
	Project           string
	User              string
	Online            int
	Width             int

	metrics   protocol.ServerStatus
	hasStatus bool
}

// New creates a status bar model.
func New(project, user string) Model {
	return Model{Project: project, User: user}
}

// SetStatus records the latest hub metrics.
func (m *Model) SetStatus(s protocol.ServerStatus) {
	m.metrics = s
	m.hasStatus = true
}

// Status returns the latest hub metrics and whether any have arrived.
func (m Model) Status() (protocol.ServerStatus, bool) {
	return m.metrics, m.hasStatus
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	parts := []string{
		connIndicator("collab", m.CollabConnected),
		connIndicator("terminal", m.TerminalConnected),
		fmt.Sprintf("%s @ %s", m.User, m.Project),
		fmt.Sprintf("%d online", m.Online),
	}
	if m.hasStatus {
		parts = append(parts, m.metricsView())
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}

func connIndicator(name string, up bool) string {
	if up {
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● " + name)
	}
	return lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ " + name + " reconnecting...")
}

func (m Model) metricsView() string {
	s := m.metrics
	cpu := lipgloss.NewStyle().Foreground(theme.LoadColor(s.CPUPercent / 100)).
		Render(fmt.Sprintf("cpu %.1f%%", s.CPUPercent))
	return fmt.Sprintf("hub: %d clients  %d rooms  %d terms  heap %.1fMB  rss %.1fMB  %s  up %s",
		s.Clients, s.Rooms, s.TerminalSessions, s.MemoryUsage, s.RSSMB, cpu, FormatUptime(s.Uptime))
}

// FormatUptime renders seconds as 1h02m, 3m05s or 42s.
func FormatUptime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	mins := int(d%time.Hour) / int(time.Minute)
	sec := int(d%time.Minute) / int(time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, mins)
	case mins > 0:
		return fmt.Sprintf("%dm%02ds", mins, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}
