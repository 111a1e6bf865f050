// Package theme provides the Lip Gloss color palette and reusable styles
// for the collaboration TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Collaborator colors, assigned by user id when the user brings none.
var userPalette = []lipgloss.Color{
	lipgloss.Color("#a855f7"),
	lipgloss.Color("#3b82f6"),
	lipgloss.Color("#06b6d4"),
	lipgloss.Color("#22c55e"),
	lipgloss.Color("#f59e0b"),
	lipgloss.Color("#ec4899"),
	lipgloss.Color("#10b981"),
	lipgloss.Color("#f97316"),
}

// Pane colors.
var (
	ColorChat     = lipgloss.Color("#3b82f6")
	ColorTerminal = lipgloss.Color("#10b981")
	ColorSystem   = lipgloss.Color("#7c3aed")
	ColorPrompt   = lipgloss.Color("#d97706")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// UserColor returns the color for a collaborator. A "#rrggbb" color sent by
// the client wins; otherwise the id picks a stable palette entry.
func UserColor(id, color string) lipgloss.Color {
	if isHexColor(color) {
		return lipgloss.Color(color)
	}
	if id == "" {
		return ColorDefault
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return userPalette[h.Sum32()%uint32(len(userPalette))]
}

// LoadColor returns green, amber or red for a 0..1 utilization.
func LoadColor(frac float64) lipgloss.Color {
	switch {
	case frac > 0.8:
		return ColorDanger
	case frac > 0.5:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBright)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSystem = lipgloss.NewStyle().
		Italic(true).
		Foreground(ColorSystem)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)

	StylePrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrompt)
)

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	return strings.Trim(strings.ToLower(s[1:]), "0123456789abcdef") == ""
}
