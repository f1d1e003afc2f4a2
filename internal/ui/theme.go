package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/ferry/internal/config"
)

// Catppuccin Mocha defaults, overridable from the config file.
var (
	ColorAccent = lipgloss.Color("#89b4fa")
	ColorError  = lipgloss.Color("#f38ba8")
	ColorMuted  = lipgloss.Color("#5a6278")
)

// Pre-built styles, rebuilt by rebuildStyles after color changes.
var (
	styleProgressFilled lipgloss.Style
	styleProgressEmpty  lipgloss.Style
	styleLabel          lipgloss.Style
	styleErrorPrefix    lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleProgressFilled = lipgloss.NewStyle().Foreground(ColorAccent)
	styleProgressEmpty = lipgloss.NewStyle().Foreground(ColorMuted)
	styleLabel = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	styleErrorPrefix = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Accent != nil {
		ColorAccent = lipgloss.Color(*tc.Accent)
	}
	if tc.Error != nil {
		ColorError = lipgloss.Color(*tc.Error)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	rebuildStyles()
}
