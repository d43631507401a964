package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// colorEnabled is true when stdout is a terminal that supports color
var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) && termenv.EnvColorProfile() != termenv.Ascii

func colorize(text string, color lipgloss.Color) string {
	if !colorEnabled {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

// ColorRed colors text red
func ColorRed(text string) string {
	return colorize(text, lipgloss.Color("1"))
}

// ColorGreen colors text green
func ColorGreen(text string) string {
	return colorize(text, lipgloss.Color("2"))
}

// ColorYellow colors text yellow
func ColorYellow(text string) string {
	return colorize(text, lipgloss.Color("3"))
}

// ColorCyan colors text cyan
func ColorCyan(text string) string {
	return colorize(text, lipgloss.Color("6"))
}

// ColorDim renders text dimmed
func ColorDim(text string) string {
	if !colorEnabled {
		return text
	}
	return lipgloss.NewStyle().Faint(true).Render(text)
}
