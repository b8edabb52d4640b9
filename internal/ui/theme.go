package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Response codes are coloured by class: 2.xx green, 4.xx amber,
// 5.xx red, anything else muted.
var (
	accent = lipgloss.Color("#5FAFD7")
	green  = lipgloss.Color("#43BF6D")
	amber  = lipgloss.Color("#E5A50A")
	red    = lipgloss.Color("#E0474C")
	muted  = lipgloss.Color("#7A7A7A")
)

const (
	minWidth = 60
	maxWidth = 100
)

var (
	boldStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(muted)
	keyStyle   = lipgloss.NewStyle().Foreground(muted).Width(16)
	noteStyle  = lipgloss.NewStyle().Foreground(muted).Italic(true)
)

// tone returns the colour for a result type.
func tone(t ResultType) lipgloss.Color {
	switch t {
	case ResultSuccess:
		return green
	case ResultWarning:
		return amber
	default:
		return red
	}
}

// codeColor picks the colour for a dotted response code such as "4.04".
func codeColor(code string) lipgloss.Color {
	if code == "" {
		return muted
	}
	switch code[0] {
	case '2':
		return green
	case '4':
		return amber
	case '5':
		return red
	default:
		return muted
	}
}

// GetTerminalWidth returns the stdout width clamped to [60, 100].
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return minWidth
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	if width < minWidth {
		return minWidth
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
