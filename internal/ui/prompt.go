package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when a prompt needs a terminal and stdin is
// not one.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// PromptPassword prints prompt to out and reads a line from in without echo.
func PromptPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	if !IsTerminal(in) {
		return "", ErrNotTerminal
	}

	promptStyle := lipgloss.NewStyle().
		Foreground(amber).
		Bold(true)
	_, _ = fmt.Fprint(out, promptStyle.Render(prompt))

	secret, err := term.ReadPassword(int(in.Fd()))
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}
