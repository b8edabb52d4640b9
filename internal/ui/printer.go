package ui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// staticView is a tea.Model that draws its content once and quits.
type staticView string

func (v staticView) Init() tea.Cmd                       { return tea.Quit }
func (v staticView) Update(tea.Msg) (tea.Model, tea.Cmd) { return v, nil }
func (v staticView) View() string                        { return string(v) }

// RenderOnce draws content through Bubble Tea when w is a terminal and
// writes it directly otherwise.
func RenderOnce(w io.Writer, content string) error {
	if w == nil {
		w = os.Stdout
	}
	if f, ok := w.(*os.File); !ok || !IsTerminal(f) {
		_, err := fmt.Fprintln(w, content)
		return err
	}
	_, err := tea.NewProgram(staticView(content), tea.WithOutput(w), tea.WithInput(nil)).Run()
	return err
}

// Printer writes headers and reports for one-shot commands.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter returns a Printer for w, or stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// PrintHeader prints the command banner followed by a blank line.
func (p *Printer) PrintHeader(title, command string, params []Detail) {
	_, _ = fmt.Fprintf(p.out, "%s\n\n", renderHeader(title, command, params, p.width))
}

// Print prints r.
func (p *Printer) Print(r Report) {
	_, _ = fmt.Fprintln(p.out, r.Render(p.width))
}
