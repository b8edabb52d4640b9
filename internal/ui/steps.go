package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one exchange stage line.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	// StepTimedOut marks a wait that used its whole budget without a response.
	StepTimedOut
)

func (s StepStatus) finished() bool {
	return s >= StepComplete
}

func (s StepStatus) marker() string {
	switch s {
	case StepRunning:
		return "…"
	case StepComplete:
		return "✓"
	case StepFailed:
		return "✗"
	case StepTimedOut:
		return "⧗"
	default:
		return "·"
	}
}

func (s StepStatus) color() lipgloss.Color {
	switch s {
	case StepRunning:
		return accent
	case StepComplete:
		return green
	case StepFailed:
		return red
	case StepTimedOut:
		return amber
	default:
		return muted
	}
}

// Step is one stage line.
type Step struct {
	Name    string
	Status  StepStatus
	Note    string
	Started time.Time
	Elapsed time.Duration
}

// StepCallback reports a stage transition. A non-empty name relabels the
// step.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)

// Progress tracks the stage lines of one exchange and how long each took.
type Progress struct {
	Steps []Step
	clock clock.Clock
	bar   progress.Model
}

// NewProgress creates a step list named after the exchange stages.
func NewProgress(names []string, clk clock.Clock) *Progress {
	if clk == nil {
		clk = clock.New()
	}
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i].Name = name
	}
	p := &Progress{Steps: steps, clock: clk}
	return p.SetWidth(minWidth)
}

// SetWidth sizes the summary bar for a terminal of the given width.
func (p *Progress) SetWidth(width int) *Progress {
	barWidth := min(max(width-40, 16), 40)
	p.bar = progress.New(progress.WithSolidFill(string(accent)), progress.WithWidth(barWidth), progress.WithoutPercentage())
	return p
}

// UpdateStep moves step n (1-based) to status. Entering StepRunning starts
// its timer; any finished status stops it. Out of range steps are ignored
// and reported as false.
func (p *Progress) UpdateStep(n int, status StepStatus, note string) bool {
	if n < 1 || n > len(p.Steps) {
		return false
	}
	s := &p.Steps[n-1]
	now := p.clock.Now()
	switch {
	case status == StepRunning:
		s.Started = now
		s.Elapsed = 0
	case status.finished() && !s.Started.IsZero():
		s.Elapsed = now.Sub(s.Started)
	}
	s.Status = status
	s.Note = note
	return true
}

// Finished counts the steps that reached a final status.
func (p *Progress) Finished() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status.finished() {
			n++
		}
	}
	return n
}

// Line renders step n as "  3/8  Resolve address   ✓  12ms  (note)".
func (p *Progress) Line(n int) string {
	if n < 1 || n > len(p.Steps) {
		return ""
	}
	s := p.Steps[n-1]
	style := lipgloss.NewStyle().Foreground(s.Status.color())

	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d/%d  ", n, len(p.Steps))))
	b.WriteString(lipgloss.NewStyle().Width(28).Render(s.Name))
	b.WriteString(style.Render(s.Status.marker()))
	if s.Status.finished() && !s.Started.IsZero() {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %6s", formatElapsed(s.Elapsed))))
	}
	if s.Note != "" {
		note := "  (" + s.Note + ")"
		if s.Status == StepFailed || s.Status == StepTimedOut {
			b.WriteString(style.Render(note))
		} else {
			b.WriteString(noteStyle.Render(note))
		}
	}
	return b.String()
}

// Summary renders a bar of finished stages and their total time.
func (p *Progress) Summary() string {
	if len(p.Steps) == 0 {
		return ""
	}
	var total time.Duration
	for _, s := range p.Steps {
		total += s.Elapsed
	}
	done := p.Finished()
	return fmt.Sprintf("  %s  %s", p.bar.ViewAs(float64(done)/float64(len(p.Steps))),
		mutedStyle.Render(fmt.Sprintf("%d/%d stages in %s", done, len(p.Steps), formatElapsed(total))))
}

// formatElapsed prints sub-second durations in whole milliseconds and longer
// ones to the hundredth of a second.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
