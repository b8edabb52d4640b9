package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/clock"
)

// RunnerConfig holds configuration for a command execution
type RunnerConfig struct {
	Title     string   // Command title (e.g., "CoAP GET")
	Command   string   // Full command (e.g., "pqcoap get")
	Params    []Detail // Parameters to display in header
	StepNames []string // One per exchange stage, in order
	Verbose   bool     // Show each step as it starts
	Output    io.Writer
	Clock     clock.Clock
}

// Runner prints a header, one line per finished stage, a stage summary
// and the final report.
type Runner struct {
	config   RunnerConfig
	progress *Progress
	clock    clock.Clock
	output   io.Writer
	width    int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	width := GetTerminalWidth()

	return &Runner{
		config:   config,
		progress: NewProgress(config.StepNames, config.Clock).SetWidth(width),
		clock:    config.Clock,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the work displayed by a Runner. It reports progress through
// onStep and returns the report to render.
type Operation func(onStep StepCallback) Report

// Run prints the header, executes operation, then prints its report with a
// Duration detail appended.
func (r *Runner) Run(operation Operation) Report {
	start := r.clock.Now()

	_, _ = fmt.Fprintf(r.output, "%s\n\n", renderHeader(r.config.Title, r.config.Command, r.config.Params, r.width))

	report := operation(r.onStep)

	if len(r.progress.Steps) > 0 {
		_, _ = fmt.Fprintf(r.output, "\n%s\n", r.progress.Summary())
	}
	report.Details = append(report.Details, Detail{
		Key:   "Duration",
		Value: formatElapsed(r.clock.Since(start)),
	})
	if !r.config.Verbose && report.MaxPayloadLines == 0 {
		report.MaxPayloadLines = 40
	}
	_, _ = fmt.Fprintf(r.output, "\n%s\n", report.Render(r.width))
	return report
}

func (r *Runner) onStep(n int, name string, status StepStatus, message string) {
	if name != "" && n >= 1 && n <= len(r.progress.Steps) {
		r.progress.Steps[n-1].Name = name
	}
	if !r.progress.UpdateStep(n, status, message) {
		return
	}
	switch {
	case status.finished():
		_, _ = fmt.Fprintln(r.output, r.progress.Line(n))
	case status == StepRunning && r.config.Verbose:
		// Overwritten when the step finishes
		_, _ = fmt.Fprint(r.output, r.progress.Line(n)+"\r")
	}
}
