package ui

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// Detail is one key-value line in a header or report.
type Detail struct {
	Key   string
	Value string
}

// KeyShare is the key-exchange row of a secured exchange.
type KeyShare struct {
	Requested string
	Applied   string
	FellBack  bool
}

func (k KeyShare) String() string {
	if k.FellBack {
		return k.Applied + " (fallback from " + k.Requested + ")"
	}
	return k.Applied
}

// ResultType selects the colour and label of a report.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

func (t ResultType) label() string {
	switch t {
	case ResultSuccess:
		return "OK"
	case ResultWarning:
		return "WARNING"
	default:
		return "FAILED"
	}
}

// Report is the final block printed for a command.
type Report struct {
	Type ResultType
	// Code is the dotted response code, e.g. "2.05 Content". It replaces the
	// type label and is coloured by its class.
	Code            string
	Title           string
	Details         []Detail
	KeyShare        *KeyShare
	Err             error
	Troubleshooting []string
	Payload         []byte
	ShowPayload     bool
	// MaxPayloadLines truncates the payload view; zero shows everything.
	MaxPayloadLines int
}

// Render draws the report as a left-ruled block, followed by the payload
// when ShowPayload is set.
func (r Report) Render(width int) string {
	width = clampWidth(width)

	badge := lipgloss.NewStyle().Bold(true).Foreground(tone(r.Type)).Render(r.Type.label())
	if r.Code != "" {
		badge = lipgloss.NewStyle().Bold(true).Foreground(codeColor(r.Code)).Render(r.Code)
	}
	lines := []string{badge + "  " + boldStyle.Render(r.Title), ""}

	for _, d := range r.Details {
		lines = append(lines, keyStyle.Render(d.Key)+d.Value)
	}
	if r.KeyShare != nil {
		row := keyStyle.Render("Key exchange") + boldStyle.Render(r.KeyShare.Applied)
		if r.KeyShare.FellBack {
			row += lipgloss.NewStyle().Foreground(amber).Render("  fallback from " + r.KeyShare.Requested)
		}
		lines = append(lines, row)
	}
	if r.Err != nil {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(red).Render("Error: "+r.Err.Error()))
	}
	if len(r.Troubleshooting) > 0 {
		lines = append(lines, "", mutedStyle.Bold(true).Render("Try:"))
		for _, tip := range r.Troubleshooting {
			lines = append(lines, mutedStyle.Render("  - "+tip))
		}
	}

	out := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(tone(r.Type)).
		PaddingLeft(2).
		Width(width - 3).
		Render(strings.Join(lines, "\n"))

	if r.ShowPayload && len(r.Payload) > 0 {
		out += "\n\n" + renderPayload(r.Payload, width, r.MaxPayloadLines)
	}
	return out
}

// IsPrintable reports whether payload is valid UTF-8 without control
// characters other than whitespace.
func IsPrintable(payload []byte) bool {
	if !utf8.Valid(payload) {
		return false
	}
	for _, r := range string(payload) {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// FormatPayload returns payload as text or as a hex dump.
func FormatPayload(payload []byte) string {
	if IsPrintable(payload) {
		return string(payload)
	}
	return strings.TrimRight(hex.Dump(payload), "\n")
}

// renderPayload frames the payload with its size and view. Hex dump offsets
// are muted.
func renderPayload(payload []byte, width, maxLines int) string {
	view := "text"
	if !IsPrintable(payload) {
		view = "hex"
	}
	lines := strings.Split(FormatPayload(payload), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		omitted := len(lines) - maxLines
		lines = append(lines[:maxLines], noteStyle.Render(fmt.Sprintf("... %d more line(s)", omitted)))
	}
	if view == "hex" {
		for i, line := range lines {
			if off, rest, ok := strings.Cut(line, "  "); ok && len(off) == 8 {
				lines[i] = mutedStyle.Render(off) + "  " + rest
			}
		}
	}

	title := mutedStyle.Bold(true).Render(fmt.Sprintf("Payload · %d bytes · %s", len(payload), view))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Width(width-4).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}

// renderHeader draws the command banner: title and command on one line,
// then the parameters.
func renderHeader(title, command string, params []Detail, width int) string {
	width = clampWidth(width)
	lines := []string{
		boldStyle.Foreground(accent).Render(strings.ToUpper(title)) + "  " + mutedStyle.Render(command),
	}
	for _, p := range params {
		lines = append(lines, keyStyle.Render(p.Key)+p.Value)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
}
