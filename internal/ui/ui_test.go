package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/lipgloss"
)

func TestProgressTiming(t *testing.T) {
	mock := clock.NewMock()
	p := NewProgress([]string{"Resolve address", "Wait for response", "Close"}, mock)

	p.UpdateStep(1, StepRunning, "")
	mock.Add(250 * time.Millisecond)
	p.UpdateStep(1, StepComplete, "")

	p.UpdateStep(2, StepRunning, "")
	mock.Add(2340 * time.Millisecond)
	p.UpdateStep(2, StepTimedOut, "no response in 6s")

	tests := []struct {
		step int
		want []string
	}{
		{1, []string{"1/3", "Resolve address", "✓", "250ms"}},
		{2, []string{"2/3", "⧗", "2.34s", "(no response in 6s)"}},
		{3, []string{"3/3", "Close", "·"}},
	}
	for _, tt := range tests {
		line := p.Line(tt.step)
		for _, w := range tt.want {
			if !strings.Contains(line, w) {
				t.Errorf("Line(%d) = %q, missing %q", tt.step, line, w)
			}
		}
	}
	if strings.Contains(p.Line(3), "ms") {
		t.Errorf("pending step should have no timing: %q", p.Line(3))
	}

	if got := p.Finished(); got != 2 {
		t.Errorf("Finished() = %d, want 2", got)
	}
	if !strings.Contains(p.Summary(), "2/3 stages in 2.59s") {
		t.Errorf("Summary() = %q", p.Summary())
	}

	if p.UpdateStep(0, StepComplete, "") || p.UpdateStep(4, StepComplete, "") {
		t.Error("UpdateStep() accepted an out of range step")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "<1ms"},
		{999 * time.Microsecond, "<1ms"},
		{12 * time.Millisecond, "12ms"},
		{1500 * time.Millisecond, "1.5s"},
		{6004 * time.Millisecond, "6s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestCodeColor(t *testing.T) {
	tests := []struct {
		code string
		want lipgloss.Color
	}{
		{"2.05 Content", green},
		{"4.04 NotFound", amber},
		{"5.03 ServiceUnavailable", red},
		{"7.01 CSM", muted},
		{"", muted},
	}
	for _, tt := range tests {
		if got := codeColor(tt.code); got != tt.want {
			t.Errorf("codeColor(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestReportRender(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   []string
	}{
		{
			name: "response with key share",
			report: Report{
				Type:     ResultSuccess,
				Code:     "2.05 Content",
				Title:    "coap://10.0.0.1/x",
				Details:  []Detail{{Key: "Run ID", Value: "abc"}},
				KeyShare: &KeyShare{Requested: "X25519_ML_KEM_768", Applied: "X25519", FellBack: true},
			},
			want: []string{"2.05 Content", "coap://10.0.0.1/x", "Run ID", "Key exchange", "X25519", "fallback from X25519_ML_KEM_768"},
		},
		{
			name: "failure with troubleshooting",
			report: Report{
				Type:            ResultFailure,
				Title:           "Setup Failure",
				Err:             errors.New("host too long"),
				Troubleshooting: []string{"Use a numeric address"},
			},
			want: []string{"FAILED", "Setup Failure", "Error: host too long", "Try:", "- Use a numeric address"},
		},
		{
			name:   "warning",
			report: Report{Type: ResultWarning, Title: "No response", Details: []Detail{{Key: "Budget", Value: "6s"}}},
			want:   []string{"WARNING", "No response", "Budget"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.report.Render(80)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q in:\n%s", w, out)
				}
			}
		})
	}

	out := Report{Details: []Detail{{Key: "First", Value: "1"}, {Key: "Second", Value: "2"}}}.Render(80)
	if strings.Index(out, "First") > strings.Index(out, "Second") {
		t.Error("details should render in insertion order")
	}
	if strings.Contains(out, "Key exchange") {
		t.Error("unsecured report should have no key exchange row")
	}
}

func TestFormatPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"text", []byte("22.5 C\n"), "22.5 C\n"},
		{"empty", nil, ""},
		{"binary", []byte{0x00, 0x01, 0xff}, "00000000  00 01 ff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPayload(tt.payload)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("FormatPayload() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestReportPayloadView(t *testing.T) {
	text := Report{Payload: []byte(strings.Repeat("line\n", 10)), ShowPayload: true, MaxPayloadLines: 3}.Render(80)
	for _, w := range []string{"Payload · 50 bytes · text", "more line(s)"} {
		if !strings.Contains(text, w) {
			t.Errorf("text payload missing %q:\n%s", w, text)
		}
	}

	bin := Report{Payload: []byte{0xde, 0xad, 0xbe, 0xef}, ShowPayload: true}.Render(80)
	for _, w := range []string{"Payload · 4 bytes · hex", "00000000", "de ad be ef"} {
		if !strings.Contains(bin, w) {
			t.Errorf("hex payload missing %q:\n%s", w, bin)
		}
	}

	if hidden := (Report{Payload: []byte("x")}).Render(80); strings.Contains(hidden, "Payload ·") {
		t.Error("payload shown without ShowPayload")
	}
}

func TestRunnerRun(t *testing.T) {
	var buf bytes.Buffer
	mock := clock.NewMock()
	runner := NewRunner(RunnerConfig{
		Title:     "CoAP GET",
		Command:   "pqcoap get",
		Params:    []Detail{{Key: "Target", Value: "coap://10.0.0.1/x"}},
		StepNames: []string{"Parse target", "Send request"},
		Output:    &buf,
		Clock:     mock,
	})

	report := runner.Run(func(onStep StepCallback) Report {
		onStep(1, "", StepRunning, "")
		mock.Add(5 * time.Millisecond)
		onStep(1, "", StepComplete, "")
		onStep(2, "Send GET", StepComplete, "mid 42")
		onStep(9, "", StepComplete, "")
		return Report{
			Type:        ResultSuccess,
			Code:        "2.05 Content",
			Title:       "coap://10.0.0.1/x",
			Payload:     []byte("hello"),
			ShowPayload: true,
		}
	})

	out := buf.String()
	for _, want := range []string{"COAP GET", "pqcoap get", "Target", "Parse target", "5ms", "Send GET", "(mid 42)", "2/2 stages", "2.05 Content", "Duration", "hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	last := report.Details[len(report.Details)-1]
	if last.Key != "Duration" || last.Value != "5ms" {
		t.Errorf("last detail = %+v, want Duration 5ms", last)
	}
	if report.MaxPayloadLines != 40 {
		t.Errorf("MaxPayloadLines = %d, want 40 without verbose", report.MaxPayloadLines)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintHeader("CoAP Service Discovery", "pqcoap discover", []Detail{{Key: "Timeout", Value: "5s"}})
	p.Print(Report{Type: ResultWarning, Title: "No services found", Troubleshooting: []string{"Try increasing --timeout"}})

	out := buf.String()
	for _, want := range []string{"COAP SERVICE DISCOVERY", "Timeout", "5s", "WARNING", "No services found", "Try increasing --timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderOnceNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderOnce(&buf, "table"); err != nil {
		t.Fatalf("RenderOnce() error = %v", err)
	}
	if buf.String() != "table\n" {
		t.Errorf("RenderOnce() wrote %q, want %q", buf.String(), "table\n")
	}
}
