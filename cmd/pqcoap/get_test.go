package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/config"
	"github.com/muurk/pqcoap/internal/exchange"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/transport"
	"github.com/muurk/pqcoap/internal/ui"
)

// resetGetFlags restores every get flag after a test sets some.
func resetGetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		getCmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestCodeString(t *testing.T) {
	tests := []struct {
		code codes.Code
		want string
	}{
		{codes.Content, "2.05 Content"},
		{codes.NotFound, "4.04 NotFound"},
		{codes.InternalServerError, "5.00 InternalServerError"},
	}
	for _, tt := range tests {
		if got := codeString(tt.code); got != tt.want {
			t.Errorf("codeString(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestHintLines(t *testing.T) {
	err := &exchange.Error{Kind: exchange.KindParse, Stage: exchange.StageParse, Message: "invalid target URI"}
	tips := hintLines(err)
	if len(tips) != 3 {
		t.Fatalf("hintLines() returned %d tips, want 3: %v", len(tips), tips)
	}
	if !strings.HasPrefix(tips[0], "Use one of coap://") {
		t.Errorf("tips[0] = %q", tips[0])
	}

	if tips := hintLines(errors.New("plain")); len(tips) != 0 {
		t.Errorf("hintLines(plain) = %v, want none", tips)
	}
}

func TestIsLoopbackTarget(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"coap://127.0.0.1/hello", true},
		{"coaps://[::1]:5684/x", true},
		{"coap://192.0.2.10/", false},
		{"coap://example.com/", false},
		{"not a uri", false},
	}
	for _, tt := range tests {
		if got := isLoopbackTarget(tt.uri); got != tt.want {
			t.Errorf("isLoopbackTarget(%q) = %v, want %v", tt.uri, got, tt.want)
		}
	}
}

func TestApplyGetFlags(t *testing.T) {
	resetGetFlags(t)

	f := getCmd.Flags()
	for name, value := range map[string]string{
		"attempts":     "7",
		"retry-delay":  "250ms",
		"network":      "wifi",
		"ssid":         "lab",
		"no-fallback":  "true",
		"no-blockwise": "true",
	} {
		if err := f.Set(name, value); err != nil {
			t.Fatalf("Set(%s) error: %v", name, err)
		}
	}

	c := config.Default()
	c.Security.Group = "P384"
	applyGetFlags(getCmd, c)

	if c.Network.Attempts != 7 {
		t.Errorf("Attempts = %d, want 7", c.Network.Attempts)
	}
	if c.Network.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 250ms", c.Network.RetryDelay)
	}
	if c.Network.Mode != config.ModeWiFi || c.Network.SSID != "lab" {
		t.Errorf("Network = %+v, want wifi/lab", c.Network)
	}
	if c.Security.Fallback {
		t.Error("Fallback should be disabled by --no-fallback")
	}
	if c.Exchange.Blockwise {
		t.Error("Blockwise should be disabled by --no-blockwise")
	}
	// Flags left unset keep file values
	if c.Security.Group != "P384" {
		t.Errorf("Group = %q, want P384", c.Security.Group)
	}
	if c.Exchange.PollSlice != exchange.DefaultPollSlice {
		t.Errorf("PollSlice = %v, want default", c.Exchange.PollSlice)
	}
}

func TestBuildSecurity_Precedence(t *testing.T) {
	resetGetFlags(t)
	t.Setenv(security.OverrideEnvVar, "")

	c := config.Default()
	c.Security.Group = "P384"

	sec, err := buildSecurity(c, "")
	if err != nil {
		t.Fatalf("buildSecurity() error: %v", err)
	}
	if sec.Selection.Group.Name != "P384" || sec.Selection.Source != security.SourceConfig {
		t.Errorf("Selection = %s/%v, want P384 from config", sec.Selection.Group.Name, sec.Selection.Source)
	}

	sec, err = buildSecurity(c, "P256")
	if err != nil {
		t.Fatalf("buildSecurity(target group) error: %v", err)
	}
	if sec.Selection.Group.Name != "P256" {
		t.Errorf("target group = %s, want P256", sec.Selection.Group.Name)
	}

	t.Setenv(security.OverrideEnvVar, "X25519:P256")
	sec, err = buildSecurity(c, "P256")
	if err != nil {
		t.Fatalf("buildSecurity(env) error: %v", err)
	}
	if sec.Selection.Group.Name != "X25519" || sec.Selection.Source != security.SourceOverride {
		t.Errorf("env selection = %s/%v, want X25519 override", sec.Selection.Group.Name, sec.Selection.Source)
	}

	if err := getCmd.Flags().Set("group", "P384"); err != nil {
		t.Fatal(err)
	}
	sec, err = buildSecurity(c, "")
	if err != nil {
		t.Fatalf("buildSecurity(flag) error: %v", err)
	}
	if sec.Selection.Group.Name != "P384" || sec.Selection.Source != security.SourceOverride {
		t.Errorf("flag selection = %s/%v, want P384 override", sec.Selection.Group.Name, sec.Selection.Source)
	}
}

func TestBuildSecurity_BadPSK(t *testing.T) {
	resetGetFlags(t)
	t.Setenv(security.OverrideEnvVar, "")

	c := config.Default()
	c.Security.PSKIdentity = "client"
	c.Security.PSK = "zz"
	if _, err := buildSecurity(c, ""); err == nil {
		t.Error("buildSecurity() should reject a non-hex psk")
	}
}

func TestBuildExchangeOptions_SecurityOnlyForSecureSchemes(t *testing.T) {
	resetGetFlags(t)
	t.Setenv(security.OverrideEnvVar, "NOT_A_GROUP")

	for _, uri := range []string{"coap://127.0.0.1/hello", "coap+tcp://127.0.0.1/hello", "not a uri"} {
		opts, err := buildExchangeOptions(config.Default(), uri, "", zap.NewNop())
		if err != nil {
			t.Errorf("buildExchangeOptions(%q) error: %v", uri, err)
			continue
		}
		if opts.Security != nil {
			t.Errorf("buildExchangeOptions(%q) Security = %+v, want nil", uri, opts.Security)
		}
	}

	if _, err := buildExchangeOptions(config.Default(), "coaps://127.0.0.1/hello", "", zap.NewNop()); err == nil {
		t.Error("buildExchangeOptions(coaps) should reject an unknown group override")
	}

	t.Setenv(security.OverrideEnvVar, "")
	opts, err := buildExchangeOptions(config.Default(), "coaps+tcp://127.0.0.1/hello", "", zap.NewNop())
	if err != nil {
		t.Fatalf("buildExchangeOptions(coaps+tcp) error: %v", err)
	}
	if opts.Security == nil {
		t.Fatal("buildExchangeOptions(coaps+tcp) Security = nil")
	}
}

func TestReportFor(t *testing.T) {
	success := &exchange.Outcome{
		Status:   exchange.StatusSuccess,
		URI:      "coap://127.0.0.1/hello",
		RunID:    "run",
		Response: &transport.Message{Code: codes.Content, Payload: []byte("Hello World!")},
		KeyShare: &security.KeyShare{
			Requested: security.Group{Name: "X25519_ML_KEM_768"},
			Applied:   security.Group{Name: "X25519"},
			FellBack:  true,
		},
	}
	r := reportFor(success)
	if r.Type != ui.ResultSuccess {
		t.Errorf("Type = %v, want success", r.Type)
	}
	if string(r.Payload) != "Hello World!" || !r.ShowPayload {
		t.Errorf("Payload = %q (show %v)", r.Payload, r.ShowPayload)
	}
	if r.Code != "2.05 Content" || r.Title != "coap://127.0.0.1/hello" {
		t.Errorf("Code, Title = %q, %q", r.Code, r.Title)
	}
	if r.KeyShare == nil || r.KeyShare.String() != "X25519 (fallback from X25519_ML_KEM_768)" {
		t.Errorf("KeyShare = %+v", r.KeyShare)
	}

	timeout := &exchange.Outcome{Status: exchange.StatusTimeout, WaitBudget: 6 * time.Second}
	if r := reportFor(timeout); r.Type != ui.ResultWarning || !strings.Contains(r.Title, "6s") {
		t.Errorf("timeout report = %v %q", r.Type, r.Title)
	}

	failure := &exchange.Outcome{
		Status: exchange.StatusTransportFailure,
		Err:    &exchange.Error{Kind: exchange.KindTransport, Stage: exchange.StageSend, Message: "send failed"},
	}
	r = reportFor(failure)
	if r.Type != ui.ResultFailure || r.Title != "Transport Failure" {
		t.Errorf("failure report = %v %q", r.Type, r.Title)
	}
	if len(r.Troubleshooting) == 0 {
		t.Error("failure report should carry troubleshooting tips")
	}
}
