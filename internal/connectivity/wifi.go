package connectivity

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// WiFiConfig configures the NetworkManager provider.
type WiFiConfig struct {
	Credentials Credentials

	// Interface is the wireless device. Empty lets NetworkManager choose.
	Interface string

	// NMCLIPath is the nmcli binary.
	// Default: "nmcli" (searches PATH)
	NMCLIPath string

	// PollInterval is the readiness polling period.
	// Default: 250ms
	PollInterval time.Duration
}

// WiFi associates with a Wi-Fi network through NetworkManager's nmcli.
type WiFi struct {
	config WiFiConfig
	runner Runner
	clock  clock.Clock
	logger *zap.Logger
}

// WiFiOption configures a WiFi provider.
type WiFiOption func(*WiFi)

// WithRunner replaces command execution.
func WithRunner(r Runner) WiFiOption {
	return func(w *WiFi) { w.runner = r }
}

// WithWiFiClock sets the clock used for polling.
func WithWiFiClock(c clock.Clock) WiFiOption {
	return func(w *WiFi) { w.clock = c }
}

// WithWiFiLogger sets the logger.
func WithWiFiLogger(l *zap.Logger) WiFiOption {
	return func(w *WiFi) { w.logger = l }
}

// NewWiFi validates the credentials and returns the provider.
func NewWiFi(config WiFiConfig, opts ...WiFiOption) (*WiFi, error) {
	if err := config.Credentials.Validate(); err != nil {
		return nil, err
	}
	if config.NMCLIPath == "" {
		config.NMCLIPath = "nmcli"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	w := &WiFi{
		config: config,
		runner: execRunner{},
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *WiFi) Name() string {
	return "wifi:" + w.config.Credentials.SSID
}

// Connect requests association without waiting for activation.
func (w *WiFi) Connect(ctx context.Context) error {
	args := []string{"--wait", "0", "device", "wifi", "connect", w.config.Credentials.SSID}
	if w.config.Credentials.SecurityType() == SecurityWPA2 {
		args = append(args, "password", w.config.Credentials.Password)
	}
	if w.config.Interface != "" {
		args = append(args, "ifname", w.config.Interface)
	}

	w.logger.Info("Requesting Wi-Fi association",
		zap.String("ssid", w.config.Credentials.SSID),
		zap.String("interface", w.config.Interface))

	if _, err := w.runner.Run(ctx, w.config.NMCLIPath, args...); err != nil {
		return w.redact(err)
	}
	return nil
}

// WaitUntilReady polls device state until a Wi-Fi device is connected.
func (w *WiFi) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	deadline := w.clock.Now().Add(timeout)
	for {
		connected, err := w.connected(ctx)
		if err != nil {
			return err
		}
		if connected {
			return nil
		}
		if !w.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s not associated after %s", ErrLinkNotReady, w.config.Credentials.SSID, timeout)
		}
		select {
		case <-w.clock.After(w.config.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Disconnect takes the Wi-Fi device or connection down.
func (w *WiFi) Disconnect(ctx context.Context) error {
	var args []string
	if w.config.Interface != "" {
		args = []string{"device", "disconnect", w.config.Interface}
	} else {
		args = []string{"connection", "down", "id", w.config.Credentials.SSID}
	}
	_, err := w.runner.Run(ctx, w.config.NMCLIPath, args...)
	return err
}

// connected parses `nmcli -t -f DEVICE,TYPE,STATE device` output.
func (w *WiFi) connected(ctx context.Context) (bool, error) {
	out, err := w.runner.Run(ctx, w.config.NMCLIPath, "-t", "-f", "DEVICE,TYPE,STATE", "device")
	if err != nil {
		return false, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), ":")
		if len(fields) < 3 || fields[1] != "wifi" {
			continue
		}
		if w.config.Interface != "" && fields[0] != w.config.Interface {
			continue
		}
		if fields[2] == "connected" {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func (w *WiFi) redact(err error) error {
	if w.config.Credentials.Password == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), w.config.Credentials.Password, "********"))
}
