package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/config"
	"github.com/muurk/pqcoap/internal/connectivity"
	"github.com/muurk/pqcoap/internal/exchange"
	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/metrics"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/target"
	"github.com/muurk/pqcoap/internal/transport"
	"github.com/muurk/pqcoap/internal/ui"
)

// Output formats
const (
	outputPayload  = "payload"
	outputDetailed = "detailed"
	outputJSON     = "json"
)

// get command flags
var (
	outputFormat string
	groupFlag    string
	variantFlag  string
	verifyPeer   bool
	noFallback   bool
	caFile       string
	certFile     string
	keyFile      string
	pskIdentity  string
	pskHex       string
	networkMode  string
	ssid         string
	askPassword  bool
	iface        string
	attempts     int
	retryDelay   time.Duration
	pollSlice    time.Duration
	leisure      time.Duration
	multicast    bool
	noBlockwise  bool
	metricsFile  string
	verbose      bool
)

var getCmd = &cobra.Command{
	Use:   "get <uri|target-name>",
	Short: "Perform one CoAP GET exchange",
	Long: `Perform exactly one CoAP GET exchange and print the response.

The run brings the network up (with bounded retries), resolves the numeric
target address, establishes a session, sends a GET and waits for the
response for the session's default leisure plus one second.

Exit status is 0 when a response arrived or the wait timed out, and 1 when
the URI was invalid or the exchange could not be set up or carried out.`,
	Example: `  # Plain CoAP over UDP
  pqcoap get coap://192.0.2.10/.well-known/core

  # DTLS with the compiled default post-quantum group
  pqcoap get coaps://[2001:db8::1]/sensors/temp

  # TLS over TCP with a hybrid group and peer verification
  pqcoap get coaps+tcp://192.0.2.10/fw --group X25519_ML_KEM_768 --verify-peer --ca ca.pem

  # Join a Wi-Fi network first
  pqcoap get coap://192.168.4.1/status --network wifi --ssid lab --ask-password

  # A target named in the config file, JSON output
  pqcoap get kitchen --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	f := getCmd.Flags()
	f.StringVarP(&outputFormat, "output", "o", outputDetailed, "Output format (payload, detailed, json)")
	f.BoolVarP(&verbose, "verbose", "v", false, "Show every step and the full payload")

	f.StringVar(&groupFlag, "group", "", "Key-exchange group (overrides PQCOAP_GROUPS and the config file)")
	f.StringVar(&variantFlag, "variant", "", "Compiled default group set (classical, pqc)")
	f.BoolVar(&verifyPeer, "verify-peer", false, "Verify the server certificate")
	f.BoolVar(&noFallback, "no-fallback", false, "Fail instead of falling back to the classical component of the group")
	f.StringVar(&caFile, "ca", "", "PEM CA bundle for --verify-peer")
	f.StringVar(&certFile, "cert", "", "PEM client certificate")
	f.StringVar(&keyFile, "key", "", "PEM client private key")
	f.StringVar(&pskIdentity, "psk-identity", "", "DTLS pre-shared key identity")
	f.StringVar(&pskHex, "psk", "", "DTLS pre-shared key, hex encoded")

	f.StringVar(&networkMode, "network", "", "Network mode (host, wifi)")
	f.StringVar(&ssid, "ssid", "", "Wi-Fi SSID for --network wifi")
	f.BoolVar(&askPassword, "ask-password", false, "Prompt for the Wi-Fi password")
	f.StringVar(&iface, "interface", "", "Network interface to use")
	f.IntVar(&attempts, "attempts", 0, "Network connect attempts")
	f.DurationVar(&retryDelay, "retry-delay", 0, "Pause between failed connect attempts")

	f.DurationVar(&pollSlice, "poll", 0, "Event-processing slice")
	f.DurationVar(&leisure, "leisure", 0, "Override the session default leisure")
	f.BoolVar(&multicast, "multicast", false, "Send non-confirmable and wait until interrupted")
	f.BoolVar(&noBlockwise, "no-blockwise", false, "Disable block-wise transfer")
	f.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	rootCmd.AddCommand(getCmd)
}

// applyGetFlags overlays explicitly set flags onto cfg.
func applyGetFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("variant") {
		c.Security.Variant = variantFlag
	}
	if f.Changed("verify-peer") {
		c.Security.VerifyPeer = verifyPeer
	}
	if f.Changed("no-fallback") {
		c.Security.Fallback = !noFallback
	}
	if f.Changed("ca") {
		c.Security.CAFile = caFile
	}
	if f.Changed("cert") {
		c.Security.CertFile = certFile
	}
	if f.Changed("key") {
		c.Security.KeyFile = keyFile
	}
	if f.Changed("psk-identity") {
		c.Security.PSKIdentity = pskIdentity
	}
	if f.Changed("psk") {
		c.Security.PSK = pskHex
	}
	if f.Changed("network") {
		c.Network.Mode = networkMode
	}
	if f.Changed("ssid") {
		c.Network.SSID = ssid
	}
	if f.Changed("interface") {
		c.Network.Interface = iface
	}
	if f.Changed("attempts") {
		c.Network.Attempts = attempts
	}
	if f.Changed("retry-delay") {
		c.Network.RetryDelay = retryDelay
	}
	if f.Changed("poll") {
		c.Exchange.PollSlice = pollSlice
	}
	if f.Changed("multicast") {
		c.Exchange.Multicast = multicast
	}
	if f.Changed("no-blockwise") {
		c.Exchange.Blockwise = !noBlockwise
	}
	if f.Changed("metrics-file") {
		c.Metrics.Textfile = metricsFile
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	switch outputFormat {
	case outputPayload, outputDetailed, outputJSON:
	default:
		return fmt.Errorf("invalid --output %q (payload, detailed, json)", outputFormat)
	}

	applyGetFlags(cmd, cfg)
	if cfg.Network.Mode == config.ModeWiFi && needsPassword(cfg) {
		pw, err := ui.PromptPassword(os.Stdin, os.Stderr, "Wi-Fi password for "+cfg.Network.SSID+": ")
		if err != nil {
			return err
		}
		cfg.Network.Password = pw
	}

	uri, targetGroup := cfg.ResolveTarget(args[0])
	logger := logging.GetLogger()

	opts, err := buildExchangeOptions(cfg, uri, targetGroup, logger)
	if err != nil {
		return reportSetupError(uri, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out *exchange.Outcome
	switch outputFormat {
	case outputDetailed:
		out = runDetailed(ctx, opts, uri)
	default:
		c, err := exchange.New(opts)
		if err != nil {
			return err
		}
		out = c.Run(ctx, uri)
		if outputFormat == outputJSON {
			if err := writeJSON(out); err != nil {
				return err
			}
		} else {
			writePayload(out)
		}
	}

	if out.CleanupErr != nil {
		logging.Warn("Resource release reported errors", zap.Error(out.CleanupErr))
	}
	if cfg.Metrics.Textfile != "" {
		if err := opts.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logging.Warn("Failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	if code := out.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// needsPassword reports whether to prompt for the Wi-Fi passphrase.
func needsPassword(c *config.Config) bool {
	if askPassword {
		return true
	}
	return c.Network.Password == "" && c.Network.WiFiSecurity != connectivity.SecurityOpen && ui.IsTerminal(os.Stdin)
}

// buildExchangeOptions turns the validated configuration into controller
// options. Every error here is a configuration problem found before any
// network activity.
func buildExchangeOptions(c *config.Config, uri, targetGroup string, logger *zap.Logger) (exchange.Options, error) {
	if err := c.Validate(); err != nil {
		return exchange.Options{}, err
	}

	// Unsecured and unparseable targets carry no security configuration;
	// the controller reports a bad URI at its parse stage.
	var sec *security.Config
	if d, err := target.Parse(uri); err == nil && d.Secure() {
		if sec, err = buildSecurity(c, targetGroup); err != nil {
			return exchange.Options{}, err
		}
	}

	link, err := buildLink(c, uri, logger)
	if err != nil {
		return exchange.Options{}, err
	}

	provider := transport.NewGoCoap(transport.GoCoapOptions{
		Blockwise:      c.Exchange.Blockwise,
		DefaultLeisure: c.Exchange.DefaultLeisure,
		Logger:         logger.Named("transport"),
	})

	return exchange.Options{
		Transport:    provider,
		Link:         link,
		Retry:        c.Policy(),
		Security:     sec,
		PollSlice:    c.Exchange.PollSlice,
		Leisure:      leisure,
		LeisureSlack: c.Exchange.LeisureSlack,
		Multicast:    c.Exchange.Multicast,
		Logger:       logger,
		Metrics:      metrics.NewCollector(),
	}, nil
}

// buildSecurity resolves the key-exchange group and loads key material.
// --group wins over PQCOAP_GROUPS, which wins over the per-target group,
// security.group and the compiled default.
func buildSecurity(c *config.Config, targetGroup string) (*security.Config, error) {
	override := groupFlag
	if override == "" {
		override = os.Getenv(security.OverrideEnvVar)
	}
	configured := targetGroup
	if configured == "" {
		configured = c.Security.Group
	}

	sel, err := security.Select(override, configured, security.Variant(c.Security.Variant).DefaultGroup())
	if err != nil {
		return nil, err
	}

	sec := &security.Config{
		Selection:   sel,
		VerifyPeer:  c.Security.VerifyPeer,
		Fallback:    c.Security.Fallback,
		PSKIdentity: c.Security.PSKIdentity,
	}
	if sec.PSK, err = c.PSKBytes(); err != nil {
		return nil, fmt.Errorf("invalid psk: %w", err)
	}
	if err := sec.LoadPKI(c.PKIFiles()); err != nil {
		return nil, err
	}
	return sec, nil
}

// buildLink returns the connectivity provider for the configured mode.
func buildLink(c *config.Config, uri string, logger *zap.Logger) (connectivity.Provider, error) {
	switch c.Network.Mode {
	case config.ModeWiFi:
		return connectivity.NewWiFi(connectivity.WiFiConfig{
			Credentials: c.Credentials(),
			Interface:   c.Network.Interface,
		}, connectivity.WithWiFiLogger(logger.Named("wifi")))
	default:
		return connectivity.NewHost(c.Network.Interface, isLoopbackTarget(uri),
			connectivity.WithHostLogger(logger.Named("host"))), nil
	}
}

// isLoopbackTarget reports whether uri names a loopback address, in which
// case the host network needs no external interface.
func isLoopbackTarget(uri string) bool {
	d, err := target.Parse(uri)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(d.Host())
	return err == nil && addr.IsLoopback()
}

// reportSetupError prints a configuration failure in the selected format.
func reportSetupError(uri string, err error) error {
	xerr := exchange.NewConfigError("invalid configuration", err)
	out := &exchange.Outcome{Status: exchange.StatusSetupFailure, URI: uri, Err: xerr}

	switch outputFormat {
	case outputJSON:
		if werr := writeJSON(out); werr != nil {
			return werr
		}
	case outputDetailed:
		tips := []string{"Check the config file with 'pqcoap config validate'"}
		if len(multierr.Errors(err)) > 1 {
			fmt.Fprint(os.Stderr, config.FormatValidationErrors(err))
		}
		ui.NewPrinter(os.Stderr).Print(ui.Report{
			Type:            ui.ResultFailure,
			Title:           "Setup Failure",
			Err:             err,
			Troubleshooting: append(tips, hintLines(xerr)...),
		})
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", exchange.ShortMessage(xerr))
		fmt.Fprintln(os.Stderr, err)
	}
	return &exitError{code: out.ExitCode()}
}

// stepNames label the progress lines, in controller stage order.
var stepNames = map[exchange.Stage]string{
	exchange.StageParse:        "Parse target URI",
	exchange.StageConnectivity: "Bring up network",
	exchange.StageAddress:      "Resolve address",
	exchange.StageContext:      "Create CoAP context",
	exchange.StageSession:      "Establish session",
	exchange.StageRequest:      "Build request",
	exchange.StageSend:         "Send request",
	exchange.StageWait:         "Wait for response",
}

// runDetailed runs the exchange under the styled runner, mapping controller
// stages onto progress steps.
func runDetailed(ctx context.Context, opts exchange.Options, uri string) *exchange.Outcome {
	var names []string
	stepOf := make(map[exchange.Stage]int)
	for _, s := range exchange.Stages() {
		if name, ok := stepNames[s]; ok {
			names = append(names, name)
			stepOf[s] = len(names)
		}
	}

	params := []ui.Detail{{Key: "Target", Value: uri}, {Key: "Network", Value: cfg.Network.Mode}}
	if d, err := target.Parse(uri); err == nil && d.Secure() {
		params = append(params, ui.Detail{Key: "Group", Value: opts.Security.Selection.Group.Name + " (" + opts.Security.Selection.Source.String() + ")"})
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "CoAP GET",
		Command:   "pqcoap get",
		Params:    params,
		StepNames: names,
		Verbose:   verbose,
		Output:    os.Stdout,
	})

	var out *exchange.Outcome
	runner.Run(func(onStep ui.StepCallback) ui.Report {
		opts.Hooks = exchange.Hooks{
			StageStarted: func(s exchange.Stage) {
				onStep(stepOf[s], "", ui.StepRunning, "")
			},
			StageFinished: func(s exchange.Stage, err error) {
				switch {
				case err != nil:
					onStep(stepOf[s], "", ui.StepFailed, exchange.ShortMessage(err))
				case s != exchange.StageWait:
					onStep(stepOf[s], "", ui.StepComplete, "")
				}
			},
		}

		c, err := exchange.New(opts)
		if err != nil {
			out = &exchange.Outcome{
				Status: exchange.StatusSetupFailure,
				URI:    uri,
				Err:    exchange.NewConfigError("invalid exchange options", err),
			}
		} else {
			out = c.Run(ctx, uri)
		}

		// The wait stage ends without error on both a response and an
		// expired budget; only the outcome tells them apart.
		switch out.Status {
		case exchange.StatusSuccess:
			onStep(stepOf[exchange.StageWait], "", ui.StepComplete, codeString(out.Code()))
		case exchange.StatusTimeout:
			onStep(stepOf[exchange.StageWait], "", ui.StepTimedOut, "no response in "+out.WaitBudget.String())
		}
		return reportFor(out)
	})
	return out
}

// reportFor converts an outcome into a result block.
func reportFor(out *exchange.Outcome) ui.Report {
	r := ui.Report{Details: []ui.Detail{{Key: "Run ID", Value: out.RunID}}}
	if out.ConnectAttempts > 0 {
		r.Details = append(r.Details, ui.Detail{Key: "Connect tries", Value: fmt.Sprint(out.ConnectAttempts)})
	}
	if out.KeyShare != nil {
		r.KeyShare = &ui.KeyShare{
			Requested: out.KeyShare.Requested.Name,
			Applied:   out.KeyShare.AppliedName(),
			FellBack:  out.KeyShare.FellBack,
		}
	}
	if out.WaitBudget > 0 {
		r.Details = append(r.Details, ui.Detail{Key: "Wait budget", Value: out.WaitBudget.String()})
	}

	switch out.Status {
	case exchange.StatusSuccess:
		r.Type = ui.ResultSuccess
		r.Code = codeString(out.Code())
		r.Title = out.URI
		if out.Responses > 1 {
			r.Details = append(r.Details, ui.Detail{Key: "Responses", Value: fmt.Sprint(out.Responses)})
		}
		r.Payload = out.Payload()
		r.ShowPayload = true
	case exchange.StatusTimeout:
		r.Type = ui.ResultWarning
		r.Title = "No response within " + out.WaitBudget.String()
	default:
		r.Type = ui.ResultFailure
		r.Title = out.Err.Kind.String()
		r.Err = out.Err
		r.Troubleshooting = hintLines(out.Err)
	}
	return r
}

// hintLines extracts the bullet points of a troubleshooting hint.
func hintLines(err error) []string {
	var tips []string
	for _, line := range strings.Split(exchange.TroubleshootingHint(err), "\n") {
		if tip, ok := strings.CutPrefix(line, "  • "); ok {
			tips = append(tips, tip)
		}
	}
	return tips
}

// codeString formats a response code in dotted class.detail form.
func codeString(c codes.Code) string {
	return fmt.Sprintf("%d.%02d %s", uint8(c)>>5, uint8(c)&0x1f, c)
}

// writePayload writes the raw payload to stdout and failures to stderr.
func writePayload(out *exchange.Outcome) {
	switch out.Status {
	case exchange.StatusSuccess:
		_, _ = os.Stdout.Write(out.Payload())
	case exchange.StatusTimeout:
		fmt.Fprintf(os.Stderr, "No response within %s\n", out.WaitBudget)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", exchange.ShortMessage(out.Err))
		fmt.Fprintln(os.Stderr, exchange.TroubleshootingHint(out.Err))
	}
}

// jsonOutcome is the --output json document.
type jsonOutcome struct {
	Status          string `json:"status"`
	RunID           string `json:"run_id,omitempty"`
	URI             string `json:"uri"`
	Scheme          string `json:"scheme,omitempty"`
	Code            string `json:"code,omitempty"`
	Payload         string `json:"payload,omitempty"`
	PayloadEncoding string `json:"payload_encoding,omitempty"`
	Responses       int    `json:"responses"`
	ConnectAttempts int    `json:"connect_attempts,omitempty"`
	WaitBudgetMS    int64  `json:"wait_budget_ms,omitempty"`
	ElapsedMS       int64  `json:"elapsed_ms"`
	KeyExchange     string `json:"key_exchange,omitempty"`
	FellBack        bool   `json:"key_exchange_fallback,omitempty"`
	ErrorKind       string `json:"error_kind,omitempty"`
	ErrorStage      string `json:"error_stage,omitempty"`
	Error           string `json:"error,omitempty"`
}

func writeJSON(out *exchange.Outcome) error {
	doc := jsonOutcome{
		Status:          out.Status.String(),
		RunID:           out.RunID,
		URI:             out.URI,
		Scheme:          out.Scheme,
		Responses:       out.Responses,
		ConnectAttempts: out.ConnectAttempts,
		WaitBudgetMS:    out.WaitBudget.Milliseconds(),
		ElapsedMS:       out.Elapsed.Milliseconds(),
	}
	if out.Response != nil {
		doc.Code = codeString(out.Code())
		if payload := out.Payload(); ui.IsPrintable(payload) {
			doc.Payload = string(payload)
		} else {
			doc.Payload = fmt.Sprintf("%x", payload)
			doc.PayloadEncoding = "hex"
		}
	}
	if out.KeyShare != nil {
		doc.KeyExchange = out.KeyShare.AppliedName()
		doc.FellBack = out.KeyShare.FellBack
	}
	if out.Err != nil {
		doc.ErrorKind = out.Err.Kind.String()
		doc.ErrorStage = out.Err.Stage.String()
		doc.Error = out.Err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
