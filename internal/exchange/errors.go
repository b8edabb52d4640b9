package exchange

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/pqcoap/internal/connectivity"
	"github.com/muurk/pqcoap/internal/resolve"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/transport"
)

// Kind is the category of a run failure.
type Kind int

const (
	// KindParse indicates the URI could not be parsed.
	KindParse Kind = iota
	// KindSetup indicates a resource could not be created or configured.
	KindSetup
	// KindTransport indicates the request could not be sent or the event
	// loop failed.
	KindTransport
	// KindTimeout indicates the wait budget expired without a response.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "Parse Failure"
	case KindSetup:
		return "Setup Failure"
	case KindTransport:
		return "Transport Failure"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown Failure"
	}
}

// Stage names the step of the run that failed.
type Stage int

const (
	StageConfig Stage = iota
	StageParse
	StageConnectivity
	StageAddress
	StageContext
	StageSession
	StageRequest
	StageSend
	StageWait
)

var stageNames = [...]string{
	StageConfig:       "config",
	StageParse:        "parse",
	StageConnectivity: "connectivity",
	StageAddress:      "address",
	StageContext:      "context",
	StageSession:      "session",
	StageRequest:      "request",
	StageSend:         "send",
	StageWait:         "wait",
}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Stages returns every stage in run order.
func Stages() []Stage {
	return []Stage{StageConfig, StageParse, StageConnectivity, StageAddress, StageContext, StageSession, StageRequest, StageSend, StageWait}
}

// Error is a classified run failure.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, stage Stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

// NewConfigError reports an invalid configuration as a setup failure.
func NewConfigError(message string, err error) *Error {
	return newError(KindSetup, StageConfig, message, err)
}

func isKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsParseFailure reports whether err is a URI parse failure.
func IsParseFailure(err error) bool { return isKind(err, KindParse) }

// IsSetupFailure reports whether err is a setup failure.
func IsSetupFailure(err error) bool { return isKind(err, KindSetup) }

// IsTransportFailure reports whether err is a transport failure.
func IsTransportFailure(err error) bool { return isKind(err, KindTransport) }

// ShortMessage returns a one-line description suitable for status output.
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// TroubleshootingHint returns multi-line guidance for a run failure.
func TroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Run with --log-level debug for details."
	}

	switch {
	case e.Stage == StageParse:
		return strings.Join([]string{
			"The URI could not be parsed.",
			"Troubleshooting:",
			"  • Use one of coap://, coaps://, coap+tcp:// or coaps+tcp://",
			"  • Put IPv6 addresses in brackets, e.g. coap://[::1]/hello",
			"  • Fragments (#...) and user info are not allowed",
		}, "\n")

	case errors.Is(err, connectivity.ErrMissingCredentials):
		return strings.Join([]string{
			"Wi-Fi credentials are not configured.",
			"Troubleshooting:",
			"  • Set network.ssid and network.password in the config file",
			"  • Or export PQCOAP_WIFI_SSID and PQCOAP_WIFI_PASSWORD",
			"  • Use --network host to use the existing network instead",
		}, "\n")

	case e.Stage == StageConnectivity:
		return strings.Join([]string{
			"The network did not come up.",
			"Troubleshooting:",
			"  • Check the SSID and password",
			"  • Verify NetworkManager is running (nmcli general status)",
			"  • Increase --attempts or --retry-delay",
		}, "\n")

	case errors.Is(err, resolve.ErrHostTooLong):
		return strings.Join([]string{
			"The host does not fit the device's host buffer.",
			"Troubleshooting:",
			fmt.Sprintf("  • Hosts are limited to %d characters", resolve.MaxHostLength),
			"  • Use the numeric address of the server",
		}, "\n")

	case errors.Is(err, resolve.ErrNotNumeric):
		return strings.Join([]string{
			"Only numeric addresses are supported.",
			"Troubleshooting:",
			"  • Replace the host name with its IPv4 or IPv6 address",
			"  • Use 'pqcoap discover' to find servers on the local network",
		}, "\n")

	case errors.Is(err, security.ErrUnsupportedGroup):
		return strings.Join([]string{
			"The selected key exchange group is not available on this transport.",
			"Troubleshooting:",
			"  • Run 'pqcoap groups' to see what each transport supports",
			"  • Enable security.fallback to use the classical component",
			"  • Use coaps+tcp:// for hybrid X25519_ML_KEM_768",
		}, "\n")

	case e.Kind == KindTransport:
		return strings.Join([]string{
			"The exchange failed on the network.",
			"Troubleshooting:",
			"  • Check that the server is running and reachable",
			"  • For coaps://, check the server's DTLS configuration and PSK or certificates",
			"  • Try again with --log-level debug to see message dumps",
		}, "\n")

	case e.Stage == StageSession && errors.Is(err, transport.ErrSecurityRequired):
		return "Secured schemes need a security configuration. Check the security section of the config file."

	default:
		return "Run with --log-level debug for details."
	}
}
