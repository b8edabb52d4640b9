package exchange

import (
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/transport"
)

// Status is the terminal status of a run.
type Status int

const (
	StatusSuccess Status = iota
	StatusTimeout
	StatusTransportFailure
	StatusSetupFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusTransportFailure:
		return "transport_failure"
	case StatusSetupFailure:
		return "setup_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one run.
type Outcome struct {
	Status Status
	RunID  string
	URI    string
	Scheme string

	// Response is the first response delivered, nil unless Status is
	// StatusSuccess.
	Response *transport.Message
	// Responses counts every delivered response, including duplicates and
	// additional multicast replies.
	Responses int

	// Err is set for every status except StatusSuccess.
	Err *Error

	ConnectAttempts int
	WaitBudget      time.Duration
	Elapsed         time.Duration
	KeyShare        *security.KeyShare

	// CleanupErr aggregates failures releasing resources. It never changes
	// Status.
	CleanupErr error
}

// Payload returns the response payload, or nil.
func (o *Outcome) Payload() []byte {
	if o.Response == nil {
		return nil
	}
	return o.Response.Payload
}

// Code returns the response code, or codes.Empty.
func (o *Outcome) Code() codes.Code {
	if o.Response == nil {
		return codes.Empty
	}
	return o.Response.Code
}

// ExitCode maps the status to a process exit code. Success and Timeout exit
// cleanly; setup and transport failures do not.
func (o *Outcome) ExitCode() int {
	switch o.Status {
	case StatusSuccess, StatusTimeout:
		return 0
	default:
		return 1
	}
}

func statusFor(kind Kind) Status {
	switch kind {
	case KindTimeout:
		return StatusTimeout
	case KindTransport:
		return StatusTransportFailure
	default:
		return StatusSetupFailure
	}
}
