package transport

import (
	"context"
	"errors"
	"time"

	"github.com/muurk/pqcoap/internal/security"
)

// DefaultLeisure is the CoAP DEFAULT_LEISURE used when a session does not
// report its own.
const DefaultLeisure = 5 * time.Second

var (
	// ErrClosed is returned by operations on a closed context or session.
	ErrClosed = errors.New("transport closed")
	// ErrSecurityRequired is returned when a secured session is requested
	// without a security configuration.
	ErrSecurityRequired = errors.New("secured protocol requires a security configuration")
)

// Proto is the session protocol.
type Proto int

const (
	ProtoUDP Proto = iota
	ProtoTCP
	ProtoDTLS
	ProtoTLS
)

func (p Proto) String() string {
	switch p {
	case ProtoUDP:
		return "udp"
	case ProtoTCP:
		return "tcp"
	case ProtoDTLS:
		return "dtls"
	case ProtoTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Secure reports whether the protocol runs over (D)TLS.
func (p Proto) Secure() bool {
	return p == ProtoDTLS || p == ProtoTLS
}

// ResponseStatus is returned by a ResponseHandler.
type ResponseStatus int

const (
	ResponseOK ResponseStatus = iota
	ResponseFail
)

// ResponseHandler is invoked from Context.Process for every response
// delivered on a session. It must not block.
type ResponseHandler func(sent, received *Message) ResponseStatus

// SessionParams describes a client session to create.
type SessionParams struct {
	Proto    Proto
	Endpoint Endpoint
	// Security is required for secured protocols and ignored otherwise.
	Security *security.Config
	// ServerName is used for certificate verification and SNI.
	ServerName string
}

// Provider creates library contexts.
type Provider interface {
	Name() string
	NewContext(ctx context.Context) (Context, error)
}

// Context is a library context owning the I/O loop of its sessions.
type Context interface {
	NewSession(ctx context.Context, params SessionParams) (Session, error)
	// Process waits at most slice for network activity, dispatches any
	// received responses and returns the time it consumed.
	Process(slice time.Duration) (time.Duration, error)
	Close() error
}

// Session is a client session to one endpoint.
type Session interface {
	Proto() Proto
	NewMessageID() uint16
	MaxPDUSize() int
	DefaultLeisure() time.Duration
	// Send transmits req. Responses are delivered to h from Context.Process.
	Send(req *Message, h ResponseHandler) error
	Close() error
}

// KeyShareReporter is implemented by secured sessions that can report the
// key-exchange group that was applied to the handshake.
type KeyShareReporter interface {
	KeyShare() security.KeyShare
}
