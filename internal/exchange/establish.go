package exchange

import (
	"context"

	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/target"
	"github.com/muurk/pqcoap/internal/transport"
)

// protoFor maps a URI scheme to the session protocol.
func protoFor(s target.Scheme) transport.Proto {
	switch s {
	case target.SchemeCoAPTCP:
		return transport.ProtoTCP
	case target.SchemeCoAPS:
		return transport.ProtoDTLS
	case target.SchemeCoAPSTCP:
		return transport.ProtoTLS
	default:
		return transport.ProtoUDP
	}
}

// establishSession creates the single client session of a run. Secured
// schemes require a security configuration; unsecured schemes ignore it.
func (c *Controller) establishSession(ctx context.Context, library transport.Context, d target.Descriptor, ep transport.Endpoint) (transport.Session, *Error) {
	params := transport.SessionParams{
		Proto:    protoFor(d.Scheme()),
		Endpoint: ep,
	}
	if params.Proto.Secure() {
		if c.opts.Security == nil {
			return nil, newError(KindSetup, StageSession, "secured scheme without security configuration", transport.ErrSecurityRequired)
		}
		// Sessions get their own copy; the controller's configuration stays
		// untouched by anything the transport does.
		cfg := *c.opts.Security
		params.Security = &cfg
	}

	sess, err := library.NewSession(ctx, params)
	if err != nil {
		return nil, newError(KindSetup, StageSession, "failed to create "+params.Proto.String()+" session", err)
	}
	return sess, nil
}

// keyShareOf returns the key share a secured session applied, if reported.
func keyShareOf(sess transport.Session) *security.KeyShare {
	r, ok := sess.(transport.KeyShareReporter)
	if !ok || !sess.Proto().Secure() {
		return nil
	}
	share := r.KeyShare()
	return &share
}
