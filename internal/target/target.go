package target

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme identifies the CoAP transport binding requested by a URI.
type Scheme int

const (
	SchemeCoAP Scheme = iota
	SchemeCoAPTCP
	SchemeCoAPS
	SchemeCoAPSTCP
)

const (
	// DefaultPort is the IANA port for unsecured CoAP.
	DefaultPort = 5683

	// DefaultSecurePort is the IANA port for CoAP over (D)TLS.
	DefaultSecurePort = 5684
)

// ErrInvalidURI is wrapped by every parse failure.
var ErrInvalidURI = errors.New("invalid target uri")

var schemeNames = map[string]Scheme{
	"coap":      SchemeCoAP,
	"coap+tcp":  SchemeCoAPTCP,
	"coaps":     SchemeCoAPS,
	"coaps+tcp": SchemeCoAPSTCP,
}

// String returns the URI scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeCoAP:
		return "coap"
	case SchemeCoAPTCP:
		return "coap+tcp"
	case SchemeCoAPS:
		return "coaps"
	case SchemeCoAPSTCP:
		return "coaps+tcp"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// Secure reports whether the scheme requires a (D)TLS session.
func (s Scheme) Secure() bool {
	return s == SchemeCoAPS || s == SchemeCoAPSTCP
}

// Stream reports whether the scheme is carried over a stream transport.
func (s Scheme) Stream() bool {
	return s == SchemeCoAPTCP || s == SchemeCoAPSTCP
}

// DefaultPort returns the protocol-standard port for the scheme.
func (s Scheme) DefaultPort() uint16 {
	if s.Secure() {
		return DefaultSecurePort
	}
	return DefaultPort
}

// Descriptor is a parsed target URI.
type Descriptor struct {
	raw      string
	scheme   Scheme
	host     string
	port     uint16
	explicit bool
	path     string
	rawPath  string
	query    string
}

// Parse splits a CoAP URI into a Descriptor. Fragments, user info and
// unknown schemes are rejected.
func Parse(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, fmt.Errorf("%w: empty uri", ErrInvalidURI)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	scheme, ok := schemeNames[strings.ToLower(u.Scheme)]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if u.Opaque != "" {
		return Descriptor{}, fmt.Errorf("%w: missing authority", ErrInvalidURI)
	}
	if u.User != nil {
		return Descriptor{}, fmt.Errorf("%w: user info is not allowed", ErrInvalidURI)
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		return Descriptor{}, fmt.Errorf("%w: fragments are not allowed", ErrInvalidURI)
	}

	host := u.Hostname()
	if host == "" {
		return Descriptor{}, fmt.Errorf("%w: missing host", ErrInvalidURI)
	}

	d := Descriptor{
		raw:     raw,
		scheme:  scheme,
		host:    host,
		port:    scheme.DefaultPort(),
		path:    u.Path,
		rawPath: u.EscapedPath(),
		query:   u.RawQuery,
	}

	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil || port == 0 {
			return Descriptor{}, fmt.Errorf("%w: invalid port %q", ErrInvalidURI, p)
		}
		d.port = uint16(port)
		d.explicit = true
	}

	return d, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// compiled-in defaults.
func MustParse(raw string) Descriptor {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Descriptor) Scheme() Scheme { return d.scheme }
func (d Descriptor) Host() string   { return d.host }
func (d Descriptor) Port() uint16   { return d.port }
func (d Descriptor) Path() string   { return d.path }
func (d Descriptor) Query() string  { return d.query }
func (d Descriptor) Secure() bool   { return d.scheme.Secure() }

// ExplicitPort reports whether the URI carried a port.
func (d Descriptor) ExplicitPort() bool { return d.explicit }

// PathSegments returns the decoded path segments in order. An empty path or
// "/" has none; empty segments elsewhere ("//", a trailing "/") are kept and
// become empty Uri-Path options.
func (d Descriptor) PathSegments() []string {
	p := strings.TrimPrefix(d.rawPath, "/")
	if p == "" {
		return nil
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		if decoded, err := url.PathUnescape(s); err == nil {
			segments[i] = decoded
		}
	}
	return segments
}

// QuerySegments returns the raw query split on '&', each percent-decoded.
// A '+' is kept literally; CoAP has no form encoding.
func (d Descriptor) QuerySegments() []string {
	if d.query == "" {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(d.query, "&") {
		if s == "" {
			continue
		}
		if decoded, err := url.PathUnescape(s); err == nil {
			s = decoded
		}
		segments = append(segments, s)
	}
	return segments
}

// String returns the URI as given to Parse.
func (d Descriptor) String() string { return d.raw }
