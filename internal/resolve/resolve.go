// Package resolve converts the host of a parsed CoAP URI into a numeric
// transport endpoint.
package resolve

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/muurk/pqcoap/internal/target"
	"github.com/muurk/pqcoap/internal/transport"
)

// HostBufferSize is the size of the host buffer on the device, including the
// terminator. Hosts must be strictly shorter.
const HostBufferSize = 64

// MaxHostLength is the longest accepted host literal.
const MaxHostLength = HostBufferSize - 1

var (
	// ErrHostTooLong is returned when the host does not fit the host buffer.
	ErrHostTooLong = errors.New("host too long")
	// ErrNotNumeric is returned for hosts that are not numeric IP literals.
	ErrNotNumeric = errors.New("host is not a numeric IP address")
)

// Resolve builds the endpoint for d. Only numeric IPv4 and IPv6 literals are
// accepted; no name lookup is performed.
func Resolve(d target.Descriptor) (transport.Endpoint, error) {
	host := d.Host()
	if len(host) > MaxHostLength {
		return transport.Endpoint{}, fmt.Errorf("%w: %d bytes, limit %d", ErrHostTooLong, len(host), MaxHostLength)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return transport.Endpoint{}, fmt.Errorf("%w: %q", ErrNotNumeric, host)
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}

	ep := transport.Endpoint{
		Addr: addr,
		Port: d.Port(),
	}
	if addr.Is4() {
		ep.Family = transport.FamilyInet4
	} else {
		ep.Family = transport.FamilyInet6
	}
	ep.Size = transport.ExpectedSize(ep.Family)
	return ep, nil
}

// IsMulticast reports whether the endpoint is a multicast group address.
func IsMulticast(ep transport.Endpoint) bool {
	return ep.Addr.IsMulticast()
}
