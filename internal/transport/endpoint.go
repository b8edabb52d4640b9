package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
)

// Family is the address family tag of an Endpoint.
type Family int

const (
	FamilyUnspec Family = iota
	FamilyInet4
	FamilyInet6
)

// ErrAddressMismatch is returned when an Endpoint's family or structure size
// does not match the address type the provider expects.
var ErrAddressMismatch = errors.New("endpoint does not match provider address type")

func (f Family) String() string {
	switch f {
	case FamilyInet4:
		return "inet4"
	case FamilyInet6:
		return "inet6"
	default:
		return "unspec"
	}
}

// ExpectedSize returns the socket-address structure size for the family, or
// zero for an unknown family.
func ExpectedSize(f Family) int {
	switch f {
	case FamilyInet4:
		return sizeofSockaddrInet4
	case FamilyInet6:
		return sizeofSockaddrInet6
	default:
		return 0
	}
}

// Endpoint is a resolved numeric network address.
type Endpoint struct {
	Addr   netip.Addr
	Port   uint16
	Family Family
	Size   int
}

// Validate checks that the family agrees with the address and that the
// structure size is exactly the one expected for the family.
func (e Endpoint) Validate() error {
	if !e.Addr.IsValid() {
		return fmt.Errorf("%w: no address", ErrAddressMismatch)
	}
	switch e.Family {
	case FamilyInet4:
		if !e.Addr.Is4() {
			return fmt.Errorf("%w: family %s with address %s", ErrAddressMismatch, e.Family, e.Addr)
		}
	case FamilyInet6:
		if !e.Addr.Is6() {
			return fmt.Errorf("%w: family %s with address %s", ErrAddressMismatch, e.Family, e.Addr)
		}
	default:
		return fmt.Errorf("%w: unknown family %d", ErrAddressMismatch, int(e.Family))
	}
	if want := ExpectedSize(e.Family); e.Size != want {
		return fmt.Errorf("%w: structure size %d, want %d", ErrAddressMismatch, e.Size, want)
	}
	if e.Port == 0 {
		return fmt.Errorf("%w: port 0", ErrAddressMismatch)
	}
	return nil
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

// String returns host:port, bracketing IPv6 addresses.
func (e Endpoint) String() string {
	if !e.Addr.IsValid() {
		return ":" + strconv.Itoa(int(e.Port))
	}
	return e.AddrPort().String()
}
