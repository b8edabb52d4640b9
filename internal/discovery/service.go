package discovery

import (
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/muurk/pqcoap/internal/target"
)

// DefaultPath is the resource path used when a service advertises none.
const DefaultPath = "/.well-known/core"

// Service represents a discovered CoAP service on the network
type Service struct {
	// Instance is the DNS-SD instance name (e.g., "kitchen-sensor")
	Instance string

	// Hostname is the mDNS hostname (e.g., "sensor-1.local.")
	Hostname string

	// Addr is the first advertised address, IPv4 preferred
	Addr netip.Addr

	// Port is the advertised port, or the scheme default
	Port int

	// Scheme follows from the browsed service type
	Scheme target.Scheme

	// Text contains the TXT record data
	Text map[string]string

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.URI())
}

// URI returns a target URI with a numeric host, usable by the get command.
// The TXT key "path" selects the resource.
func (s *Service) URI() string {
	path := s.GetText("path")
	if path == "" {
		path = DefaultPath
	}
	if path[0] != '/' {
		path = "/" + path
	}
	host := s.Addr.String()
	if s.Addr.Is6() {
		host = "[" + host + "]"
	}
	return s.Scheme.String() + "://" + host + ":" + strconv.Itoa(s.Port) + path
}

// GetText retrieves a TXT value by key, or returns empty string if not found
func (s *Service) GetText(key string) string {
	if s.Text == nil {
		return ""
	}
	return s.Text[key]
}
