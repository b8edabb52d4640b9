package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/target"
)

const (
	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for service discovery
	DefaultScanTimeout = 5 * time.Second
)

// ServiceTypes maps the browsed DNS-SD service types to URI schemes.
var ServiceTypes = map[string]target.Scheme{
	"_coap._udp":  target.SchemeCoAP,
	"_coap._tcp":  target.SchemeCoAPTCP,
	"_coaps._udp": target.SchemeCoAPS,
	"_coaps._tcp": target.SchemeCoAPSTCP,
}

// ServiceTypeNames returns the browsed service types in sorted order.
func ServiceTypeNames() []string {
	names := make([]string, 0, len(ServiceTypes))
	for name := range ServiceTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BrowseFunc browses one service type until ctx ends. It must close entries
// when it returns or when ctx ends, as zeroconf.Resolver.Browse does.
type BrowseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Scanner handles mDNS service discovery
type Scanner struct {
	// Timeout is the maximum time to wait for service discovery
	Timeout time.Duration

	// Browse defaults to a zeroconf resolver on all interfaces
	Browse BrowseFunc

	Logger *zap.Logger
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Browse:  zeroconfBrowse,
		Logger:  zap.NewNop(),
	}
}

func zeroconfBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		close(entries)
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// Scan discovers CoAP services of every type in ServiceTypes until the
// timeout or ctx ends. Results are sorted by instance name then scheme.
func (s *Scanner) Scan(ctx context.Context) ([]*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		services = make(map[string]*Service)
		failures []error
	)

	for serviceType, scheme := range ServiceTypes {
		entries := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func(scheme target.Scheme) {
			defer wg.Done()
			for entry := range entries {
				svc := parseServiceEntry(entry, scheme)
				if svc == nil {
					continue
				}
				mu.Lock()
				services[scheme.String()+"|"+svc.Instance] = svc
				mu.Unlock()
				s.Logger.Debug("Discovered CoAP service",
					zap.String("instance", svc.Instance),
					zap.String("uri", svc.URI()))
			}
		}(scheme)

		if err := s.Browse(ctx, serviceType, ServiceDomain, entries); err != nil {
			s.Logger.Warn("mDNS browse failed", zap.String("service", serviceType), zap.Error(err))
			mu.Lock()
			failures = append(failures, fmt.Errorf("failed to browse for %s: %w", serviceType, err))
			mu.Unlock()
		}
	}

	<-ctx.Done()
	wg.Wait()

	if len(failures) == len(ServiceTypes) {
		return nil, failures[0]
	}

	result := make([]*Service, 0, len(services))
	for _, svc := range services {
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Instance != result[j].Instance {
			return result[i].Instance < result[j].Instance
		}
		return result[i].Scheme < result[j].Scheme
	})
	return result, nil
}

// parseServiceEntry converts a zeroconf service entry to a Service.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry, scheme target.Scheme) *Service {
	if entry == nil {
		return nil
	}

	// Prefer IPv4
	addr, ok := firstAddr(entry.AddrIPv4)
	if !ok {
		addr, ok = firstAddr(entry.AddrIPv6)
	}
	if !ok {
		return nil
	}

	port := entry.Port
	if port <= 0 || port > 65535 {
		port = int(scheme.DefaultPort())
	}

	// TXT records are in "key=value" format
	text := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			text[parts[0]] = parts[1]
		} else {
			text[parts[0]] = ""
		}
	}

	instance := entry.Instance
	if instance == "" {
		instance = entry.HostName
	}

	return &Service{
		Instance:     instance,
		Hostname:     entry.HostName,
		Addr:         addr,
		Port:         port,
		Scheme:       scheme,
		Text:         text,
		DiscoveredAt: time.Now(),
	}
}

func firstAddr(ips []net.IP) (netip.Addr, bool) {
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}
