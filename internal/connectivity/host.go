package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrLinkNotReady is returned when no usable interface appeared in time.
var ErrLinkNotReady = errors.New("network link not ready")

const defaultPollInterval = 250 * time.Millisecond

// Interface is the view of a network interface used for readiness checks.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Addr
}

// InterfaceLister enumerates host interfaces.
type InterfaceLister func() ([]Interface, error)

// Host uses the network the host already has. Connect and Disconnect do
// nothing; readiness means an up interface with a usable unicast address.
type Host struct {
	// Interface restricts readiness to one interface. Empty accepts any
	// non-loopback interface.
	Interface string
	// AllowLoopback accepts loopback interfaces, for local targets.
	AllowLoopback bool

	list   InterfaceLister
	clock  clock.Clock
	poll   time.Duration
	logger *zap.Logger
}

// HostOption configures a Host provider.
type HostOption func(*Host)

// WithInterfaceLister replaces the system interface enumeration.
func WithInterfaceLister(l InterfaceLister) HostOption {
	return func(h *Host) { h.list = l }
}

// WithHostClock sets the clock used for polling.
func WithHostClock(c clock.Clock) HostOption {
	return func(h *Host) { h.clock = c }
}

// WithHostLogger sets the logger.
func WithHostLogger(l *zap.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

// NewHost returns a host network provider.
func NewHost(iface string, allowLoopback bool, opts ...HostOption) *Host {
	h := &Host{
		Interface:     iface,
		AllowLoopback: allowLoopback,
		list:          systemInterfaces,
		clock:         clock.New(),
		poll:          defaultPollInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Name() string {
	if h.Interface != "" {
		return "host:" + h.Interface
	}
	return "host"
}

func (h *Host) Connect(ctx context.Context) error {
	return ctx.Err()
}

func (h *Host) Disconnect(context.Context) error {
	return nil
}

// WaitUntilReady polls the interface list until a usable interface is found.
func (h *Host) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	deadline := h.clock.Now().Add(timeout)
	for {
		ready, err := h.ready()
		if err != nil {
			return err
		}
		if ready != "" {
			h.logger.Debug("Interface ready", zap.String("interface", ready))
			return nil
		}
		if !h.clock.Now().Before(deadline) {
			if h.Interface != "" {
				return fmt.Errorf("%w: interface %s has no usable address", ErrLinkNotReady, h.Interface)
			}
			return ErrLinkNotReady
		}
		select {
		case <-h.clock.After(h.poll):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Host) ready() (string, error) {
	ifaces, err := h.list()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if h.Interface != "" && iface.Name != h.Interface {
			continue
		}
		if !iface.Up || (iface.Loopback && !h.AllowLoopback) {
			continue
		}
		for _, a := range iface.Addrs {
			if a.IsGlobalUnicast() || a.IsPrivate() || (h.AllowLoopback && a.IsLoopback()) {
				return iface.Name, nil
			}
		}
	}
	return "", nil
}

func systemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		view := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		for _, a := range addrs {
			if prefix, err := netip.ParsePrefix(a.String()); err == nil {
				view.Addrs = append(view.Addrs, prefix.Addr())
			}
		}
		out = append(out, view)
	}
	return out, nil
}
