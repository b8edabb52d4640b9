package connectivity

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func staticInterfaces(ifaces ...Interface) InterfaceLister {
	return func() ([]Interface, error) { return ifaces, nil }
}

func TestHostReady(t *testing.T) {
	lo := Interface{Name: "lo", Up: true, Loopback: true, Addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1")}}
	eth := Interface{Name: "eth0", Up: true, Addrs: []netip.Addr{netip.MustParseAddr("192.168.1.20")}}
	down := Interface{Name: "wlan0", Up: false, Addrs: []netip.Addr{netip.MustParseAddr("10.0.0.5")}}
	linkLocal := Interface{Name: "eth1", Up: true, Addrs: []netip.Addr{netip.MustParseAddr("fe80::1")}}

	tests := []struct {
		name          string
		iface         string
		allowLoopback bool
		ifaces        []Interface
		wantReady     bool
	}{
		{"any interface", "", false, []Interface{lo, eth}, true},
		{"loopback only", "", false, []Interface{lo}, false},
		{"loopback allowed", "", true, []Interface{lo}, true},
		{"named down", "wlan0", false, []Interface{eth, down}, false},
		{"named up", "eth0", false, []Interface{eth, down}, true},
		{"link local only", "", false, []Interface{linkLocal}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHost(tt.iface, tt.allowLoopback, WithInterfaceLister(staticInterfaces(tt.ifaces...)))
			name, err := h.ready()
			if err != nil {
				t.Fatalf("ready() error: %v", err)
			}
			if (name != "") != tt.wantReady {
				t.Errorf("ready() = %q, want ready %v", name, tt.wantReady)
			}
		})
	}
}

func TestHostWaitUntilReady_Timeout(t *testing.T) {
	mock := clock.NewMock()
	h := NewHost("", false,
		WithInterfaceLister(staticInterfaces()),
		WithHostClock(mock))

	done := make(chan error, 1)
	go func() { done <- h.WaitUntilReady(context.Background(), time.Second) }()

	for {
		select {
		case err := <-done:
			if !errors.Is(err, ErrLinkNotReady) {
				t.Fatalf("WaitUntilReady() error = %v, want ErrLinkNotReady", err)
			}
			return
		default:
			mock.Add(defaultPollInterval)
		}
	}
}

func TestHostListError(t *testing.T) {
	h := NewHost("", false, WithInterfaceLister(func() ([]Interface, error) {
		return nil, errors.New("netlink unavailable")
	}))
	if err := h.WaitUntilReady(context.Background(), time.Second); err == nil {
		t.Error("WaitUntilReady() should fail when interfaces cannot be listed")
	}
}
