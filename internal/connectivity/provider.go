package connectivity

import (
	"context"
	"time"
)

// Provider manages a network link.
type Provider interface {
	Name() string
	// Connect initiates the link. It may return before the link is usable.
	Connect(ctx context.Context) error
	// WaitUntilReady blocks until the link is usable or timeout elapses.
	WaitUntilReady(ctx context.Context, timeout time.Duration) error
	// Disconnect tears the link down. It is safe to call when not connected.
	Disconnect(ctx context.Context) error
}
