package connectivity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultAttempts is the number of connect attempts.
	DefaultAttempts = 3
	// DefaultRetryDelay is the pause between failed attempts.
	DefaultRetryDelay = 2 * time.Second
	// DefaultReadyTimeout bounds WaitUntilReady per attempt.
	DefaultReadyTimeout = 30 * time.Second
	// DefaultSettleDelay is the pause after a successful connect before the
	// link is used.
	DefaultSettleDelay = time.Second
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("network connection attempts exhausted")

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateConnected
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateConnected:
		return "connected"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Policy bounds the retry loop.
type Policy struct {
	Attempts     int
	RetryDelay   time.Duration
	ReadyTimeout time.Duration
	SettleDelay  time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:     DefaultAttempts,
		RetryDelay:   DefaultRetryDelay,
		ReadyTimeout: DefaultReadyTimeout,
		SettleDelay:  DefaultSettleDelay,
	}
}

// ExhaustedError carries the attempt count and the last failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// Orchestrator runs the connect/retry loop against a Provider.
type Orchestrator struct {
	provider Provider
	policy   Policy
	clock    clock.Clock
	logger   *zap.Logger

	state        State
	attempts     int
	onTransition func(from, to State)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for retry and settle delays.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTransitionHook registers a callback for state transitions.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// NewOrchestrator creates an orchestrator in the Idle state. Non-positive
// policy values are replaced by defaults, except SettleDelay where zero
// disables settling.
func NewOrchestrator(p Provider, policy Policy, opts ...Option) *Orchestrator {
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultAttempts
	}
	if policy.RetryDelay < 0 {
		policy.RetryDelay = DefaultRetryDelay
	}
	if policy.ReadyTimeout <= 0 {
		policy.ReadyTimeout = DefaultReadyTimeout
	}
	if policy.SettleDelay < 0 {
		policy.SettleDelay = 0
	}
	o := &Orchestrator{
		provider: p,
		policy:   policy,
		clock:    clock.New(),
		logger:   zap.NewNop(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Attempts returns how many connect attempts were made.
func (o *Orchestrator) Attempts() int {
	return o.attempts
}

// Provider returns the managed provider.
func (o *Orchestrator) Provider() Provider {
	return o.provider
}

func (o *Orchestrator) transition(to State) {
	from := o.state
	o.state = to
	if o.onTransition != nil && from != to {
		o.onTransition(from, to)
	}
}

// Establish attempts to bring the link up. On success the link is
// Connected and has settled; on failure an *ExhaustedError is returned.
// Cancelling ctx ends the loop early with ctx's error as the last failure.
func (o *Orchestrator) Establish(ctx context.Context) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(o.policy.RetryDelay), uint64(o.policy.Attempts-1))
	b.Reset()

	for {
		o.attempts++
		o.transition(StateAttempting)
		o.logger.Info("Connecting to network",
			zap.String("provider", o.provider.Name()),
			zap.Int("attempt", o.attempts),
			zap.Int("max_attempts", o.policy.Attempts))

		err := o.attempt(ctx)
		if err == nil {
			o.transition(StateConnected)
			o.logger.Info("Network connected", zap.Int("attempt", o.attempts))
			return o.settle(ctx)
		}

		o.logger.Warn("Network connection attempt failed",
			zap.Int("attempt", o.attempts),
			zap.Error(err))

		delay := b.NextBackOff()
		if delay == backoff.Stop || ctx.Err() != nil {
			o.transition(StateExhausted)
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return &ExhaustedError{Attempts: o.attempts, Err: err}
		}

		if derr := o.provider.Disconnect(ctx); derr != nil {
			o.logger.Debug("Disconnect between attempts failed", zap.Error(derr))
		}

		select {
		case <-o.clock.After(delay):
		case <-ctx.Done():
			o.transition(StateExhausted)
			return &ExhaustedError{Attempts: o.attempts, Err: ctx.Err()}
		}
	}
}

func (o *Orchestrator) attempt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.provider.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := o.provider.WaitUntilReady(ctx, o.policy.ReadyTimeout); err != nil {
		return fmt.Errorf("wait for link: %w", err)
	}
	return nil
}

func (o *Orchestrator) settle(ctx context.Context) error {
	if o.policy.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-o.clock.After(o.policy.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears the link down if it was ever attempted. It is safe to
// call more than once and in any state.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	if o.state == StateIdle {
		return nil
	}
	return o.provider.Disconnect(ctx)
}
