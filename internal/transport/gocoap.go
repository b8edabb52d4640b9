package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/net/blockwise"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/tcp"
	"github.com/plgd-dev/go-coap/v3/udp"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/security"
)

const (
	// DefaultMaxPDUSize matches the default CoAP MTU of constrained stacks.
	DefaultMaxPDUSize = 1152
	// DefaultBlockwiseTimeout bounds a whole blockwise transfer.
	DefaultBlockwiseTimeout = 30 * time.Second

	eventQueueSize = 8
)

// GoCoapOptions configures the go-coap provider.
type GoCoapOptions struct {
	// Blockwise enables transparent Block2 reassembly into a single body.
	Blockwise        bool
	BlockwiseTimeout time.Duration
	DefaultLeisure   time.Duration
	MaxPDUSize       int
	Clock            clock.Clock
	Logger           *zap.Logger
}

// coapConn is the subset of the go-coap client connections used here.
type coapConn interface {
	AcquireMessage(ctx context.Context) *pool.Message
	ReleaseMessage(m *pool.Message)
	Do(req *pool.Message) (*pool.Message, error)
	Close() error
}

type dialFunc func(ctx context.Context, params SessionParams) (coapConn, security.KeyShare, error)

// GoCoap is a Provider backed by github.com/plgd-dev/go-coap/v3.
type GoCoap struct {
	opts GoCoapOptions
	dial dialFunc
}

// NewGoCoap returns a go-coap provider with defaults applied.
func NewGoCoap(opts GoCoapOptions) *GoCoap {
	if opts.BlockwiseTimeout <= 0 {
		opts.BlockwiseTimeout = DefaultBlockwiseTimeout
	}
	if opts.DefaultLeisure <= 0 {
		opts.DefaultLeisure = DefaultLeisure
	}
	if opts.MaxPDUSize <= 0 {
		opts.MaxPDUSize = DefaultMaxPDUSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &GoCoap{opts: opts}
	p.dial = p.dialConn
	return p
}

// Name identifies the backend in logs and the groups report.
func (p *GoCoap) Name() string {
	return "go-coap/v3"
}

// NewContext creates a library context.
func (p *GoCoap) NewContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &coapContext{
		provider: p,
		events:   make(chan event, eventQueueSize),
		clock:    p.opts.Clock,
		logger:   p.opts.Logger,
	}, nil
}

func (p *GoCoap) dialConn(ctx context.Context, params SessionParams) (coapConn, security.KeyShare, error) {
	addr := params.Endpoint.String()
	bw := options.WithBlockwise(p.opts.Blockwise, blockwise.SZX1024, p.opts.BlockwiseTimeout)
	withCtx := options.WithContext(ctx)

	switch params.Proto {
	case ProtoUDP:
		conn, err := udp.Dial(addr, withCtx, bw)
		if err != nil {
			return nil, security.KeyShare{}, err
		}
		return conn, security.KeyShare{}, nil

	case ProtoTCP:
		conn, err := tcp.Dial(addr, withCtx, bw)
		if err != nil {
			return nil, security.KeyShare{}, err
		}
		return conn, security.KeyShare{}, nil

	case ProtoDTLS:
		cfg, share, err := params.Security.DTLSConfig(params.ServerName, logging.NewPionLoggerFactory(p.opts.Logger))
		if err != nil {
			return nil, share, err
		}
		logging.LogHandshake(p.opts.Logger, "dtls", addr, share.Applied.Name, share.FellBack)
		conn, err := dtls.Dial(addr, cfg, withCtx, bw)
		if err != nil {
			return nil, share, err
		}
		return conn, share, nil

	case ProtoTLS:
		cfg, share, err := params.Security.TLSConfig(params.ServerName)
		if err != nil {
			return nil, share, err
		}
		logging.LogHandshake(p.opts.Logger, "tls", addr, share.Applied.Name, share.FellBack)
		conn, err := tcp.Dial(addr, withCtx, bw, options.WithTLS(cfg))
		if err != nil {
			return nil, share, err
		}
		return conn, share, nil
	}
	return nil, security.KeyShare{}, fmt.Errorf("unsupported protocol %s", params.Proto)
}

type event struct {
	sent    *Message
	resp    *Message
	err     error
	handler ResponseHandler
}

type coapContext struct {
	provider *GoCoap
	events   chan event
	clock    clock.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	closed   bool
	sessions []*coapSession
}

func (c *coapContext) NewSession(ctx context.Context, params SessionParams) (Session, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if err := params.Endpoint.Validate(); err != nil {
		return nil, err
	}
	if params.Proto.Secure() && params.Security == nil {
		return nil, ErrSecurityRequired
	}
	if params.ServerName == "" {
		params.ServerName = params.Endpoint.Addr.String()
	}

	conn, share, err := c.provider.dial(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", params.Proto, params.Endpoint, err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &coapSession{
		owner:    c,
		conn:     conn,
		proto:    params.Proto,
		endpoint: params.Endpoint,
		share:    share,
		ctx:      sctx,
		cancel:   cancel,
	}

	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()

	c.logger.Debug("Session created",
		zap.String("proto", params.Proto.String()),
		zap.String("endpoint", params.Endpoint.String()))
	return s, nil
}

func (c *coapContext) Process(slice time.Duration) (time.Duration, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	start := c.clock.Now()
	timer := c.clock.Timer(slice)
	defer timer.Stop()

	select {
	case ev := <-c.events:
		if ev.err != nil {
			return c.clock.Since(start), ev.err
		}
		logging.LogMessage(c.logger, "recv", ev.resp.Code.String(), ev.resp.MessageID, ev.resp.Token, ev.resp.Payload)
		if ev.handler != nil && ev.handler(ev.sent, ev.resp) != ResponseOK {
			c.logger.Warn("Response handler rejected message", zap.Uint16("mid", ev.resp.MessageID))
		}
	case <-timer.C:
	}
	return c.clock.Since(start), nil
}

// Close closes any sessions still open and the context itself.
func (c *coapContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := c.sessions
	c.sessions = nil
	c.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *coapContext) deliver(ev event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("Dropping transport event, queue full")
	}
}

type coapSession struct {
	owner    *coapContext
	conn     coapConn
	proto    Proto
	endpoint Endpoint
	share    security.KeyShare

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

func (s *coapSession) Proto() Proto {
	return s.proto
}

// NewMessageID returns a fresh message ID; stream transports carry none.
func (s *coapSession) NewMessageID() uint16 {
	if s.proto == ProtoTCP || s.proto == ProtoTLS {
		return 0
	}
	return uint16(message.GetMID())
}

func (s *coapSession) MaxPDUSize() int {
	return s.owner.provider.opts.MaxPDUSize
}

func (s *coapSession) DefaultLeisure() time.Duration {
	return s.owner.provider.opts.DefaultLeisure
}

func (s *coapSession) KeyShare() security.KeyShare {
	return s.share
}

func (s *coapSession) Send(req *Message, h ResponseHandler) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	if len(req.Token) == 0 {
		token, err := message.GetToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		req.Token = token
	}

	pm := s.conn.AcquireMessage(s.ctx)
	pm.SetCode(req.Code)
	pm.SetToken(req.Token)
	if s.proto == ProtoUDP || s.proto == ProtoDTLS {
		pm.SetType(req.Type)
		pm.SetMessageID(int32(req.MessageID))
	}
	for _, opt := range req.Options {
		pm.AddOptionBytes(opt.ID, opt.Value)
	}
	if len(req.Payload) > 0 {
		pm.SetBody(bytes.NewReader(req.Payload))
	}

	logging.LogMessage(s.owner.logger, "send", req.Code.String(), req.MessageID, req.Token, req.Payload)

	sent := *req
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.conn.ReleaseMessage(pm)

		resp, err := s.conn.Do(pm)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.owner.deliver(event{sent: &sent, err: fmt.Errorf("exchange with %s: %w", s.endpoint, err)})
			return
		}
		defer s.conn.ReleaseMessage(resp)

		msg, err := fromPool(resp)
		if err != nil {
			s.owner.deliver(event{sent: &sent, err: err})
			return
		}
		s.owner.deliver(event{sent: &sent, resp: msg, handler: h})
	}()
	return nil
}

// Close is idempotent.
func (s *coapSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.conn.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func fromPool(pm *pool.Message) (*Message, error) {
	body, err := pm.ReadBody()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	opts := make(message.Options, 0, len(pm.Options()))
	for _, opt := range pm.Options() {
		opts = append(opts, message.Option{ID: opt.ID, Value: slices.Clone(opt.Value)})
	}
	mid := pm.MessageID()
	if mid < 0 {
		mid = 0
	}
	return &Message{
		Type:      pm.Type(),
		Code:      pm.Code(),
		MessageID: uint16(mid),
		Token:     slices.Clone(pm.Token()),
		Options:   opts,
		Payload:   body,
	}, nil
}
