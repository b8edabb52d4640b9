package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/transport"
)

// step scripts one call to fakeContext.Process.
type step struct {
	elapsed time.Duration
	err     error
	// respond delivers a response with this payload.
	respond *string
	// repeat delivers the response this many extra times in the same call.
	repeat int
	// after runs once the step has been processed.
	after func()
}

func respond(payload string) *string { return &payload }

type fakeProvider struct {
	mu         sync.Mutex
	contextErr error
	sessionErr error
	sendErr    error
	maxPDU     int
	leisure    time.Duration
	share      *security.KeyShare
	script     []step

	contexts []*fakeContext
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) NewContext(context.Context) (transport.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.contextErr != nil {
		return nil, p.contextErr
	}
	c := &fakeContext{provider: p, script: append([]step(nil), p.script...)}
	p.contexts = append(p.contexts, c)
	return c, nil
}

func (p *fakeProvider) lastContext() *fakeContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.contexts) == 0 {
		return nil
	}
	return p.contexts[len(p.contexts)-1]
}

type fakeContext struct {
	provider *fakeProvider
	script   []step

	sessions   []*fakeSession
	processed  int
	closeCount int
}

func (c *fakeContext) NewSession(_ context.Context, params transport.SessionParams) (transport.Session, error) {
	if c.provider.sessionErr != nil {
		return nil, c.provider.sessionErr
	}
	if err := params.Endpoint.Validate(); err != nil {
		return nil, err
	}
	s := &fakeSession{params: params, provider: c.provider}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeContext) Process(slice time.Duration) (time.Duration, error) {
	c.processed++
	if len(c.script) == 0 {
		return slice, nil
	}
	st := c.script[0]
	c.script = c.script[1:]
	if st.after != nil {
		defer st.after()
	}
	if st.err != nil {
		return st.elapsed, st.err
	}
	if st.respond != nil {
		for _, s := range c.sessions {
			for i := 0; i <= st.repeat; i++ {
				s.deliver(*st.respond)
			}
		}
	}
	return st.elapsed, nil
}

func (c *fakeContext) Close() error {
	c.closeCount++
	return nil
}

type fakeSession struct {
	provider   *fakeProvider
	params     transport.SessionParams
	sent       []*transport.Message
	handler    transport.ResponseHandler
	closeCount int
}

func (s *fakeSession) Proto() transport.Proto { return s.params.Proto }
func (s *fakeSession) NewMessageID() uint16   { return 0x4242 }

func (s *fakeSession) MaxPDUSize() int {
	if s.provider.maxPDU > 0 {
		return s.provider.maxPDU
	}
	return transport.DefaultMaxPDUSize
}

func (s *fakeSession) DefaultLeisure() time.Duration {
	if s.provider.leisure > 0 {
		return s.provider.leisure
	}
	return transport.DefaultLeisure
}

func (s *fakeSession) KeyShare() security.KeyShare {
	if s.provider.share != nil {
		return *s.provider.share
	}
	return security.KeyShare{}
}

func (s *fakeSession) Send(req *transport.Message, h transport.ResponseHandler) error {
	if s.provider.sendErr != nil {
		return s.provider.sendErr
	}
	s.sent = append(s.sent, req)
	s.handler = h
	return nil
}

func (s *fakeSession) deliver(payload string) {
	if s.handler == nil || len(s.sent) == 0 {
		return
	}
	s.handler(s.sent[0], &transport.Message{
		Code:      codes.Content,
		MessageID: s.sent[0].MessageID,
		Token:     s.sent[0].Token,
		Payload:   []byte(payload),
	})
}

func (s *fakeSession) Close() error {
	s.closeCount++
	return nil
}

// fakeLink fails the first failures attempts.
type fakeLink struct {
	failures    int
	connects    int
	disconnects int
}

var errNoCarrier = errors.New("no carrier")

func (l *fakeLink) Name() string { return "fake-link" }

func (l *fakeLink) Connect(context.Context) error {
	l.connects++
	return nil
}

func (l *fakeLink) WaitUntilReady(context.Context, time.Duration) error {
	if l.connects <= l.failures {
		return errNoCarrier
	}
	return nil
}

func (l *fakeLink) Disconnect(context.Context) error {
	l.disconnects++
	return nil
}
