package transport

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/muurk/pqcoap/internal/security"
)

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func endpoint4(addr string, port uint16) Endpoint {
	return Endpoint{Addr: mustAddr(addr), Port: port, Family: FamilyInet4, Size: ExpectedSize(FamilyInet4)}
}

type capturedRequest struct {
	typ     message.Type
	code    codes.Code
	mid     int32
	token   []byte
	options message.Options
}

type fakeConn struct {
	mu       sync.Mutex
	requests []capturedRequest
	closed   int
	block    bool
	doErr    error
	payload  string
}

func (f *fakeConn) AcquireMessage(ctx context.Context) *pool.Message {
	return pool.NewMessage(ctx)
}

func (f *fakeConn) ReleaseMessage(*pool.Message) {}

func (f *fakeConn) Do(req *pool.Message) (*pool.Message, error) {
	opts := make(message.Options, 0, len(req.Options()))
	for _, o := range req.Options() {
		opts = append(opts, message.Option{ID: o.ID, Value: append([]byte(nil), o.Value...)})
	}
	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		typ:     req.Type(),
		code:    req.Code(),
		mid:     req.MessageID(),
		token:   append([]byte(nil), req.Token()...),
		options: opts,
	})
	f.mu.Unlock()

	if f.block {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	if f.doErr != nil {
		return nil, f.doErr
	}

	resp := pool.NewMessage(context.Background())
	resp.SetCode(codes.Content)
	resp.SetType(message.Acknowledgement)
	resp.SetMessageID(req.MessageID())
	resp.SetToken(req.Token())
	resp.SetBody(bytes.NewReader([]byte(f.payload)))
	return resp, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func newTestProvider(conn *fakeConn, share security.KeyShare) (*GoCoap, *[]SessionParams) {
	p := NewGoCoap(GoCoapOptions{})
	var dialed []SessionParams
	p.dial = func(_ context.Context, params SessionParams) (coapConn, security.KeyShare, error) {
		dialed = append(dialed, params)
		return conn, share, nil
	}
	return p, &dialed
}

func getRequest(path string) *Message {
	l := NewOptionList()
	l.Add(message.URIPath, []byte(path))
	m := &Message{Type: message.Confirmable, Code: codes.GET, MessageID: 0x1234}
	_ = m.AttachOptions(l, 0)
	return m
}

func TestGoCoapExchange(t *testing.T) {
	conn := &fakeConn{payload: "Hello World!"}
	p, _ := newTestProvider(conn, security.KeyShare{})

	tctx, err := p.NewContext(context.Background())
	if err != nil {
		t.Fatalf("NewContext() error: %v", err)
	}
	defer tctx.Close()

	sess, err := tctx.NewSession(context.Background(), SessionParams{Proto: ProtoUDP, Endpoint: endpoint4("127.0.0.1", 5683)})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if sess.DefaultLeisure() != DefaultLeisure {
		t.Errorf("DefaultLeisure() = %v, want %v", sess.DefaultLeisure(), DefaultLeisure)
	}

	var got *Message
	handler := func(_, received *Message) ResponseStatus {
		got = received
		return ResponseOK
	}
	req := getRequest("hello")
	if err := sess.Send(req, handler); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(req.Token) == 0 {
		t.Error("Send() should assign a token")
	}

	if _, err := tctx.Process(2 * time.Second); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got == nil {
		t.Fatal("handler not invoked")
	}
	if string(got.Payload) != "Hello World!" || got.Code != codes.Content {
		t.Errorf("response = %v %q, want 2.05 Hello World!", got.Code, got.Payload)
	}

	sent := conn.requests[0]
	if sent.typ != message.Confirmable || sent.code != codes.GET || sent.mid != 0x1234 {
		t.Errorf("wire request = %v %v %#x, want CON GET 0x1234", sent.typ, sent.code, sent.mid)
	}
	if len(sent.options) != 1 || string(sent.options[0].Value) != "hello" {
		t.Errorf("wire options = %v, want Uri-Path hello", sent.options)
	}

	if err := sess.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	_ = sess.Close()
	if conn.closed != 1 {
		t.Errorf("conn closed %d times, want 1", conn.closed)
	}
}

func TestGoCoapProcessTimesOut(t *testing.T) {
	conn := &fakeConn{block: true}
	p, _ := newTestProvider(conn, security.KeyShare{})
	tctx, _ := p.NewContext(context.Background())

	sess, err := tctx.NewSession(context.Background(), SessionParams{Proto: ProtoUDP, Endpoint: endpoint4("127.0.0.1", 5683)})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	called := false
	if err := sess.Send(getRequest("slow"), func(_, _ *Message) ResponseStatus {
		called = true
		return ResponseOK
	}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	elapsed, err := tctx.Process(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want at least the slice", elapsed)
	}
	if called {
		t.Error("handler called without a response")
	}

	// Closing the context closes the blocked session.
	if err := tctx.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if conn.closed != 1 {
		t.Errorf("conn closed %d times, want 1", conn.closed)
	}
	if _, err := tctx.Process(time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Process() after Close error = %v, want ErrClosed", err)
	}
}

func TestGoCoapProcessReportsTransportError(t *testing.T) {
	conn := &fakeConn{doErr: errors.New("connection refused")}
	p, _ := newTestProvider(conn, security.KeyShare{})
	tctx, _ := p.NewContext(context.Background())
	defer tctx.Close()

	sess, _ := tctx.NewSession(context.Background(), SessionParams{Proto: ProtoUDP, Endpoint: endpoint4("127.0.0.1", 5683)})
	_ = sess.Send(getRequest("x"), func(_, _ *Message) ResponseStatus { return ResponseOK })

	if _, err := tctx.Process(2 * time.Second); err == nil {
		t.Error("Process() should surface the exchange error")
	}
}

func TestGoCoapNewSessionValidation(t *testing.T) {
	conn := &fakeConn{}
	p, dialed := newTestProvider(conn, security.KeyShare{})
	tctx, _ := p.NewContext(context.Background())
	defer tctx.Close()

	bad := endpoint4("127.0.0.1", 5683)
	bad.Size = 32
	if _, err := tctx.NewSession(context.Background(), SessionParams{Proto: ProtoUDP, Endpoint: bad}); !errors.Is(err, ErrAddressMismatch) {
		t.Errorf("NewSession() error = %v, want ErrAddressMismatch", err)
	}
	if _, err := tctx.NewSession(context.Background(), SessionParams{Proto: ProtoDTLS, Endpoint: endpoint4("127.0.0.1", 5684)}); !errors.Is(err, ErrSecurityRequired) {
		t.Errorf("NewSession() error = %v, want ErrSecurityRequired", err)
	}
	if len(*dialed) != 0 {
		t.Errorf("dialed %d times, want 0", len(*dialed))
	}
}

func TestGoCoapSecuredSessionReportsKeyShare(t *testing.T) {
	g, _ := security.Lookup("P384")
	share := security.KeyShare{Requested: g, Applied: g}
	p, dialed := newTestProvider(&fakeConn{}, share)
	tctx, _ := p.NewContext(context.Background())
	defer tctx.Close()

	sess, err := tctx.NewSession(context.Background(), SessionParams{
		Proto:    ProtoDTLS,
		Endpoint: endpoint4("127.0.0.1", 5684),
		Security: &security.Config{Selection: security.Selection{Group: g}},
	})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if (*dialed)[0].ServerName != "127.0.0.1" {
		t.Errorf("ServerName = %q, want endpoint address", (*dialed)[0].ServerName)
	}
	r, ok := sess.(KeyShareReporter)
	if !ok {
		t.Fatal("secured session does not report its key share")
	}
	if r.KeyShare().Applied.Name != "P384" {
		t.Errorf("KeyShare().Applied = %q, want P384", r.KeyShare().Applied.Name)
	}
}

func TestGoCoapStreamSessionHasNoMessageID(t *testing.T) {
	p, _ := newTestProvider(&fakeConn{}, security.KeyShare{})
	tctx, _ := p.NewContext(context.Background())
	defer tctx.Close()

	sess, _ := tctx.NewSession(context.Background(), SessionParams{Proto: ProtoTCP, Endpoint: endpoint4("127.0.0.1", 5683)})
	if mid := sess.NewMessageID(); mid != 0 {
		t.Errorf("NewMessageID() = %d, want 0 for stream sessions", mid)
	}
}
