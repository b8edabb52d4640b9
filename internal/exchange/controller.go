package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/connectivity"
	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/metrics"
	"github.com/muurk/pqcoap/internal/resolve"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/target"
	"github.com/muurk/pqcoap/internal/transport"
)

// Hooks observe run progress. Every field is optional.
type Hooks struct {
	StageStarted  func(Stage)
	StageFinished func(Stage, error)
	Response      func(*transport.Message)
}

// Options configures a Controller.
type Options struct {
	// Transport creates library contexts. Required.
	Transport transport.Provider

	// Link brings the network up before the exchange. Nil skips the
	// connectivity stage.
	Link  connectivity.Provider
	Retry connectivity.Policy

	// Security is required for coaps and coaps+tcp targets.
	Security *security.Config

	// PollSlice bounds each event-processing call.
	// Default: 500ms
	PollSlice time.Duration

	// Leisure overrides the session's default leisure when positive.
	Leisure time.Duration

	// LeisureSlack is added to the whole seconds of leisure.
	// Default: 1s
	LeisureSlack time.Duration

	// Multicast forces non-confirmable, unbounded waiting. Multicast
	// destination addresses enable it automatically.
	Multicast bool

	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Hooks   Hooks
}

// Controller runs request/response exchanges. It holds no per-run state, so
// one Controller may run exchanges concurrently.
type Controller struct {
	opts Options
}

// New validates opts and returns a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, errors.New("exchange: transport provider is required")
	}
	if opts.PollSlice <= 0 {
		opts.PollSlice = DefaultPollSlice
	}
	if opts.LeisureSlack <= 0 {
		opts.LeisureSlack = DefaultLeisureSlack
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{opts: opts}, nil
}

// run carries the state of one exchange.
type run struct {
	c        *Controller
	out      *Outcome
	logger   *zap.Logger
	guardian *guardian
}

// Run performs one exchange against rawURI. It always returns an Outcome,
// and every resource acquired is released before it returns.
func (c *Controller) Run(ctx context.Context, rawURI string) *Outcome {
	start := c.opts.Clock.Now()
	out := &Outcome{RunID: uuid.NewString(), URI: rawURI}
	logger := c.opts.Logger.With(zap.String("run_id", out.RunID))
	r := &run{c: c, out: out, logger: logger, guardian: newGuardian(logger)}

	err := r.execute(ctx)

	out.CleanupErr = r.guardian.release(context.WithoutCancel(ctx))
	out.Elapsed = c.opts.Clock.Since(start)

	if err != nil {
		out.Status = statusFor(err.Kind)
		out.Err = err
	} else {
		out.Status = StatusSuccess
	}

	logger.Info("Exchange finished",
		zap.String("status", out.Status.String()),
		zap.Duration("elapsed", out.Elapsed),
		zap.Int("payload_bytes", len(out.Payload())))
	c.opts.Metrics.RecordExchange(out.Scheme, out.Status.String(), out.Elapsed, len(out.Payload()))
	return out
}

func (r *run) stage(s Stage, fn func() *Error) *Error {
	hooks := r.c.opts.Hooks
	if hooks.StageStarted != nil {
		hooks.StageStarted(s)
	}
	logging.LogStage(r.logger, s.String(), "started", nil)

	err := fn()

	if hooks.StageFinished != nil {
		if err != nil {
			hooks.StageFinished(s, err)
		} else {
			hooks.StageFinished(s, nil)
		}
	}
	if err != nil {
		logging.LogStage(r.logger, s.String(), "failed", err)
		return err
	}
	logging.LogStage(r.logger, s.String(), "finished", nil)
	return nil
}

func (r *run) execute(ctx context.Context) *Error {
	opts := r.c.opts

	var desc target.Descriptor
	if err := r.stage(StageParse, func() *Error {
		d, err := target.Parse(r.out.URI)
		if err != nil {
			return newError(KindParse, StageParse, "invalid target URI", err)
		}
		desc = d
		r.out.Scheme = d.Scheme().String()
		return nil
	}); err != nil {
		return err
	}

	if opts.Link != nil {
		if err := r.stage(StageConnectivity, func() *Error {
			return r.connect(ctx)
		}); err != nil {
			return err
		}
	}

	var ep transport.Endpoint
	if err := r.stage(StageAddress, func() *Error {
		e, err := resolve.Resolve(desc)
		if err != nil {
			return newError(KindSetup, StageAddress, "cannot resolve address", err)
		}
		ep = e
		return nil
	}); err != nil {
		return err
	}
	multicast := opts.Multicast || resolve.IsMulticast(ep)

	var library transport.Context
	if err := r.stage(StageContext, func() *Error {
		l, err := opts.Transport.NewContext(ctx)
		if err != nil {
			return newError(KindSetup, StageContext, "cannot create "+opts.Transport.Name()+" context", err)
		}
		library = l
		r.guardian.trackContext(l)
		return nil
	}); err != nil {
		return err
	}

	var sess transport.Session
	if err := r.stage(StageSession, func() *Error {
		s, err := r.c.establishSession(ctx, library, desc, ep)
		if err != nil {
			return err
		}
		sess = s
		r.guardian.trackSession(s)
		if share := keyShareOf(s); share != nil {
			r.out.KeyShare = share
			opts.Metrics.RecordKeyExchange(share.AppliedName(), share.FellBack)
		}
		return nil
	}); err != nil {
		return err
	}

	var req *transport.Message
	if err := r.stage(StageRequest, func() *Error {
		req = newRequest(sess, multicast)
		optList, err := buildOptions(desc)
		r.guardian.trackOptions(optList)
		if err != nil {
			return newError(KindSetup, StageRequest, "cannot build request options", err)
		}
		if err := req.AttachOptions(optList, sess.MaxPDUSize()); err != nil {
			return newError(KindSetup, StageRequest, "cannot attach request options", err)
		}
		return nil
	}); err != nil {
		return err
	}

	recorder := newResponseRecorder(r.logger, opts.Hooks.Response)
	if err := r.stage(StageSend, func() *Error {
		if err := sess.Send(req, recorder.handle); err != nil {
			return newError(KindTransport, StageSend, "cannot send request", err)
		}
		r.logger.Info("Request sent",
			zap.String("uri", desc.String()),
			zap.String("proto", sess.Proto().String()),
			zap.Uint16("mid", req.MessageID),
			zap.Bool("multicast", multicast))
		return nil
	}); err != nil {
		return err
	}

	leisure := opts.Leisure
	if leisure <= 0 {
		leisure = sess.DefaultLeisure()
	}
	budget := WaitBudget(leisure, opts.LeisureSlack)
	r.out.WaitBudget = budget
	opts.Metrics.RecordWaitBudget(budget)

	err := r.stage(StageWait, func() *Error {
		d := &driver{
			library:   library,
			recorder:  recorder,
			slice:     opts.PollSlice,
			budget:    budget,
			multicast: multicast,
			logger:    r.logger,
		}
		return d.wait(ctx)
	})
	r.out.Response = recorder.response()
	r.out.Responses = recorder.count()
	return err
}

func (r *run) connect(ctx context.Context) *Error {
	opts := r.c.opts
	orch := connectivity.NewOrchestrator(opts.Link, opts.Retry,
		connectivity.WithClock(opts.Clock),
		connectivity.WithLogger(r.logger))
	r.guardian.trackLink(orch)

	err := orch.Establish(ctx)
	r.out.ConnectAttempts = orch.Attempts()
	opts.Metrics.RecordConnectAttempts(opts.Link.Name(), orch.Attempts(), orch.State() == connectivity.StateConnected)
	if err != nil {
		return newError(KindSetup, StageConnectivity, "network unavailable", err)
	}
	return nil
}
