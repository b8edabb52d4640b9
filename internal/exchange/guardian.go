package exchange

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/transport"
)

// disconnecter takes the network link down.
type disconnecter interface {
	Disconnect(ctx context.Context) error
}

// guardian owns every resource acquired during a run and releases them
// exactly once, in reverse order of acquisition: option list, session,
// library context, network link. Nil resources are skipped.
type guardian struct {
	logger *zap.Logger

	options *transport.OptionList
	session transport.Session
	library transport.Context
	link    disconnecter

	once     sync.Once
	err      error
	released []string
}

func newGuardian(logger *zap.Logger) *guardian {
	return &guardian{logger: logger}
}

func (g *guardian) trackLink(d disconnecter)             { g.link = d }
func (g *guardian) trackContext(c transport.Context)     { g.library = c }
func (g *guardian) trackSession(s transport.Session)     { g.session = s }
func (g *guardian) trackOptions(l *transport.OptionList) { g.options = l }

// release runs once; later calls return the first result. ctx is only used
// for the network disconnect.
func (g *guardian) release(ctx context.Context) error {
	g.once.Do(func() {
		if g.options != nil && g.options.Release() {
			g.released = append(g.released, "options")
		}
		if g.session != nil {
			g.err = multierr.Append(g.err, g.session.Close())
			g.released = append(g.released, "session")
		}
		if g.library != nil {
			g.err = multierr.Append(g.err, g.library.Close())
			g.released = append(g.released, "context")
		}
		if g.link != nil {
			g.err = multierr.Append(g.err, g.link.Disconnect(ctx))
			g.released = append(g.released, "network")
		}
		if g.err != nil {
			g.logger.Warn("Cleanup finished with errors", zap.Error(g.err))
		} else {
			g.logger.Debug("Cleanup finished", zap.Strings("released", g.released))
		}
	})
	return g.err
}
