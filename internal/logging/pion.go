package logging

import (
	pionlog "github.com/pion/logging"
	"go.uber.org/zap"
)

// PionLoggerFactory routes pion/dtls handshake logging into zap.
type PionLoggerFactory struct {
	base *zap.Logger
}

// NewPionLoggerFactory returns a factory writing through l.
func NewPionLoggerFactory(l *zap.Logger) *PionLoggerFactory {
	if l == nil {
		l = zap.NewNop()
	}
	return &PionLoggerFactory{base: l}
}

// NewLogger implements pion's LoggerFactory.
func (f *PionLoggerFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return &pionLogger{l: f.base.Named(scope).WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

type pionLogger struct {
	l *zap.SugaredLogger
}

// zap has no trace level.
func (p *pionLogger) Trace(msg string)                          { p.l.Debug(msg) }
func (p *pionLogger) Tracef(format string, args ...interface{}) { p.l.Debugf(format, args...) }
func (p *pionLogger) Debug(msg string)                          { p.l.Debug(msg) }
func (p *pionLogger) Debugf(format string, args ...interface{}) { p.l.Debugf(format, args...) }
func (p *pionLogger) Info(msg string)                           { p.l.Info(msg) }
func (p *pionLogger) Infof(format string, args ...interface{})  { p.l.Infof(format, args...) }
func (p *pionLogger) Warn(msg string)                           { p.l.Warn(msg) }
func (p *pionLogger) Warnf(format string, args ...interface{})  { p.l.Warnf(format, args...) }
func (p *pionLogger) Error(msg string)                          { p.l.Error(msg) }
func (p *pionLogger) Errorf(format string, args ...interface{}) { p.l.Errorf(format, args...) }
