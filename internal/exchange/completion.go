package exchange

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/transport"
)

// responseRecorder is the response handler of a run. The first delivery
// wins; later deliveries are counted and logged but never replace it.
type responseRecorder struct {
	logger *zap.Logger

	received   atomic.Bool
	first      *transport.Message
	deliveries atomic.Int32
	onResponse func(*transport.Message)
}

func newResponseRecorder(logger *zap.Logger, onResponse func(*transport.Message)) *responseRecorder {
	return &responseRecorder{logger: logger, onResponse: onResponse}
}

// handle implements transport.ResponseHandler.
func (r *responseRecorder) handle(_, received *transport.Message) transport.ResponseStatus {
	r.deliveries.Add(1)
	if received == nil {
		return transport.ResponseOK
	}
	if !r.received.CompareAndSwap(false, true) {
		r.logger.Debug("Additional response ignored",
			zap.String("code", received.Code.String()),
			zap.Uint16("mid", received.MessageID))
		return transport.ResponseOK
	}

	r.first = received
	r.logger.Info("Response received",
		zap.String("code", received.Code.String()),
		zap.Int("payload_bytes", len(received.Payload)))
	if r.onResponse != nil {
		r.onResponse(received)
	}
	return transport.ResponseOK
}

func (r *responseRecorder) done() bool {
	return r.received.Load()
}

func (r *responseRecorder) response() *transport.Message {
	if !r.done() {
		return nil
	}
	return r.first
}

func (r *responseRecorder) count() int {
	return int(r.deliveries.Load())
}
