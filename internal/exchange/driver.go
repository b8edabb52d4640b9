package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/transport"
)

const (
	// DefaultPollSlice bounds each call to the event-processing primitive.
	DefaultPollSlice = 500 * time.Millisecond
	// DefaultLeisureSlack is added to the whole seconds of leisure.
	DefaultLeisureSlack = time.Second
)

var errNegativeElapsed = errors.New("event processing reported negative elapsed time")

// WaitBudget is the unicast response budget: the whole seconds of leisure
// plus slack. Fractional seconds of leisure are dropped.
func WaitBudget(leisure, slack time.Duration) time.Duration {
	if leisure < 0 {
		leisure = 0
	}
	return leisure.Truncate(time.Second) + slack
}

// driver runs the wait loop of one exchange.
type driver struct {
	library   transport.Context
	recorder  *responseRecorder
	slice     time.Duration
	budget    time.Duration
	multicast bool
	logger    *zap.Logger
}

// wait drives the event loop until a response arrives or the budget is
// exhausted. It returns nil on a response and a Timeout or Transport error
// otherwise. Multicast waits are unbounded; they end when ctx ends and
// succeed if any response arrived by then.
func (d *driver) wait(ctx context.Context) *Error {
	remaining := d.budget
	iterations := 0

	for {
		if !d.multicast && d.recorder.done() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return d.expired(fmt.Errorf("wait interrupted: %w", err))
		}

		elapsed, err := d.library.Process(d.slice)
		iterations++
		if err != nil {
			return newError(KindTransport, StageWait, "event processing failed", err)
		}
		if elapsed < 0 {
			return newError(KindTransport, StageWait, "event processing failed", errNegativeElapsed)
		}

		if d.multicast || elapsed == 0 {
			continue
		}
		if d.recorder.done() {
			return nil
		}
		if elapsed >= remaining {
			d.logger.Debug("Wait budget exhausted",
				zap.Duration("budget", d.budget),
				zap.Int("iterations", iterations))
			return d.expired(nil)
		}
		remaining -= elapsed
	}
}

func (d *driver) expired(cause error) *Error {
	if d.multicast && d.recorder.done() {
		return nil
	}
	return newError(KindTimeout, StageWait,
		fmt.Sprintf("no response within %s", d.budget), cause)
}
