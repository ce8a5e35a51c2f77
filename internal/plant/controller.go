package plant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/action"
	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

// drainPollInterval is how often Drain re-checks for idleness.
const drainPollInterval = 25 * time.Millisecond

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds the dependencies for NewController.
type Options struct {
	// Dialer opens plant sessions. Required.
	Dialer dispatcher.Dialer

	// Encoder turns commands into frames. Default: command.OpenEncoder.
	Encoder command.Encoder

	// Dispatch tunes pacing and the retry policy.
	Dispatch dispatcher.Config

	// Logger is optional.
	Logger Logger

	// Observer receives every dispatch outcome. Optional.
	Observer dispatcher.Observer
}

// Controller accepts actions and runs the dispatcher that delivers them.
//
// Thread Safety: All methods are safe for concurrent use.
type Controller struct {
	encoder    command.Encoder
	queue      *queue.PriorityQueue[command.Frame]
	dispatcher *dispatcher.Dispatcher
	observer   dispatcher.Observer
	logger     Logger

	// inflight counts frames submitted but not yet sent, held or dropped.
	inflight atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ dispatcher.Observer = (*Controller)(nil)

// NewController wires a queue and dispatcher together.
func NewController(opts Options) (*Controller, error) {
	c := &Controller{
		encoder:  opts.Encoder,
		queue:    queue.New[command.Frame](),
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if c.encoder == nil {
		c.encoder = command.OpenEncoder{}
	}

	var dl dispatcher.Logger
	if opts.Logger != nil {
		dl = opts.Logger
	}

	d, err := dispatcher.New(dispatcher.Options{
		Source:   c.queue,
		Dialer:   opts.Dialer,
		Config:   opts.Dispatch,
		Logger:   dl,
		Observer: c,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	c.dispatcher = d

	return c, nil
}

// SubmitAction enqueues all of a's commands at a's priority.
//
// Every command is encoded first; if any fails nothing is enqueued. The
// frames then go in with a single PushAll so they stay contiguous relative
// to other actions of the same priority. SubmitAction does not wait for
// delivery and cannot report downstream failures.
func (c *Controller) SubmitAction(a *action.Action) error {
	if a == nil {
		return ErrNilAction
	}

	cmds := a.Commands()
	if len(cmds) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyAction, a.ID())
	}

	frames := make([]command.Frame, 0, len(cmds))
	for i, cmd := range cmds {
		f, err := c.encoder.Encode(cmd)
		if err != nil {
			return fmt.Errorf("%w: command %d of %s: %w", ErrEncode, i, a.ID(), err)
		}
		f.ActionID = a.ID()
		frames = append(frames, f)
	}

	c.inflight.Add(int64(len(frames)))
	if err := c.queue.PushAll(frames, a.Priority()); err != nil {
		c.inflight.Add(-int64(len(frames)))
		return fmt.Errorf("enqueueing %s: %w", a.ID(), err)
	}

	c.logDebug("action queued",
		"action_id", a.ID(),
		"priority", a.Priority().String(),
		"frames", len(frames),
		"has_delay", a.HasDelay(),
	)
	return nil
}

// QueueDepth returns the number of frames waiting in the queue.
func (c *Controller) QueueDepth() int {
	return c.queue.Len()
}

// QueueDepthAt returns the number of frames waiting at priority p.
func (c *Controller) QueueDepthAt(p queue.Priority) int {
	return c.queue.LenAt(p)
}

// Stats returns the dispatcher's counters.
func (c *Controller) Stats() dispatcher.Stats {
	return c.dispatcher.Stats()
}

// DispatchConfig returns the dispatcher configuration after defaults.
func (c *Controller) DispatchConfig() dispatcher.Config {
	return c.dispatcher.Config()
}

// Start launches the dispatcher goroutine. It runs until ctx is cancelled
// or Stop is called.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.dispatcher.Run(runCtx); err != nil {
			c.logError("dispatcher exited", err)
		}
	}()

	return nil
}

// Stop cancels the dispatcher and waits for it to exit. Frames still
// queued are discarded with the process. Safe to call multiple times.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		cancel := c.cancel
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		c.wg.Wait()
	})
}

// Drain blocks until every submitted frame has been sent, held or dropped
// and the plant session is closed, or until ctx is done.
func (c *Controller) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		if c.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("draining with %d frames pending: %w", c.inflight.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Controller) idle() bool {
	return c.inflight.Load() <= 0 && !c.dispatcher.Stats().SessionOpen
}

// OnOutcome implements dispatcher.Observer. It settles in-flight
// accounting and forwards to the configured observer.
func (c *Controller) OnOutcome(o dispatcher.Outcome) {
	if o.Kind != dispatcher.OutcomeRequeued {
		c.inflight.Add(-1)
	}

	if c.observer != nil {
		c.observer.OnOutcome(o)
	}
}

func (c *Controller) logDebug(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

func (c *Controller) logError(msg string, err error) {
	if c.logger != nil {
		c.logger.Error(msg, "error", err)
	}
}
