package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

// Session is one open connection to the plant.
type Session interface {
	// Send writes a single frame payload.
	Send(ctx context.Context, payload string) error

	// Close releases the connection.
	Close() error
}

// Dialer opens plant sessions.
type Dialer interface {
	Open(ctx context.Context) (Session, error)
}

// Source is the queue the dispatcher drains.
// *queue.PriorityQueue[command.Frame] satisfies it.
type Source interface {
	Pop(ctx context.Context) (command.Frame, queue.Priority, error)
	PushFront(f command.Frame, p queue.Priority) error
	Len() int
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// OutcomeKind classifies what happened to a frame.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeSent     OutcomeKind = "sent"
	OutcomeHeld     OutcomeKind = "held"
	OutcomeDropped  OutcomeKind = "dropped"
	OutcomeRequeued OutcomeKind = "requeued"
)

// Outcome is reported to the Observer once per processed frame.
type Outcome struct {
	Kind     OutcomeKind
	Frame    command.Frame
	Priority queue.Priority
	Err      error
	At       time.Time
}

// Observer receives dispatch outcomes. It is called on the dispatch
// goroutine and must return quickly.
type Observer interface {
	OnOutcome(o Outcome)
}

// Stats holds operational counters.
type Stats struct {
	Sent           uint64
	Held           uint64
	Dropped        uint64
	Requeued       uint64
	SessionsOpened uint64
	SessionsClosed uint64
	ErrorsTotal    uint64
	LastSend       time.Time
	SessionOpen    bool
}

// Options holds the dependencies for New.
type Options struct {
	Source   Source
	Dialer   Dialer
	Config   Config
	Logger   Logger
	Observer Observer
}

// Dispatcher drains a Source into plant sessions.
//
// Thread Safety:
//   - Run must be called from a single goroutine.
//   - Stats is safe to call concurrently with Run.
type Dispatcher struct {
	cfg      Config
	source   Source
	dialer   Dialer
	logger   Logger
	observer Observer

	// backoff is only touched by the Run goroutine.
	backoff time.Duration

	sent           atomic.Uint64
	held           atomic.Uint64
	dropped        atomic.Uint64
	requeued       atomic.Uint64
	sessionsOpened atomic.Uint64
	sessionsClosed atomic.Uint64
	errorsTotal    atomic.Uint64
	lastSend       atomic.Int64
	sessionOpen    atomic.Bool
}

// New validates opts and returns a Dispatcher ready to Run.
func New(opts Options) (*Dispatcher, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidOptions)
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidOptions)
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	cfg := opts.Config.withDefaults()
	return &Dispatcher{
		cfg:      cfg,
		source:   opts.Source,
		dialer:   opts.Dialer,
		logger:   logger,
		observer: opts.Observer,
		backoff:  cfg.InitialBackoff,
	}, nil
}

// Run processes frames until ctx is cancelled. It returns nil on shutdown
// and only returns an error if the source fails for another reason.
func (d *Dispatcher) Run(ctx context.Context) error {
	var sess Session
	defer func() {
		d.closeSession(sess)
	}()

	d.logger.Info("dispatcher started",
		"pacing", d.cfg.Pacing.String(),
		"policy", d.cfg.Policy.String(),
	)

	for {
		frame, prio, err := d.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("dispatcher stopping", "pending", d.source.Len())
				return nil
			}
			return fmt.Errorf("%w: dequeue: %w", ErrUnclassified, err)
		}

		sess = d.process(ctx, sess, frame, prio)

		if ctx.Err() != nil {
			d.logger.Info("dispatcher stopping", "pending", d.source.Len())
			return nil
		}
	}
}

// process handles one frame and returns the session to carry forward.
// Panics are contained here so one bad iteration cannot stop the loop.
// A frame that already reached the plant is never reported as dropped,
// and it still gets its pacing gap.
func (d *Dispatcher) process(ctx context.Context, sess Session, f command.Frame, p queue.Priority) (next Session) {
	next = sess
	var written, reported, paced bool

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		d.errorsTotal.Add(1)
		err := fmt.Errorf("%w: panic: %v", ErrUnclassified, r)
		d.logger.Error("dispatch iteration failed", "error", err, "action_id", f.ActionID, "written", written)

		// The session is not trusted after a panic either way.
		next = d.closeSession(next)

		if !written {
			d.drop(f, p, err)
			return
		}
		if !reported {
			d.markSent(f, p)
		}
		if !paced {
			if pauseErr := pause(ctx, d.cfg.Pacing); pauseErr != nil {
				d.logger.Warn("pacing interrupted", "error", pauseErr)
			}
		}
	}()

	if f.IsHold() {
		if err := pause(ctx, f.Hold); err != nil {
			d.logger.Warn("hold interrupted", "error", err, "action_id", f.ActionID)
			return next
		}
		d.held.Add(1)
		d.emit(Outcome{Kind: OutcomeHeld, Frame: f, Priority: p})
		return d.closeIfIdle(next)
	}

	if next == nil {
		opened, err := d.dialer.Open(ctx)
		if err != nil {
			d.fail(ctx, f, p, fmt.Errorf("%w: %w", ErrConnect, err))
			return nil
		}
		next = opened
		d.sessionsOpened.Add(1)
		d.sessionOpen.Store(true)
		d.logger.Debug("plant session opened")
	}

	if err := next.Send(ctx, f.Payload); err != nil {
		d.fail(ctx, f, p, fmt.Errorf("%w: %w", ErrWrite, err))
		// A session that failed a write is not trusted for the next frame.
		return d.closeSession(next)
	}
	written = true

	d.markSent(f, p)
	reported = true
	d.logger.Debug("frame sent", "payload", f.Payload, "priority", p.String(), "action_id", f.ActionID)

	err := pause(ctx, d.cfg.Pacing)
	paced = true
	if err != nil {
		d.logger.Warn("pacing interrupted", "error", err)
		return next
	}

	return d.closeIfIdle(next)
}

// markSent records a frame the plant accepted.
func (d *Dispatcher) markSent(f command.Frame, p queue.Priority) {
	d.sent.Add(1)
	d.lastSend.Store(time.Now().UnixNano())
	d.backoff = d.cfg.InitialBackoff
	d.emit(Outcome{Kind: OutcomeSent, Frame: f, Priority: p})
}

// closeIfIdle closes sess when no more work is pending.
func (d *Dispatcher) closeIfIdle(sess Session) Session {
	if sess == nil || d.source.Len() > 0 {
		return sess
	}
	return d.closeSession(sess)
}

// closeSession closes sess if present and always returns nil so the
// caller drops its reference.
func (d *Dispatcher) closeSession(sess Session) Session {
	if sess == nil {
		return nil
	}
	if err := safeClose(sess); err != nil {
		d.errorsTotal.Add(1)
		d.logger.Warn("closing plant session", "error", fmt.Errorf("%w: %w", ErrClose, err))
	}
	d.sessionsClosed.Add(1)
	d.sessionOpen.Store(false)
	d.logger.Debug("plant session closed")
	return nil
}

// safeClose converts a panic in Close into an error.
func safeClose(sess Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrUnclassified, r)
		}
	}()
	return sess.Close()
}

// fail applies the retry policy to a frame that could not be delivered.
func (d *Dispatcher) fail(ctx context.Context, f command.Frame, p queue.Priority, err error) {
	d.errorsTotal.Add(1)

	if d.cfg.Policy == PolicyRequeue {
		f.Attempts++
		if f.Attempts < d.cfg.MaxAttempts {
			if pushErr := d.source.PushFront(f, p); pushErr == nil {
				d.requeued.Add(1)
				d.logger.Warn("frame requeued",
					"error", err,
					"payload", f.Payload,
					"attempt", f.Attempts,
					"backoff", d.backoff.String(),
					"action_id", f.ActionID,
				)
				d.emit(Outcome{Kind: OutcomeRequeued, Frame: f, Priority: p, Err: err})
				d.waitBackoff(ctx)
				return
			}
		}
	}

	d.drop(f, p, err)
}

// drop discards a frame.
func (d *Dispatcher) drop(f command.Frame, p queue.Priority, err error) {
	d.dropped.Add(1)
	d.logger.Error("frame dropped",
		"error", err,
		"payload", f.Payload,
		"priority", p.String(),
		"attempts", f.Attempts,
		"action_id", f.ActionID,
	)
	d.emit(Outcome{Kind: OutcomeDropped, Frame: f, Priority: p, Err: err})
}

// waitBackoff sleeps for the current backoff and grows it.
func (d *Dispatcher) waitBackoff(ctx context.Context) {
	wait := d.backoff
	d.backoff = nextBackoff(d.backoff, d.cfg.MaxBackoff)
	if err := pause(ctx, wait); err != nil {
		d.logger.Warn("backoff interrupted", "error", err)
	}
}

// emit reports o to the observer. A panicking observer is logged and
// counted; it never reaches the dispatch loop.
func (d *Dispatcher) emit(o Outcome) {
	if d.observer == nil {
		return
	}
	if o.At.IsZero() {
		o.At = time.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			d.errorsTotal.Add(1)
			d.logger.Error("outcome observer failed",
				"error", fmt.Errorf("%w: observer panic: %v", ErrUnclassified, r),
				"outcome", string(o.Kind),
				"action_id", o.Frame.ActionID,
			)
		}
	}()
	d.observer.OnOutcome(o)
}

// Stats returns current operational statistics.
func (d *Dispatcher) Stats() Stats {
	var last time.Time
	if ns := d.lastSend.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Sent:           d.sent.Load(),
		Held:           d.held.Load(),
		Dropped:        d.dropped.Load(),
		Requeued:       d.requeued.Load(),
		SessionsOpened: d.sessionsOpened.Load(),
		SessionsClosed: d.sessionsClosed.Load(),
		ErrorsTotal:    d.errorsTotal.Load(),
		LastSend:       last,
		SessionOpen:    d.sessionOpen.Load(),
	}
}

// Config returns the effective configuration after defaults.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// pause blocks for dur or until ctx is done.
func pause(ctx context.Context, dur time.Duration) error {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSuspended, ctx.Err())
	case <-timer.C:
		return nil
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
