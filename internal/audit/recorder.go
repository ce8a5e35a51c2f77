package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/action"
	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
)

const (
	// defaultBufferSize is the number of outcomes held while the writer catches up.
	defaultBufferSize = 256

	// writeTimeout bounds a single history insert.
	writeTimeout = 5 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Recorder writes submissions and delivery outcomes to a Repository.
//
// Thread Safety: All methods are safe for concurrent use.
type Recorder struct {
	repo   Repository
	logger Logger
	source string

	outcomes chan DeliveryRecord
	overflow atomic.Uint64

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

var _ dispatcher.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder. source tags action rows (e.g. "mqtt", "cli").
func NewRecorder(repo Repository, source string) *Recorder {
	return &Recorder{
		repo:     repo,
		source:   source,
		outcomes: make(chan DeliveryRecord, defaultBufferSize),
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	r.wg.Add(1)
	go r.writeLoop()
	r.log("audit recorder started")
}

// Stop drains buffered outcomes and stops the writer. Outcomes reported
// after Stop are ignored.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.started || r.closed {
		r.closed = true
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.outcomes)
	r.mu.Unlock()

	r.wg.Wait()
	r.log("audit recorder stopped", "overflow", r.overflow.Load())
}

// Overflow returns how many outcomes were discarded because the buffer was full.
func (r *Recorder) Overflow() uint64 {
	return r.overflow.Load()
}

// OnOutcome implements dispatcher.Observer. Only dropped and requeued
// frames are recorded. It never blocks.
func (r *Recorder) OnOutcome(o dispatcher.Outcome) {
	if o.Kind != dispatcher.OutcomeDropped && o.Kind != dispatcher.OutcomeRequeued {
		return
	}

	rec := DeliveryRecord{
		ActionID:  o.Frame.ActionID,
		Outcome:   string(o.Kind),
		Priority:  o.Priority.String(),
		Payload:   o.Frame.Payload,
		Attempts:  o.Frame.Attempts,
		CreatedAt: o.At,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.started || r.closed {
		return
	}

	select {
	case r.outcomes <- rec:
	default:
		r.overflow.Add(1)
	}
}

// ActionSubmitted records a submission. submitErr is nil for accepted actions.
func (r *Recorder) ActionSubmitted(ctx context.Context, a *action.Action, submitErr error) error {
	rec := &ActionRecord{
		ID:           a.ID(),
		Description:  a.Description(),
		Priority:     a.Priority().String(),
		CommandCount: a.Len(),
		HasDelay:     a.HasDelay(),
		Sensors:      a.InhibitingSensorIDs(),
		Source:       r.source,
		Status:       StatusAccepted,
	}
	if submitErr != nil {
		rec.Status = StatusRejected
		rec.Error = submitErr.Error()
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.repo.RecordAction(writeCtx, rec); err != nil {
		r.logError("recording action", err, "action_id", rec.ID)
		return err
	}
	return nil
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()

	for rec := range r.outcomes {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.RecordDelivery(ctx, &rec); err != nil {
			r.logError("recording delivery", err, "action_id", rec.ActionID, "outcome", rec.Outcome)
		}
		cancel()
	}
}

func (r *Recorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}

func (r *Recorder) logError(msg string, err error, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
