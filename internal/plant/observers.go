package plant

import (
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
)

// OutcomeFanout delivers each outcome to every observer in order.
// Nil entries are skipped.
type OutcomeFanout []dispatcher.Observer

// OnOutcome implements dispatcher.Observer.
func (f OutcomeFanout) OnOutcome(o dispatcher.Outcome) {
	for _, obs := range f {
		if obs != nil {
			obs.OnOutcome(o)
		}
	}
}

// ObserverFunc adapts a function to dispatcher.Observer.
type ObserverFunc func(o dispatcher.Outcome)

// OnOutcome implements dispatcher.Observer.
func (f ObserverFunc) OnOutcome(o dispatcher.Outcome) {
	f(o)
}

// FrameCounter counts dispatch outcomes. Satisfied by *metrics.Collector.
type FrameCounter interface {
	RecordFrame(outcome, priority string)
}

// CountOutcomes returns an observer that counts every outcome.
func CountOutcomes(fc FrameCounter) dispatcher.Observer {
	return ObserverFunc(func(o dispatcher.Outcome) {
		fc.RecordFrame(string(o.Kind), o.Priority.String())
	})
}

// DeliveryWriter writes delivery points. Satisfied by *influxdb.Client.
type DeliveryWriter interface {
	WriteDelivery(siteID, outcome, priority, actionID string, attempts int, at time.Time)
}

// WriteFailedDeliveries returns an observer that writes a point for each
// dropped or requeued frame. Successful sends are covered by the periodic
// stats sample.
func WriteFailedDeliveries(w DeliveryWriter, siteID string) dispatcher.Observer {
	return ObserverFunc(func(o dispatcher.Outcome) {
		if o.Kind != dispatcher.OutcomeDropped && o.Kind != dispatcher.OutcomeRequeued {
			return
		}
		w.WriteDelivery(siteID, string(o.Kind), o.Priority.String(), o.Frame.ActionID, o.Frame.Attempts, o.At)
	})
}
