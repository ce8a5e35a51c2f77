// Package plant is the producer-facing API of the dispatch engine.
//
// A Controller owns the priority queue and the single dispatcher that
// drains it into plant sessions. Producers hand it complete Actions:
//
//	a := action.New("Goodnight", nil, action.WithPriority(queue.High))
//	a.AppendCommand(command.OpenDirective("1", "0", "0"))
//	if err := ctrl.SubmitAction(a); err != nil { ... }
//
// SubmitAction encodes every command before anything is queued, so an
// action is either enqueued whole and contiguous at its priority or not
// at all. It never waits for delivery; failures downstream of the queue
// are visible only through the dispatcher's Observer, Stats and logs.
//
// The package also carries the service-side edges around the Controller:
//   - Intake decodes ActionMessages from MQTT and acknowledges them.
//   - HealthReporter publishes retained dispatcher health and feeds
//     InfluxDB with periodic samples.
//   - OutcomeFanout delivers dispatcher outcomes to several observers
//     (audit, metrics, telemetry).
package plant
