package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDispatch = "dispatch_stats"
	measurementDelivery = "dispatch_delivery"
)

// DispatchSample is one snapshot of dispatcher counters.
type DispatchSample struct {
	QueueDepth     int
	Sent           uint64
	Held           uint64
	Dropped        uint64
	Requeued       uint64
	SessionsOpened uint64
	SessionsClosed uint64
	Errors         uint64
	SessionOpen    bool
}

// WriteDispatchStats records a counter snapshot. Non-blocking; points are
// batched and sent asynchronously.
func (c *Client) WriteDispatchStats(siteID string, s DispatchSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newDispatchStatsPoint(siteID, s, time.Now()))
}

// WriteDelivery records what happened to a single frame.
//
// Example:
//
//	client.WriteDelivery("site-001", "dropped", "high", actionID, 3, time.Now())
func (c *Client) WriteDelivery(siteID, outcome, priority, actionID string, attempts int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newDeliveryPoint(siteID, outcome, priority, actionID, attempts, at))
}

func newDispatchStatsPoint(siteID string, s DispatchSample, at time.Time) *write.Point {
	return write.NewPoint(
		measurementDispatch,
		map[string]string{
			"site_id": siteID,
		},
		map[string]interface{}{
			"queue_depth":     int64(s.QueueDepth),
			"sent":            int64(s.Sent),
			"held":            int64(s.Held),
			"dropped":         int64(s.Dropped),
			"requeued":        int64(s.Requeued),
			"sessions_opened": int64(s.SessionsOpened),
			"sessions_closed": int64(s.SessionsClosed),
			"errors":          int64(s.Errors),
			"session_open":    s.SessionOpen,
		},
		at,
	)
}

// newDeliveryPoint tags by outcome and priority (low cardinality); the
// action ID is a field so it does not explode the series count.
func newDeliveryPoint(siteID, outcome, priority, actionID string, attempts int, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"count":    int64(1),
		"attempts": int64(attempts),
	}
	if actionID != "" {
		fields["action_id"] = actionID
	}
	return write.NewPoint(
		measurementDelivery,
		map[string]string{
			"site_id":  siteID,
			"outcome":  outcome,
			"priority": priority,
		},
		fields,
		at,
	)
}
