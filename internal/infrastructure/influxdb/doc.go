// Package influxdb provides InfluxDB connectivity for myhomed.
//
// It wraps the official influxdb-client-go v2 library for dispatch
// telemetry: periodic counter snapshots (dispatch_stats) and per-frame
// delivery outcomes (dispatch_delivery).
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDelivery(cfg.Site.ID, "dropped", "high", actionID, 1, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; write errors
// are delivered through SetOnError.
package influxdb
