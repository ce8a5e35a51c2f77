// Package metrics exposes dispatch counters in Prometheus format.
//
// A Collector owns its own registry so tests and the CLI can create
// several without colliding on the global default registry. Gauges that
// mirror live state (queue depth, session open) are sampled at scrape
// time through callbacks rather than pushed.
//
// Server serves the registry over HTTP using a chi router. It is only
// started when metrics.enabled is set; the dispatcher never depends on it.
package metrics
