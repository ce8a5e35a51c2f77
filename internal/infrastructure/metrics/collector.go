package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "myhome"

// Gauges samples live dispatcher state at scrape time.
// Nil funcs are skipped.
type Gauges struct {
	QueueDepth  func() int
	SessionOpen func() bool
}

// Collector holds the dispatch metrics and their registry.
type Collector struct {
	registry *prometheus.Registry

	frames      *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

// NewCollector registers the dispatch metrics on a fresh registry, along
// with the Go runtime and process collectors.
func NewCollector(g Gauges) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "frames_total",
			Help:      "Frames processed by the dispatcher, by outcome and priority.",
		}, []string{"outcome", "priority"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "actions_total",
			Help:      "Submitted actions, by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.frames,
		c.submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if g.QueueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Frames waiting in the priority queue.",
		}, func() float64 { return float64(g.QueueDepth()) }))
	}
	if g.SessionOpen != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "session_open",
			Help:      "1 while a plant session is open.",
		}, func() float64 {
			if g.SessionOpen() {
				return 1
			}
			return 0
		}))
	}

	return c
}

// RecordFrame counts one dispatch outcome.
func (c *Collector) RecordFrame(outcome, priority string) {
	c.frames.WithLabelValues(outcome, priority).Inc()
}

// RecordSubmission counts one submitted action.
func (c *Collector) RecordSubmission(status string) {
	c.submissions.WithLabelValues(status).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
