package plant

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

const defaultHealthInterval = 30 * time.Second

// HealthStatus is the coarse state reported on the health topic.
type HealthStatus string

// Health statuses.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on myhome/health/dispatcher.
type HealthMessage struct {
	SiteID        string          `json:"site_id"`
	Version       string          `json:"version"`
	Status        HealthStatus    `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Queue         QueueHealth     `json:"queue"`
	Dispatch      DispatchHealth  `json:"dispatch"`
	Config        DispatchSummary `json:"config"`
}

// QueueHealth is the queue depth per priority.
type QueueHealth struct {
	Depth  int `json:"depth"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// DispatchHealth mirrors dispatcher.Stats.
type DispatchHealth struct {
	Sent           uint64     `json:"sent"`
	Held           uint64     `json:"held"`
	Dropped        uint64     `json:"dropped"`
	Requeued       uint64     `json:"requeued"`
	SessionsOpened uint64     `json:"sessions_opened"`
	SessionsClosed uint64     `json:"sessions_closed"`
	Errors         uint64     `json:"errors"`
	SessionOpen    bool       `json:"session_open"`
	LastSend       *time.Time `json:"last_send,omitempty"`
}

// DispatchSummary describes the active dispatch tuning.
type DispatchSummary struct {
	PacingMS int64  `json:"pacing_ms"`
	Policy   string `json:"policy"`
}

// HealthSource is what the reporter samples. Satisfied by *Controller.
type HealthSource interface {
	QueueDepthAt(p queue.Priority) int
	Stats() dispatcher.Stats
	DispatchConfig() dispatcher.Config
}

// HealthPublisher publishes health messages. Satisfied by *mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsWriter stores periodic samples. Satisfied by *influxdb.Client.
type StatsWriter interface {
	WriteDispatchStats(siteID string, s influxdb.DispatchSample)
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	SiteID  string
	Version string

	// Interval is how often to report. Default: 30 seconds.
	Interval time.Duration

	Source HealthSource

	// Publisher and Stats are optional; nil skips that sink.
	Publisher HealthPublisher
	Stats     StatsWriter
}

// HealthReporter periodically publishes dispatcher health to MQTT and
// writes a stats sample to InfluxDB.
type HealthReporter struct {
	siteID    string
	version   string
	startTime time.Time
	interval  time.Duration
	source    HealthSource
	publisher HealthPublisher
	stats     StatsWriter
	topics    mqtt.Topics

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		siteID:    cfg.SiteID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		source:    cfg.Source,
		publisher: cfg.Publisher,
		stats:     cfg.Stats,
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publish(h.Snapshot(HealthStopping, ""))
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(h.Snapshot(HealthStarting, "dispatcher starting"))
}

// ReportNow samples and reports immediately.
func (h *HealthReporter) ReportNow() error {
	status, reason := h.determineStatus()
	msg := h.Snapshot(status, reason)
	h.writeSample(msg)
	return h.publish(msg)
}

// Snapshot builds a health message from the current source state.
func (h *HealthReporter) Snapshot(status HealthStatus, reason string) HealthMessage {
	now := time.Now()
	msg := HealthMessage{
		SiteID:        h.siteID,
		Version:       h.version,
		Status:        status,
		Reason:        reason,
		Timestamp:     now.UTC(),
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
	}
	if h.source == nil {
		return msg
	}

	msg.Queue = QueueHealth{
		High:   h.source.QueueDepthAt(queue.High),
		Medium: h.source.QueueDepthAt(queue.Medium),
		Low:    h.source.QueueDepthAt(queue.Low),
	}
	msg.Queue.Depth = msg.Queue.High + msg.Queue.Medium + msg.Queue.Low

	st := h.source.Stats()
	msg.Dispatch = DispatchHealth{
		Sent:           st.Sent,
		Held:           st.Held,
		Dropped:        st.Dropped,
		Requeued:       st.Requeued,
		SessionsOpened: st.SessionsOpened,
		SessionsClosed: st.SessionsClosed,
		Errors:         st.ErrorsTotal,
		SessionOpen:    st.SessionOpen,
	}
	if !st.LastSend.IsZero() {
		last := st.LastSend.UTC()
		msg.Dispatch.LastSend = &last
	}

	cfg := h.source.DispatchConfig()
	msg.Config = DispatchSummary{
		PacingMS: cfg.Pacing.Milliseconds(),
		Policy:   cfg.Policy.String(),
	}
	return msg
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.ReportNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.ReportNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus reports degraded when MQTT is down, or when frames have
// been dropped while work is still queued.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher != nil && !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source == nil {
		return HealthHealthy, ""
	}
	if st := h.source.Stats(); st.Dropped > 0 && h.depth() > 0 {
		return HealthDegraded, "frames dropped with work pending"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) depth() int {
	return h.source.QueueDepthAt(queue.High) + h.source.QueueDepthAt(queue.Medium) + h.source.QueueDepthAt(queue.Low)
}

func (h *HealthReporter) writeSample(msg HealthMessage) {
	if h.stats == nil {
		return
	}
	h.stats.WriteDispatchStats(h.siteID, influxdb.DispatchSample{
		QueueDepth:     msg.Queue.Depth,
		Sent:           msg.Dispatch.Sent,
		Held:           msg.Dispatch.Held,
		Dropped:        msg.Dispatch.Dropped,
		Requeued:       msg.Dispatch.Requeued,
		SessionsOpened: msg.Dispatch.SessionsOpened,
		SessionsClosed: msg.Dispatch.SessionsClosed,
		Errors:         msg.Dispatch.Errors,
		SessionOpen:    msg.Dispatch.SessionOpen,
	})
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topics.Health("dispatcher"), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
