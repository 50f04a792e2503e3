package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "browserd"

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Browser metrics
	Launches   *prometheus.CounterVec
	Recoveries *prometheus.CounterVec
	Frames     prometheus.Counter

	// Action metrics
	Actions        *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec

	// Viewer metrics
	Viewers    prometheus.Gauge
	WSMessages *prometheus.CounterVec
	Dropped    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON health endpoint.
type Snapshot struct {
	Frames    int64 `json:"frames"`
	Actions   int64 `json:"actions"`
	Failures  int64 `json:"failures"`
	Viewers   int64 `json:"viewers"`
	Dropped   int64 `json:"dropped"`
	Launches  int64 `json:"launches"`
	Recovered int64 `json:"recovered"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// means the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		Launches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_launches_total",
				Help:      "Browser launch attempts by outcome",
			},
			[]string{"outcome"},
		),
		Recoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_recoveries_total",
				Help:      "Stale handle recoveries by outcome",
			},
			[]string{"outcome"},
		),
		Frames: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "screencast_frames_total",
				Help:      "Screencast frames forwarded to viewers",
			},
		),

		Actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Dispatched actions by name and outcome",
			},
			[]string{"action", "outcome"},
		),
		ActionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Action dispatch duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"action"},
		),

		Viewers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "viewers",
				Help:      "Number of connected stream viewers",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
		Dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_dropped_total",
				Help:      "Broadcast messages dropped for slow viewers",
			},
			[]string{"type"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Service uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLaunch records a launch attempt.
func (m *Metrics) RecordLaunch(outcome string) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.mu.Lock()
		m.snapshot.Launches++
		m.mu.Unlock()
	}
}

// RecordRecovery records the result of a stale handle recovery.
func (m *Metrics) RecordRecovery(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeError
	}
	m.Recoveries.WithLabelValues(outcome).Inc()
	if ok {
		m.mu.Lock()
		m.snapshot.Recovered++
		m.mu.Unlock()
	}
}

// RecordFrame counts one forwarded screencast frame.
func (m *Metrics) RecordFrame() {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.mu.Lock()
	m.snapshot.Frames++
	m.mu.Unlock()
}

// RecordAction records a dispatched action.
func (m *Metrics) RecordAction(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action, outcome).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Actions++
	if outcome != OutcomeOK {
		m.snapshot.Failures++
	}
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordDropped counts a broadcast message skipped for a full viewer queue.
func (m *Metrics) RecordDropped(msgType string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(msgType).Inc()
	m.mu.Lock()
	m.snapshot.Dropped++
	m.mu.Unlock()
}

// IncViewers increments connected viewers.
func (m *Metrics) IncViewers() {
	if m == nil {
		return
	}
	m.Viewers.Inc()
	m.mu.Lock()
	m.snapshot.Viewers++
	m.mu.Unlock()
}

// DecViewers decrements connected viewers.
func (m *Metrics) DecViewers() {
	if m == nil {
		return
	}
	m.Viewers.Dec()
	m.mu.Lock()
	m.snapshot.Viewers--
	m.mu.Unlock()
}

// Snapshot returns a copy of the tracked counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Since returns time since the collector was created.
func (m *Metrics) Since() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}

// RunUptime updates the uptime gauge every second until done is closed.
func (m *Metrics) RunUptime(done <-chan struct{}) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-done:
			return
		}
	}
}
