package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
)

// Prometheus serves the registry in the text exposition format.
func Prometheus(gatherer prometheus.Gatherer) gin.HandlerFunc {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// MetricsSnapshot is the JSON view of the service counters.
type MetricsSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Session   browser.Snapshot    `json:"session"`
	Counters  monitoring.Snapshot `json:"counters"`
	Summary   MetricsSummary      `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	ErrorRate     float64 `json:"error_rate"`
	DropRate      float64 `json:"drop_rate"`
	Viewers       int64   `json:"viewers"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// MetricsJSON returns the counters as JSON.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	counters := h.metrics.Snapshot()
	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Session:   h.session.Snapshot(),
		Counters:  counters,
		Summary:   summarize(counters, h.metrics.Since()),
	})
}

func summarize(s monitoring.Snapshot, uptime time.Duration) MetricsSummary {
	sum := MetricsSummary{
		Viewers:       s.Viewers,
		UptimeSeconds: uptime.Seconds(),
	}
	if s.Actions > 0 {
		sum.ErrorRate = float64(s.Failures) / float64(s.Actions)
	}
	if s.Frames > 0 {
		sum.DropRate = float64(s.Dropped) / float64(s.Frames)
	}
	return sum
}
