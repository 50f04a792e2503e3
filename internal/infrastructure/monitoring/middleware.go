package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Use the route template so high-cardinality paths collapse.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		metrics.RecordHTTPRequest(method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures action duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	action  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, action string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		action:  action,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(outcome string) {
	t.metrics.RecordAction(t.action, outcome, time.Since(t.start))
}
