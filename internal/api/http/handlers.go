package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/dispatch"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/shared/id"
)

// maxBodySize bounds command bodies.
const maxBodySize = 1 << 20

// Dispatcher executes one command.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result
}

// StatusSource reports the session snapshot.
type StatusSource interface {
	Snapshot() browser.Snapshot
}

// Handlers contains all HTTP handlers
type Handlers struct {
	dispatcher Dispatcher
	session    StatusSource
	stream     gin.HandlerFunc
	port       int
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewHandlers creates a new handler set. stream serves WebSocket upgrades
// that arrive on the root path.
func NewHandlers(dispatcher Dispatcher, session StatusSource, stream gin.HandlerFunc, port int, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		dispatcher: dispatcher,
		session:    session,
		stream:     stream,
		port:       port,
		metrics:    metrics,
		logger:     logger.Named("http"),
	}
}

// Root upgrades WebSocket requests and otherwise reports the session status.
func (h *Handlers) Root(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) && h.stream != nil {
		h.stream(c)
		return
	}
	h.Status(c)
}

// Status reports the session status and the port the service listens on.
func (h *Handlers) Status(c *gin.Context) {
	snap := h.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"running": snap.Running,
		"url":     snap.URL,
		"title":   snap.Title,
		"port":    h.port,
	})
}

// Command dispatches one action from a JSON body. The result is returned
// with status 200 whether or not the action succeeded; only an unreadable
// body is a 400.
func (h *Handlers) Command(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, dispatch.Fail(err))
		return
	}

	req, err := dispatch.ParseRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dispatch.Fail(err))
		return
	}
	if req.ID == "" {
		req.ID = id.NewRequestID().String()
	}

	res := h.dispatcher.Dispatch(c.Request.Context(), req)
	if res.Failed() {
		h.logger.Debug("Command failed",
			zap.String("action", req.Action),
			zap.String("request_id", req.ID),
			zap.String("error", res.ErrorMessage()),
		)
	}
	c.JSON(http.StatusOK, res)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snap := h.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "browserd",
		"browser":        snap,
		"uptime_seconds": h.metrics.Since().Seconds(),
		"counters":       h.metrics.Snapshot(),
	})
}
