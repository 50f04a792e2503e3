package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/dispatch"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/shared/id"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are served from anywhere on loopback
	},
}

// Dispatcher executes one command.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result
}

// Options configure viewer connections.
type Options struct {
	ClientBuffer   int
	MaxMessageSize int64
	Tracer         *tracing.Tracer
}

// Handler serves the duplex viewer channel.
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	opts       Options
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, dispatcher Dispatcher, opts Options, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = DefaultClientBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.Named("ws"),
		metrics:    metrics,
	}
}

// HandleConnection upgrades a gin request.
func (h *Handler) HandleConnection(c *gin.Context) {
	h.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP upgrades the request and serves the viewer until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, h.opts.ClientBuffer, h.metrics)
	h.hub.Register(client)

	go h.writePump(client)
	h.readPump(r.Context(), client)
}

// readPump reads commands and runs them one at a time, so results for one
// connection come back in the order the commands arrived.
func (h *Handler) readPump(parent context.Context, client *Client) {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		h.hub.Unregister(client)
	}()

	conn := client.conn
	conn.SetReadLimit(h.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug("WebSocket read error",
					zap.String("viewer_id", client.ID().String()),
					zap.Error(err),
				)
			}
			return
		}
		h.metrics.RecordWSMessage("in", "command")
		h.handleCommand(ctx, client, data)
	}
}

func (h *Handler) handleCommand(ctx context.Context, client *Client, data []byte) {
	var res dispatch.Result
	req, err := dispatch.ParseRequest(data)
	if err != nil {
		res = dispatch.Fail(err)
	} else {
		if req.ID == "" {
			req.ID = id.NewRequestID().String()
		}
		traceCtx := tracing.WithTraceID(ctx, tracing.TraceID(req.ID))
		_ = tracing.Run(traceCtx, h.opts.Tracer, "command "+req.Action, func(ctx context.Context) error {
			res = h.dispatcher.Dispatch(ctx, req)
			if res.Failed() {
				return errors.New(res.ErrorMessage())
			}
			return nil
		})
	}

	out, err := sonic.Marshal(resultMessage(req.ID, res))
	if err != nil {
		h.logger.Error("Failed to marshal result", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	client.Reply(out)
}

func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	conn := client.conn
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(msgType int, data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(msgType, data); err != nil {
			h.logger.Debug("WebSocket write error",
				zap.String("viewer_id", client.ID().String()),
				zap.Error(err),
			)
			return false
		}
		return true
	}

	for {
		// Results first; frames can wait.
		select {
		case msg := <-client.replies:
			if !write(websocket.TextMessage, msg) {
				return
			}
			continue
		default:
		}

		select {
		case msg := <-client.replies:
			if !write(websocket.TextMessage, msg) {
				return
			}
		case msg := <-client.send:
			if !write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		case <-client.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
