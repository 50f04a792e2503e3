package ws

import (
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
)

// Source supplies what a late joiner is shown on connect.
type Source interface {
	Snapshot() browser.Snapshot
	LastFrame() []byte
}

// Hub is the set of connected viewers. It implements browser.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	source  Source

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

var _ browser.Publisher = (*Hub)(nil)

type queued struct {
	kind string
	data []byte
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.Named("hub"),
		metrics: metrics,
	}
}

// SetSource sets where the initial state and frame for new viewers come from.
func (h *Hub) SetSource(src Source) {
	h.mu.Lock()
	h.source = src
	h.mu.Unlock()
}

// Register adds client and pushes the current state followed by the cached
// frame, if any.
//
// The source is read under the write lock, so a concurrent publish is either
// reflected in the snapshot or delivered after it. Publishers must not hold
// locks the source needs.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	for _, m := range h.initialLocked() {
		client.Send(m.data, m.kind)
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.IncViewers()
	h.logger.Info("Viewer connected",
		zap.String("viewer_id", client.ID().String()),
		zap.Int("viewers", count),
	)
}

func (h *Hub) initialLocked() []queued {
	if h.source == nil {
		return nil
	}
	var initial []queued
	if data, err := sonic.Marshal(stateMessage(h.source.Snapshot())); err == nil {
		initial = append(initial, queued{TypeState, data})
	}
	if frame := h.source.LastFrame(); len(frame) > 0 {
		if data, err := sonic.Marshal(frameMessage(frame)); err == nil {
			initial = append(initial, queued{TypeFrame, data})
		}
	}
	return initial
}

// Unregister removes client and closes it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	client.Close()
	if !ok {
		return
	}

	h.metrics.DecViewers()
	h.logger.Info("Viewer disconnected",
		zap.String("viewer_id", client.ID().String()),
		zap.Int("viewers", count),
	)
}

// Broadcast serializes v once and queues it for every viewer. Returns the
// number of viewers that accepted it.
func (h *Hub) Broadcast(v interface{}, msgType string) int {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.String("type", msgType), zap.Error(err))
		return 0
	}
	return h.BroadcastRaw(data, msgType)
}

// BroadcastRaw queues already serialized data for every viewer.
func (h *Hub) BroadcastRaw(data []byte, msgType string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients {
		if client.Send(data, msgType) {
			delivered++
		}
	}
	return delivered
}

// PublishFrame implements browser.Publisher.
func (h *Hub) PublishFrame(data []byte) {
	h.Broadcast(frameMessage(data), TypeFrame)
}

// PublishState implements browser.Publisher.
func (h *Hub) PublishState(s browser.Snapshot) {
	h.Broadcast(stateMessage(s), TypeState)
}

// PublishClosed implements browser.Publisher.
func (h *Hub) PublishClosed() {
	h.Broadcast(ClosedMessage{Type: TypeClosed}, TypeClosed)
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes and removes every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.Close()
		h.metrics.DecViewers()
	}
}
