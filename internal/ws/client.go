package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/shared/id"
)

const (
	// DefaultClientBuffer is the broadcast queue depth per viewer.
	DefaultClientBuffer = 32

	replyBuffer = 16
)

// Client is one connected viewer.
//
// Broadcasts go through a bounded queue; when it is full the new message is
// dropped for this viewer only. Command results use their own queue so a
// backlog of frames never displaces them.
type Client struct {
	id      id.ViewerID
	conn    *websocket.Conn
	send    chan []byte
	replies chan []byte
	done    chan struct{}
	once    sync.Once
	metrics *monitoring.Metrics
}

// NewClient creates a client. conn may be nil when the client is driven
// directly through its queues.
func NewClient(conn *websocket.Conn, buffer int, metrics *monitoring.Metrics) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		id:      id.NewViewerID(),
		conn:    conn,
		send:    make(chan []byte, buffer),
		replies: make(chan []byte, replyBuffer),
		done:    make(chan struct{}),
		metrics: metrics,
	}
}

// ID returns the viewer id.
func (c *Client) ID() id.ViewerID {
	return c.id
}

// Send queues a broadcast without blocking. It reports whether the message
// was queued.
func (c *Client) Send(msg []byte, msgType string) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		c.metrics.RecordWSMessage("out", msgType)
		return true
	default:
		c.metrics.RecordDropped(msgType)
		return false
	}
}

// Reply queues a command result. It waits for room rather than dropping
// and gives up only once the client is closed.
func (c *Client) Reply(msg []byte) bool {
	select {
	case c.replies <- msg:
		c.metrics.RecordWSMessage("out", TypeResult)
		return true
	case <-c.done:
		return false
	}
}

// SendChan exposes the broadcast queue.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// ReplyChan exposes the result queue.
func (c *Client) ReplyChan() <-chan []byte {
	return c.replies
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client closed. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// IsClosed reports whether Close was called.
func (c *Client) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
