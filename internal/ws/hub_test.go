package ws

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser/browsertest"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
)

type staticSource struct {
	snap  browser.Snapshot
	frame []byte
}

func (s staticSource) Snapshot() browser.Snapshot { return s.snap }
func (s staticSource) LastFrame() []byte          { return s.frame }

func drain(c *Client) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case data := <-c.SendChan():
			var m map[string]interface{}
			if err := sonic.Unmarshal(data, &m); err == nil {
				out = append(out, m)
			}
		default:
			return out
		}
	}
}

func TestRegisterPushesStateThenFrame(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	frame := []byte{0xFF, 0xD8, 0xFF}
	hub.SetSource(staticSource{
		snap:  browser.Snapshot{URL: "https://example.com", Title: "Example", Running: true},
		frame: frame,
	})

	c := NewClient(nil, 8, nil)
	hub.Register(c)

	msgs := drain(c)
	require.Len(t, msgs, 2)
	assert.Equal(t, TypeState, msgs[0]["type"])
	assert.Equal(t, "https://example.com", msgs[0]["url"])
	assert.Equal(t, "Example", msgs[0]["title"])
	assert.Equal(t, true, msgs[0]["running"])
	assert.Equal(t, TypeFrame, msgs[1]["type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(frame), msgs[1]["data"])
}

func TestRegisterWithoutFrameSendsStateOnly(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	hub.SetSource(staticSource{})

	c := NewClient(nil, 8, nil)
	hub.Register(c)

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeState, msgs[0]["type"])
	assert.Equal(t, "", msgs[0]["url"])
	assert.Equal(t, false, msgs[0]["running"])
}

func TestSlowViewerDropsNewMessages(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(zaptest.NewLogger(t), metrics)

	slow := NewClient(nil, 2, metrics)
	fast := NewClient(nil, 16, metrics)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < 5; i++ {
		hub.PublishFrame([]byte{byte(i)})
	}

	slowMsgs := drain(slow)
	require.Len(t, slowMsgs, 2)
	// Oldest messages survive; the overflow was dropped.
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0}), slowMsgs[0]["data"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1}), slowMsgs[1]["data"])

	assert.Len(t, drain(fast), 5)
	assert.Equal(t, int64(3), metrics.Snapshot().Dropped)
}

func TestRepliesBypassFullBroadcastQueue(t *testing.T) {
	c := NewClient(nil, 1, nil)
	require.True(t, c.Send([]byte(`{"type":"frame"}`), TypeFrame))
	require.False(t, c.Send([]byte(`{"type":"frame"}`), TypeFrame))

	assert.True(t, c.Reply([]byte(`{"type":"result"}`)))
	assert.Equal(t, `{"type":"result"}`, string(<-c.ReplyChan()))
}

func TestUnregisterStopsDelivery(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(zaptest.NewLogger(t), metrics)
	a := NewClient(nil, 8, metrics)
	b := NewClient(nil, 8, metrics)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, int64(2), metrics.Snapshot().Viewers)

	hub.Unregister(a)
	hub.Unregister(a)

	assert.True(t, a.IsClosed())
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, int64(1), metrics.Snapshot().Viewers)
	assert.Equal(t, 1, hub.Broadcast(ClosedMessage{Type: TypeClosed}, TypeClosed))
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}

func TestClosedClientRejectsEverything(t *testing.T) {
	c := NewClient(nil, 4, nil)
	c.Close()
	c.Close()

	assert.False(t, c.Send([]byte("x"), TypeFrame))
	assert.False(t, c.Reply([]byte("x")))
}

func TestHubCloseClosesViewers(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	c := NewClient(nil, 4, nil)
	hub.Register(c)

	hub.Close()

	assert.True(t, c.IsClosed())
	assert.Zero(t, hub.ClientCount())
}

func TestHubReceivesSessionEvents(t *testing.T) {
	drv := browsertest.NewDriver()
	mgr := browser.NewManager(drv, browser.Config{}, zaptest.NewLogger(t), nil)
	hub := NewHub(zaptest.NewLogger(t), nil)
	hub.SetSource(mgr)
	mgr.SetPublisher(hub)

	c := NewClient(nil, 64, nil)
	hub.Register(c)
	drain(c)

	ctx := context.Background()
	require.NoError(t, mgr.Launch(ctx))
	drv.Current().Newest().LastChannel().Emit([]byte("frame-1"))
	require.NoError(t, mgr.Close(ctx))

	var types []string
	for _, m := range drain(c) {
		types = append(types, m["type"].(string))
	}
	require.NotEmpty(t, types)
	assert.Contains(t, types, TypeState)
	assert.Contains(t, types, TypeFrame)
	assert.Equal(t, TypeClosed, types[len(types)-1])

	// A viewer joining after close sees a stopped session and no frame.
	late := NewClient(nil, 8, nil)
	hub.Register(late)
	msgs := drain(late)
	require.Len(t, msgs, 1)
	assert.Equal(t, false, msgs[0]["running"])
}

func TestCloseReachesEveryViewerOnce(t *testing.T) {
	drv := browsertest.NewDriver()
	mgr := browser.NewManager(drv, browser.Config{}, zaptest.NewLogger(t), nil)
	hub := NewHub(zaptest.NewLogger(t), nil)
	hub.SetSource(mgr)
	mgr.SetPublisher(hub)

	ctx := context.Background()
	require.NoError(t, mgr.Launch(ctx))
	drv.Current().Newest().LastChannel().Emit([]byte("frame-1"))

	viewers := make([]*Client, 3)
	for i := range viewers {
		viewers[i] = NewClient(nil, 64, nil)
		hub.Register(viewers[i])
		drain(viewers[i])
	}

	require.NoError(t, mgr.Close(ctx))
	require.NoError(t, mgr.Close(ctx))

	for _, v := range viewers {
		closed := 0
		for _, m := range drain(v) {
			if m["type"] == TypeClosed {
				closed++
			}
		}
		assert.Equal(t, 1, closed)
	}

	require.NoError(t, mgr.Launch(ctx))
	assert.True(t, mgr.Snapshot().Running)
}

func TestLateViewerGetsCachedFrame(t *testing.T) {
	drv := browsertest.NewDriver()
	mgr := browser.NewManager(drv, browser.Config{}, zaptest.NewLogger(t), nil)
	hub := NewHub(zaptest.NewLogger(t), nil)
	hub.SetSource(mgr)
	mgr.SetPublisher(hub)

	require.NoError(t, mgr.Launch(context.Background()))
	ch := drv.Current().Newest().LastChannel()
	ch.Emit([]byte("frame-1"))

	first := NewClient(nil, 8, nil)
	hub.Register(first)
	second := NewClient(nil, 8, nil)
	hub.Register(second)

	for _, c := range []*Client{first, second} {
		msgs := drain(c)
		require.Len(t, msgs, 2)
		assert.Equal(t, TypeState, msgs[0]["type"])
		assert.Equal(t, TypeFrame, msgs[1]["type"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("frame-1")), msgs[1]["data"])
	}
	assert.Same(t, ch, drv.Current().Newest().LastChannel())
}

// gatedSource blocks in Snapshot until released.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	running bool
}

func (s *gatedSource) Snapshot() browser.Snapshot {
	close(s.entered)
	<-s.release
	return browser.Snapshot{URL: "https://example.com", Running: s.running}
}

func (s *gatedSource) LastFrame() []byte { return nil }

func TestPublishDuringRegisterReachesNewViewer(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{}), running: true}
	hub.SetSource(src)

	c := NewClient(nil, 8, nil)
	registered := make(chan struct{})
	go func() {
		hub.Register(c)
		close(registered)
	}()
	<-src.entered

	published := make(chan struct{})
	go func() {
		hub.PublishClosed()
		close(published)
	}()

	time.Sleep(20 * time.Millisecond)
	close(src.release)
	<-registered
	<-published

	msgs := drain(c)
	require.Len(t, msgs, 2)
	assert.Equal(t, TypeState, msgs[0]["type"])
	assert.Equal(t, TypeClosed, msgs[1]["type"])
}
