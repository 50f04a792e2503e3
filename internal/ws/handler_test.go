package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser/browsertest"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/dispatch"
)

// echoDispatcher records the actions it receives and echoes them back.
type echoDispatcher struct {
	mu      sync.Mutex
	actions []string
	delay   time.Duration
}

func (e *echoDispatcher) Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	e.actions = append(e.actions, req.Action)
	e.mu.Unlock()
	return dispatch.OK(map[string]interface{}{"action": req.Action})
}

func startServer(t *testing.T, hub *Hub, d Dispatcher) *websocket.Conn {
	t.Helper()
	handler := NewHandler(hub, d, Options{ClientBuffer: 64}, zaptest.NewLogger(t), nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m map[string]interface{}
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

// readResult skips pushed messages until the next result.
func readResult(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	for {
		m := readJSON(t, conn)
		if m["type"] == TypeResult {
			return m
		}
	}
}

func TestConnectionReceivesInitialState(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	hub.SetSource(staticSource{snap: browser.Snapshot{URL: "about:blank", Running: true}})

	conn := startServer(t, hub, &echoDispatcher{})

	m := readJSON(t, conn)
	assert.Equal(t, TypeState, m["type"])
	assert.Equal(t, "about:blank", m["url"])
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestCommandsAnsweredInOrder(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	d := &echoDispatcher{delay: 5 * time.Millisecond}
	conn := startServer(t, hub, d)

	for i, action := range []string{"navigate", "click", "content"} {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id":     i + 1,
			"action": action,
		}))
	}

	for i, action := range []string{"navigate", "click", "content"} {
		res := readResult(t, conn)
		assert.Equal(t, true, res["ok"])
		assert.Equal(t, action, res["action"])
		assert.Equal(t, []string{"1", "2", "3"}[i], res["id"])
	}
}

func TestMalformedCommandGetsErrorResult(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	d := &echoDispatcher{}
	conn := startServer(t, hub, d)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	res := readResult(t, conn)
	assert.NotEmpty(t, res["error"])
	assert.Empty(t, d.actions)
}

func TestCommandWithoutIDGetsRequestID(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	conn := startServer(t, hub, &echoDispatcher{})

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "status"}))

	res := readResult(t, conn)
	assert.True(t, strings.HasPrefix(res["id"].(string), "req_"))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	conn := startServer(t, hub, &echoDispatcher{})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEndToEndWithSession(t *testing.T) {
	drv := browsertest.NewDriver()
	mgr := browser.NewManager(drv, browser.Config{}, zaptest.NewLogger(t), nil)
	hub := NewHub(zaptest.NewLogger(t), nil)
	hub.SetSource(mgr)
	mgr.SetPublisher(hub)
	d := dispatch.New(mgr, dispatch.Options{}, zaptest.NewLogger(t), nil)

	conn := startServer(t, hub, d)
	assert.Equal(t, TypeState, readJSON(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"id": "l", "action": "launch"}))
	res := readResult(t, conn)
	require.Equal(t, true, res["ok"], res["error"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"id": "n", "action": "navigate", "url": "example.com"}))
	res = readResult(t, conn)
	assert.Equal(t, "n", res["id"])
	assert.Equal(t, "https://example.com", res["url"])

	drv.Current().Newest().LastChannel().Emit([]byte("jpeg"))

	for {
		m := readJSON(t, conn)
		if m["type"] == TypeFrame {
			break
		}
	}
}
