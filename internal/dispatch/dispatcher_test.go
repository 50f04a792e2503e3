package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser/browsertest"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Launch(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) Recover(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockSession) ActivePage() (browser.Page, browser.Channel) {
	args := m.Called()
	page, _ := args.Get(0).(browser.Page)
	ch, _ := args.Get(1).(browser.Channel)
	return page, ch
}

func (m *mockSession) Snapshot() browser.Snapshot {
	return m.Called().Get(0).(browser.Snapshot)
}

func (m *mockSession) LastFrame() []byte {
	frame, _ := m.Called().Get(0).([]byte)
	return frame
}

func (m *mockSession) Refresh(ctx context.Context, page browser.Page) (browser.Snapshot, error) {
	args := m.Called(ctx, page)
	if fn, ok := args.Get(0).(func(context.Context, browser.Page) browser.Snapshot); ok {
		return fn(ctx, page), args.Error(1)
	}
	return args.Get(0).(browser.Snapshot), args.Error(1)
}

// fakeTab returns a live fake page and a channel attached to it.
func fakeTab(t *testing.T) (*browsertest.Page, *browsertest.Channel) {
	t.Helper()
	ctx := context.Background()
	d := browsertest.NewDriver()
	_, err := d.Launch(ctx, browser.LaunchOptions{})
	require.NoError(t, err)

	page := d.Current().Newest()
	ch, err := page.Attach(ctx)
	require.NoError(t, err)
	return page, ch.(*browsertest.Channel)
}

func newDispatcher(t *testing.T, s Session) *Dispatcher {
	return New(s, Options{ContentMaxLength: 40, ViewportWidth: 1000, ViewportHeight: 600}, zaptest.NewLogger(t), nil)
}

func count(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func TestStaleErrorRecoversAndRetriesOnce(t *testing.T) {
	page, ch := fakeTab(t)
	page.FailNext("Navigate", browsertest.ErrTargetClosed)

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Recover", mock.Anything).Return(true).Once()
	s.On("Refresh", mock.Anything, page).Return(browser.Snapshot{URL: "https://example.com", Title: "Example", Running: true}, nil)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{
		Action: "navigate",
		Params: Params{"url": "example.com"},
	})

	require.False(t, res.Failed(), res.ErrorMessage())
	assert.Equal(t, "https://example.com", res["url"])
	assert.Equal(t, 2, count(page.Calls(), "Navigate"))
	s.AssertNumberOfCalls(t, "Recover", 1)
}

func TestStaleErrorTwiceIsReturned(t *testing.T) {
	page, ch := fakeTab(t)
	page.FailNext("Navigate", browsertest.ErrTargetClosed, browsertest.ErrTargetClosed, browsertest.ErrTargetClosed)

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Recover", mock.Anything).Return(true)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{
		Action: "navigate",
		Params: Params{"url": "https://example.com"},
	})

	require.True(t, res.Failed())
	assert.Contains(t, res.ErrorMessage(), "target closed")
	assert.Equal(t, 2, count(page.Calls(), "Navigate"))
	s.AssertNumberOfCalls(t, "Recover", 1)
	s.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestStaleErrorWithFailedRecovery(t *testing.T) {
	page, ch := fakeTab(t)
	ch.DispatchErr = errors.New("Session with given id not found")

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Recover", mock.Anything).Return(false)
	s.On("Snapshot").Return(browser.Snapshot{Running: true})

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{
		Action: "click",
		Params: Params{"x": 10.0, "y": 20.0},
	})

	assert.True(t, res.Failed())
	assert.Contains(t, res.ErrorMessage(), "Session with given id not found")
	assert.Len(t, ch.Mouse(), 0)
	s.AssertNumberOfCalls(t, "Recover", 1)
}

func TestStaleErrorAfterCloseReportsNotRunning(t *testing.T) {
	page, ch := fakeTab(t)
	ch.DispatchErr = browsertest.ErrTargetClosed

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Recover", mock.Anything).Return(false)
	s.On("Snapshot").Return(browser.Snapshot{})

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{
		Action: "type",
		Params: Params{"text": "hi"},
	})

	assert.Equal(t, browser.ErrNotRunning.Error(), res.ErrorMessage())
	s.AssertNumberOfCalls(t, "Recover", 1)
}

func TestNavigationErrorsFailSoft(t *testing.T) {
	page, ch := fakeTab(t)
	page.FailNext("Navigate", errors.New("net::ERR_NAME_NOT_RESOLVED"))

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Refresh", mock.Anything, page).Return(browser.Snapshot{URL: "about:blank", Running: true}, nil).Once()

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{
		Action: "navigate",
		Params: Params{"url": "nowhere.invalid"},
	})

	require.False(t, res.Failed())
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, "about:blank", res["url"])
	assert.Contains(t, res["warning"], "ERR_NAME_NOT_RESOLVED")
	s.AssertExpectations(t)
}

func TestHistoryActions(t *testing.T) {
	page, ch := fakeTab(t)
	ctx := context.Background()
	require.NoError(t, page.Navigate(ctx, "https://a.example"))
	require.NoError(t, page.Navigate(ctx, "https://b.example"))

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Refresh", mock.Anything, page).Return(func(ctx context.Context, p browser.Page) browser.Snapshot {
		info, _ := p.Info(ctx)
		return browser.Snapshot{URL: info.URL, Title: info.Title, Running: true}
	}, nil)

	d := newDispatcher(t, s)

	res := d.Dispatch(ctx, Request{Action: "back"})
	require.False(t, res.Failed())
	res = d.Dispatch(ctx, Request{Action: "forward"})
	require.False(t, res.Failed())
	res = d.Dispatch(ctx, Request{Action: "refresh"})
	require.False(t, res.Failed())

	calls := page.Calls()
	assert.Equal(t, 1, count(calls, "Back"))
	assert.Equal(t, 1, count(calls, "Forward"))
	assert.Equal(t, 1, count(calls, "Reload"))
}

func TestValidationHappensBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"missing action", Request{}, "missing action"},
		{"unknown action", Request{Action: "teleport"}, `unknown action "teleport"`},
		{"navigate without url", Request{Action: "navigate"}, `missing parameter "url"`},
		{"navigate blank url", Request{Action: "navigate", Params: Params{"url": "  "}}, "must not be empty"},
		{"click without y", Request{Action: "click", Params: Params{"x": 1.0}}, `missing parameter "y"`},
		{"click with text coordinate", Request{Action: "click", Params: Params{"x": "left", "y": 1.0}}, "must be a number"},
		{"scroll bad direction", Request{Action: "scroll", Params: Params{"direction": "sideways"}}, "invalid scroll direction"},
		{"scroll negative amount", Request{Action: "scroll", Params: Params{"direction": "up", "amount": -5.0}}, "must be positive"},
		{"type without text", Request{Action: "type"}, `missing parameter "text"`},
		{"keydown without key", Request{Action: "keydown"}, `missing parameter "key"`},
		{"keydown bad modifier", Request{Action: "keydown", Params: Params{"key": "a", "modifiers": []interface{}{"hyper"}}}, "unknown modifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockSession{}
			res := newDispatcher(t, s).Dispatch(context.Background(), tt.req)

			require.True(t, res.Failed())
			assert.Contains(t, res.ErrorMessage(), tt.want)
			s.AssertNotCalled(t, "ActivePage")
			s.AssertNotCalled(t, "Recover", mock.Anything)
		})
	}
}

func TestNavigateOutsideAllowedDomainsIsRejected(t *testing.T) {
	domains, err := NewDomainPolicy([]string{"example.com"})
	require.NoError(t, err)

	for _, url := range []string{"evil.test", "http://localhost:8080", "https://user@example.com", "file:///etc/hosts"} {
		s := &mockSession{}
		d := New(s, Options{Domains: domains}, zaptest.NewLogger(t), nil)

		res := d.Dispatch(context.Background(), Request{Action: "navigate", Params: Params{"url": url}})

		assert.True(t, res.Failed(), url)
		s.AssertNotCalled(t, "ActivePage")
		s.AssertNotCalled(t, "Recover", mock.Anything)
	}
}

func TestNavigateWithinAllowedDomains(t *testing.T) {
	domains, err := NewDomainPolicy([]string{"example.com"})
	require.NoError(t, err)
	page, ch := fakeTab(t)

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Refresh", mock.Anything, page).Return(browser.Snapshot{URL: "https://docs.example.com", Running: true}, nil)
	d := New(s, Options{Domains: domains}, zaptest.NewLogger(t), nil)

	res := d.Dispatch(context.Background(), Request{Action: "navigate", Params: Params{"url": "docs.example.com"}})

	require.False(t, res.Failed(), res.ErrorMessage())
	assert.Equal(t, 1, count(page.Calls(), "Navigate"))
}

func TestNoPageRecoversOnceThenFails(t *testing.T) {
	s := &mockSession{}
	s.On("ActivePage").Return(nil, nil)
	s.On("Recover", mock.Anything).Return(false)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "type", Params: Params{"text": "hi"}})

	assert.Equal(t, browser.ErrNotRunning.Error(), res.ErrorMessage())
	s.AssertNumberOfCalls(t, "Recover", 1)
}

func TestNoPageRecoveredUsesNewPage(t *testing.T) {
	page, ch := fakeTab(t)

	s := &mockSession{}
	s.On("ActivePage").Return(nil, nil).Once()
	s.On("ActivePage").Return(page, ch)
	s.On("Recover", mock.Anything).Return(true).Once()

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "type", Params: Params{"text": "hi"}})

	require.False(t, res.Failed())
	assert.Equal(t, []string{"hi"}, ch.Texts())
}

func TestClickDispatchesFullMouseSequence(t *testing.T) {
	page, ch := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "click", Params: Params{"x": 12.5, "y": 40.0}})
	require.False(t, res.Failed())

	events := ch.Mouse()
	require.Len(t, events, 3)
	assert.Equal(t, browser.MouseMoved, events[0].Type)
	assert.Equal(t, browser.MousePressed, events[1].Type)
	assert.Equal(t, browser.MouseReleased, events[2].Type)
	for _, ev := range events[1:] {
		assert.Equal(t, "left", ev.Button)
		assert.Equal(t, 1, ev.ClickCount)
		assert.Equal(t, 12.5, ev.X)
		assert.Equal(t, 40.0, ev.Y)
	}
}

func TestClickFallsBackToPagePrimitives(t *testing.T) {
	page, _ := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, nil)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "click", Params: Params{"x": 1.0, "y": 2.0}})

	require.False(t, res.Failed())
	assert.Equal(t, 1, count(page.Calls(), "Click"))
}

func TestScroll(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   [4]float64 // x, y, dx, dy
	}{
		{"down default", Params{"direction": "down"}, [4]float64{500, 300, 0, 300}},
		{"up amount", Params{"direction": "up", "amount": 120.0}, [4]float64{500, 300, 0, -120}},
		{"left at point", Params{"direction": "left", "x": 10.0, "y": 20.0}, [4]float64{10, 20, -300, 0}},
		{"right", Params{"direction": "RIGHT", "amount": 50.0}, [4]float64{500, 300, 50, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, ch := fakeTab(t)
			s := &mockSession{}
			s.On("ActivePage").Return(page, ch)

			res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "scroll", Params: tt.params})
			require.False(t, res.Failed(), res.ErrorMessage())

			events := ch.Mouse()
			require.Len(t, events, 1)
			ev := events[0]
			assert.Equal(t, browser.MouseWheel, ev.Type)
			assert.Equal(t, tt.want, [4]float64{ev.X, ev.Y, ev.DeltaX, ev.DeltaY})
		})
	}
}

func TestPrintableKeydownInsertsOnce(t *testing.T) {
	page, ch := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	d := newDispatcher(t, s)
	ctx := context.Background()

	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: Params{"key": "a", "code": "KeyA"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keyup", Params: Params{"key": "a", "code": "KeyA"}}).Failed())

	assert.Equal(t, []string{"a"}, ch.Texts())
	assert.Empty(t, ch.Keys())
}

func TestShiftedPrintableKeydownInsertsText(t *testing.T) {
	page, ch := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{
		Action: "keydown",
		Params: Params{"key": "A", "modifiers": float64(ModShift)},
	})

	require.False(t, res.Failed())
	assert.Equal(t, []string{"A"}, ch.Texts())
}

func TestModifiedKeydownSendsKeyEvent(t *testing.T) {
	page, ch := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	d := newDispatcher(t, s)
	ctx := context.Background()

	params := Params{"key": "a", "modifiers": map[string]interface{}{"ctrl": true, "shift": false}}
	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: params}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keyup", Params: params}).Failed())

	assert.Empty(t, ch.Texts())
	keys := ch.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, browser.RawKeyDown, keys[0].Type)
	assert.Equal(t, ModCtrl, keys[0].Modifiers)
	assert.Equal(t, 65, keys[0].WindowsVirtualKeyCode)
	assert.Equal(t, "KeyA", keys[0].Code)
	assert.Empty(t, keys[0].Text)
	assert.Equal(t, browser.KeyUp, keys[1].Type)
}

func TestNonPrintableKeys(t *testing.T) {
	page, ch := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	d := newDispatcher(t, s)
	ctx := context.Background()

	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: Params{"key": "Enter"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keyup", Params: Params{"key": "Enter"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "press", Params: Params{"key": "Tab"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: Params{"key": "Unidentified", "keyCode": 229.0}}).Failed())

	keys := ch.Keys()
	require.Len(t, keys, 5)

	assert.Equal(t, browser.KeyDown, keys[0].Type)
	assert.Equal(t, 13, keys[0].WindowsVirtualKeyCode)
	assert.Equal(t, "\r", keys[0].Text)
	assert.Equal(t, browser.KeyUp, keys[1].Type)

	assert.Equal(t, browser.RawKeyDown, keys[2].Type)
	assert.Equal(t, 9, keys[2].WindowsVirtualKeyCode)
	assert.Equal(t, browser.KeyUp, keys[3].Type)

	assert.Equal(t, 229, keys[4].WindowsVirtualKeyCode)
	assert.Empty(t, ch.Texts())
}

func TestKeysFallBackToPagePrimitives(t *testing.T) {
	page, _ := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, nil)
	d := newDispatcher(t, s)
	ctx := context.Background()

	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: Params{"key": "x"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keyup", Params: Params{"key": "x"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: Params{"key": "Escape"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keyup", Params: Params{"key": "Escape"}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "press", Params: Params{"key": "Enter"}}).Failed())

	assert.Equal(t, []string{"x"}, page.Texts())
	calls := page.Calls()
	assert.Equal(t, 1, count(calls, "KeyDown"))
	assert.Equal(t, 1, count(calls, "KeyUp"))
	assert.Equal(t, 1, count(calls, "Press"))
}

func TestFallbackKeysCarryModifiers(t *testing.T) {
	page, _ := fakeTab(t)
	s := &mockSession{}
	s.On("ActivePage").Return(page, nil)
	d := newDispatcher(t, s)
	ctx := context.Background()

	require.False(t, d.Dispatch(ctx, Request{Action: "press", Params: Params{"key": "a", "modifiers": 2.0}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keydown", Params: Params{"key": "c", "modifiers": []interface{}{"Meta"}}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "keyup", Params: Params{"key": "c", "modifiers": []interface{}{"Meta"}}}).Failed())
	require.False(t, d.Dispatch(ctx, Request{Action: "press", Params: Params{"key": "é"}}).Failed())

	assert.Equal(t, []browsertest.KeyCall{
		{Op: "Press", Key: "a", Modifiers: ModCtrl},
		{Op: "KeyDown", Key: "c", Modifiers: ModMeta},
		{Op: "KeyUp", Key: "c", Modifiers: ModMeta},
		{Op: "Press", Key: "é"},
	}, page.Keys())
	assert.Empty(t, page.Texts())
}

func TestContent(t *testing.T) {
	page, ch := fakeTab(t)
	page.SetHTML(`<html><head><title>T</title><style>body{}</style></head>
<body><h1>Hello</h1>
<script>var x = 1;</script><noscript>enable js</noscript>
<p>  brave
   new   world </p><svg><text>icon</text></svg><template><p>hidden</p></template></body></html>`)

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Snapshot").Return(browser.Snapshot{URL: "https://x.example", Title: "T", Running: true})

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "content"})

	require.False(t, res.Failed(), res.ErrorMessage())
	assert.Equal(t, "Hello brave new world", res["content"])
	assert.Equal(t, false, res["truncated"])
	assert.Equal(t, "https://x.example", res["url"])
}

func TestContentTruncates(t *testing.T) {
	page, ch := fakeTab(t)
	page.SetHTML("<body><p>" + strings.Repeat("ab ", 100) + "</p></body>")

	s := &mockSession{}
	s.On("ActivePage").Return(page, ch)
	s.On("Snapshot").Return(browser.Snapshot{Running: true})

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "content"})

	require.False(t, res.Failed())
	assert.Len(t, res["content"], 40)
	assert.Equal(t, true, res["truncated"])
}

func TestScreenshotReturnsCachedFrame(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

	s := &mockSession{}
	s.On("Snapshot").Return(browser.Snapshot{Running: true})
	s.On("LastFrame").Return(png)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "screenshot"})

	require.False(t, res.Failed())
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), res["data"])
	assert.Equal(t, "image/png", res["mimeType"])
	s.AssertNotCalled(t, "ActivePage")
}

func TestScreenshotWithoutFrame(t *testing.T) {
	s := &mockSession{}
	s.On("Snapshot").Return(browser.Snapshot{Running: true})
	s.On("LastFrame").Return(nil)

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "screenshot"})

	assert.Equal(t, browser.ErrNoFrame.Error(), res.ErrorMessage())
}

func TestLifecycleActions(t *testing.T) {
	s := &mockSession{}
	s.On("Launch", mock.Anything).Return(nil).Once()
	s.On("Close", mock.Anything).Return(nil).Once()
	s.On("Snapshot").Return(browser.Snapshot{URL: "about:blank", Running: true})
	d := newDispatcher(t, s)
	ctx := context.Background()

	res := d.Dispatch(ctx, Request{Action: "launch"})
	require.False(t, res.Failed())
	assert.Equal(t, true, res["running"])

	res = d.Dispatch(ctx, Request{Action: "status"})
	assert.Equal(t, "about:blank", res["url"])

	res = d.Dispatch(ctx, Request{Action: "Close"})
	require.False(t, res.Failed())
	assert.Equal(t, false, res["running"])

	s.AssertExpectations(t)
	s.AssertNotCalled(t, "Recover", mock.Anything)
}

func TestLaunchFailureIsReturned(t *testing.T) {
	s := &mockSession{}
	s.On("Launch", mock.Anything).Return(errors.New("launch browser: chromium not found"))

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "launch"})

	assert.Equal(t, "launch browser: chromium not found", res.ErrorMessage())
}

func TestPanicBecomesError(t *testing.T) {
	s := &mockSession{}
	s.On("ActivePage").Run(func(mock.Arguments) { panic("boom") })

	res := newDispatcher(t, s).Dispatch(context.Background(), Request{Action: "type", Params: Params{"text": "x"}})

	require.True(t, res.Failed())
	assert.Contains(t, res.ErrorMessage(), "type failed")
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"example.com":              "https://example.com",
		"  example.com/path?q=1  ": "https://example.com/path?q=1",
		"//cdn.example.com":        "https://cdn.example.com",
		"http://example.com":       "http://example.com",
		"https://example.com":      "https://example.com",
		"about:blank":              "about:blank",
		"data:text/html,hi":        "data:text/html,hi",
		"localhost:3000":           "https://localhost:3000",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeURL(in), in)
	}
}
