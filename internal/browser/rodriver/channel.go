package rodriver

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

// channel is a flat CDP session attached to one target. It implements
// proto.Client so generated request types can be sent through it.
type channel struct {
	browser *rod.Browser
	id      proto.TargetSessionID
	logger  *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func newChannel(b *rod.Browser, id proto.TargetSessionID, logger *zap.Logger) *channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &channel{
		browser: b,
		id:      id,
		logger:  logger.With(zap.String("session", string(id))),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Call implements proto.Client.
func (c *channel) Call(ctx context.Context, sessionID, method string, params interface{}) ([]byte, error) {
	return c.browser.Call(ctx, sessionID, method, params)
}

// GetSessionID implements proto.Sessionable.
func (c *channel) GetSessionID() proto.TargetSessionID { return c.id }

// GetContext implements proto.Contextable.
func (c *channel) GetContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// bound returns a client for one call bounded by ctx.
func (c *channel) bound(ctx context.Context) *boundChannel {
	return &boundChannel{channel: c, ctx: ctx}
}

type boundChannel struct {
	*channel
	ctx context.Context
}

func (b *boundChannel) GetContext() context.Context { return b.ctx }

func (c *channel) StartScreencast(ctx context.Context, opts browser.ScreencastOptions, onFrame func(browser.Frame)) error {
	// Subscribe before starting so the first frame is not missed.
	events := c.browser.Context(c.GetContext()).Event()
	go func() {
		for msg := range events {
			if msg.SessionID != c.id {
				continue
			}
			var ev proto.PageScreencastFrame
			if !msg.Load(&ev) {
				continue
			}
			onFrame(browser.Frame{Data: ev.Data, SessionID: ev.SessionID, Timestamp: time.Now()})
		}
	}()

	client := c.bound(ctx)
	if err := (proto.PageEnable{}).Call(client); err != nil {
		return err
	}

	format := proto.PageStartScreencastFormatJpeg
	if opts.Format == "png" {
		format = proto.PageStartScreencastFormatPng
	}
	req := proto.PageStartScreencast{Format: format, EveryNthFrame: intPtr(1)}
	if opts.Quality > 0 {
		req.Quality = intPtr(opts.Quality)
	}
	if opts.MaxWidth > 0 {
		req.MaxWidth = intPtr(opts.MaxWidth)
	}
	if opts.MaxHeight > 0 {
		req.MaxHeight = intPtr(opts.MaxHeight)
	}
	return req.Call(client)
}

func (c *channel) StopScreencast(ctx context.Context) error {
	return (proto.PageStopScreencast{}).Call(c.bound(ctx))
}

func (c *channel) AckFrame(ctx context.Context, sessionID int) error {
	return (proto.PageScreencastFrameAck{SessionID: sessionID}).Call(c.bound(ctx))
}

func (c *channel) DispatchMouse(ctx context.Context, ev browser.MouseEvent) error {
	req := proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventType(ev.Type),
		X:          ev.X,
		Y:          ev.Y,
		Modifiers:  ev.Modifiers,
		ClickCount: ev.ClickCount,
		DeltaX:     ev.DeltaX,
		DeltaY:     ev.DeltaY,
	}
	if ev.Button != "" {
		req.Button = proto.InputMouseButton(ev.Button)
	}
	return req.Call(c.bound(ctx))
}

func (c *channel) DispatchKey(ctx context.Context, ev browser.KeyEvent) error {
	return proto.InputDispatchKeyEvent{
		Type:                  proto.InputDispatchKeyEventType(ev.Type),
		Modifiers:             ev.Modifiers,
		Key:                   ev.Key,
		Code:                  ev.Code,
		Text:                  ev.Text,
		WindowsVirtualKeyCode: ev.WindowsVirtualKeyCode,
	}.Call(c.bound(ctx))
}

func (c *channel) InsertText(ctx context.Context, text string) error {
	return proto.InputInsertText{Text: text}.Call(c.bound(ctx))
}

// Detach ends the event subscription and the CDP session.
func (c *channel) Detach(ctx context.Context) error {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()

	return proto.TargetDetachFromTarget{SessionID: c.id}.Call(c.browser.Context(ctx))
}

func intPtr(v int) *int { return &v }
