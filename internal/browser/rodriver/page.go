package rodriver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

const browserEventTimeout = 15 * time.Second

// page adapts *rod.Page to browser.Page. The methods are the fallback
// automation primitives used when no debug channel is bound.
type page struct {
	rp      *rod.Page
	browser *rod.Browser
	logger  *zap.Logger
}

func (p *page) ID() string { return string(p.rp.TargetID) }

// Attach opens a dedicated flat session on the target. It is independent
// of the session rod uses for the page itself.
func (p *page) Attach(ctx context.Context) (browser.Channel, error) {
	res, err := proto.TargetAttachToTarget{
		TargetID: p.rp.TargetID,
		Flatten:  true,
	}.Call(p.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("attach to target: %w", err)
	}
	return newChannel(p.browser, res.SessionID, p.logger), nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	return p.rp.Context(ctx).Navigate(url)
}

func (p *page) Back(ctx context.Context) error {
	return p.rp.Context(ctx).NavigateBack()
}

func (p *page) Forward(ctx context.Context) error {
	return p.rp.Context(ctx).NavigateForward()
}

func (p *page) Reload(ctx context.Context) error {
	return p.rp.Context(ctx).Reload()
}

func (p *page) Info(ctx context.Context) (browser.PageInfo, error) {
	info, err := p.rp.Context(ctx).Info()
	if err != nil {
		return browser.PageInfo{}, err
	}
	return browser.PageInfo{URL: info.URL, Title: info.Title}, nil
}

func (p *page) HTML(ctx context.Context) (string, error) {
	return p.rp.Context(ctx).HTML()
}

func (p *page) Click(ctx context.Context, x, y float64) error {
	rp := p.rp.Context(ctx)
	if err := rp.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return rp.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (p *page) Scroll(ctx context.Context, x, y, deltaX, deltaY float64) error {
	rp := p.rp.Context(ctx)
	if err := rp.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return rp.Mouse.Scroll(deltaX, deltaY, 1)
}

func (p *page) InsertText(ctx context.Context, text string) error {
	return p.rp.Context(ctx).InsertText(text)
}

// Press types key with the modifier keys held around it. Characters rod
// has no layout entry for are inserted as text.
func (p *page) Press(ctx context.Context, key string, modifiers int) error {
	rp := p.rp.Context(ctx)
	k, err := lookupKey(key)
	if insertsText(err, modifiers) {
		return rp.InsertText(key)
	}
	if err != nil {
		return err
	}
	return rp.KeyActions().Press(heldKeys(modifiers)...).Type(k).Do()
}

func (p *page) KeyDown(ctx context.Context, key string, modifiers int) error {
	rp := p.rp.Context(ctx)
	k, err := lookupKey(key)
	if insertsText(err, modifiers) {
		return rp.InsertText(key)
	}
	if err != nil {
		return err
	}
	for _, m := range heldKeys(modifiers) {
		if err := rp.Keyboard.Press(m); err != nil {
			return err
		}
	}
	return rp.Keyboard.Press(k)
}

// KeyUp releases key and then the modifiers its KeyDown held.
func (p *page) KeyUp(ctx context.Context, key string, modifiers int) error {
	rp := p.rp.Context(ctx)
	k, err := lookupKey(key)
	if insertsText(err, modifiers) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := rp.Keyboard.Release(k); err != nil {
		return err
	}
	for _, m := range heldKeys(modifiers) {
		if err := rp.Keyboard.Release(m); err != nil {
			return err
		}
	}
	return nil
}
