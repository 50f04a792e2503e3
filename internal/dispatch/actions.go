package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

const defaultScrollAmount = 300

type actionDef struct {
	// parse validates params before anything touches the browser.
	parse func(Params) (interface{}, error)
	// check applies dispatcher policy to parsed args, also before any effect.
	check func(d *Dispatcher, args interface{}) error
	exec  func(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error)
}

var actions = map[string]actionDef{
	"navigate": {parse: parseNavigate, check: checkNavigate, exec: execNavigate},
	"back":     {parse: noArgs, exec: history(browser.Page.Back)},
	"forward":  {parse: noArgs, exec: history(browser.Page.Forward)},
	"refresh":  {parse: noArgs, exec: history(browser.Page.Reload)},
	"click":    {parse: parsePoint, exec: execClick},
	"scroll":   {parse: parseScroll, exec: execScroll},
	"type":     {parse: parseText, exec: execType},
	"press":    {parse: parseKeyArgs, exec: execPress},
	"keydown":  {parse: parseKeyArgs, exec: execKeyDown},
	"keyup":    {parse: parseKeyArgs, exec: execKeyUp},
	"content":  {parse: noArgs, exec: execContent},
}

func noArgs(Params) (interface{}, error) { return nil, nil }

func parseKeyArgs(p Params) (interface{}, error) { return parseKey(p) }

// navigation

func parseNavigate(p Params) (interface{}, error) {
	raw, err := p.String("url")
	if err != nil {
		return nil, err
	}
	url := NormalizeURL(raw)
	if url == "" {
		return nil, fmt.Errorf("parameter %q must not be empty", "url")
	}
	return url, nil
}

func checkNavigate(d *Dispatcher, args interface{}) error {
	return d.opts.Domains.Check(args.(string))
}

// NormalizeURL trims raw and prefixes https:// when no scheme is given.
func NormalizeURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if strings.Contains(url, "://") {
		return url
	}
	for _, scheme := range []string{"about:", "data:", "javascript:", "chrome:", "file:", "view-source:"} {
		if strings.HasPrefix(strings.ToLower(url), scheme) {
			return url
		}
	}
	return "https://" + strings.TrimPrefix(url, "//")
}

func execNavigate(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	url := args.(string)
	return d.navigate(ctx, t.page, "navigate", func(ctx context.Context) error {
		return t.page.Navigate(ctx, url)
	})
}

func history(step func(browser.Page, context.Context) error) func(context.Context, *Dispatcher, target, interface{}) (map[string]interface{}, error) {
	return func(ctx context.Context, d *Dispatcher, t target, _ interface{}) (map[string]interface{}, error) {
		return d.navigate(ctx, t.page, "history", func(ctx context.Context) error {
			return step(t.page, ctx)
		})
	}
}

// navigate runs a bounded navigation. Only stale-handle errors fail the
// action; anything else is logged and the page state is reported as is.
func (d *Dispatcher) navigate(ctx context.Context, page browser.Page, kind string, run func(context.Context) error) (map[string]interface{}, error) {
	navCtx, cancel := context.WithTimeout(ctx, d.opts.NavigationTimeout)
	navErr := run(navCtx)
	cancel()

	if navErr != nil {
		if browser.IsStale(navErr) {
			return nil, navErr
		}
		d.logger.Info("Navigation did not complete cleanly", zap.String("kind", kind), zap.Error(navErr))
	}

	snap, err := d.session.Refresh(ctx, page)
	if err != nil && browser.IsStale(err) {
		return nil, err
	}

	fields := map[string]interface{}{"url": snap.URL, "title": snap.Title}
	if navErr != nil {
		fields["warning"] = navErr.Error()
	}
	return fields, nil
}

// pointer input

type point struct{ x, y float64 }

func parsePoint(p Params) (interface{}, error) {
	x, err := p.Float("x")
	if err != nil {
		return nil, err
	}
	y, err := p.Float("y")
	if err != nil {
		return nil, err
	}
	return point{x, y}, nil
}

func execClick(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	pt := args.(point)
	if t.channel == nil {
		return nil, t.page.Click(ctx, pt.x, pt.y)
	}

	events := []browser.MouseEvent{
		{Type: browser.MouseMoved, X: pt.x, Y: pt.y},
		{Type: browser.MousePressed, X: pt.x, Y: pt.y, Button: "left", ClickCount: 1},
		{Type: browser.MouseReleased, X: pt.x, Y: pt.y, Button: "left", ClickCount: 1},
	}
	for _, ev := range events {
		if err := t.channel.DispatchMouse(ctx, ev); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

type scrollArgs struct {
	dx, dy float64
	x, y   float64
	at     bool
}

func parseScroll(p Params) (interface{}, error) {
	dir, err := p.String("direction")
	if err != nil {
		return nil, err
	}
	amount, ok, err := p.OptFloat("amount")
	if err != nil {
		return nil, err
	}
	if !ok {
		amount = defaultScrollAmount
	}
	if amount <= 0 {
		return nil, fmt.Errorf("parameter %q must be positive", "amount")
	}

	var args scrollArgs
	switch strings.ToLower(dir) {
	case "down":
		args.dy = amount
	case "up":
		args.dy = -amount
	case "right":
		args.dx = amount
	case "left":
		args.dx = -amount
	default:
		return nil, fmt.Errorf("invalid scroll direction %q", dir)
	}

	if p.Has("x") || p.Has("y") {
		if args.x, err = p.Float("x"); err != nil {
			return nil, err
		}
		if args.y, err = p.Float("y"); err != nil {
			return nil, err
		}
		args.at = true
	}
	return args, nil
}

func execScroll(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	s := args.(scrollArgs)
	if !s.at {
		s.x = float64(d.opts.ViewportWidth) / 2
		s.y = float64(d.opts.ViewportHeight) / 2
	}
	if t.channel == nil {
		return nil, t.page.Scroll(ctx, s.x, s.y, s.dx, s.dy)
	}
	return nil, t.channel.DispatchMouse(ctx, browser.MouseEvent{
		Type:   browser.MouseWheel,
		X:      s.x,
		Y:      s.y,
		DeltaX: s.dx,
		DeltaY: s.dy,
	})
}

// keyboard input

func parseText(p Params) (interface{}, error) {
	return p.String("text")
}

func execType(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	text := args.(string)
	if text == "" {
		return nil, nil
	}
	if t.channel == nil {
		return nil, t.page.InsertText(ctx, text)
	}
	return nil, t.channel.InsertText(ctx, text)
}

func execPress(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	k := args.(keyStroke)
	if t.channel == nil {
		return nil, t.page.Press(ctx, k.key, k.modifiers)
	}
	if err := keyEvent(ctx, t.channel, browser.KeyDown, k); err != nil {
		return nil, err
	}
	return nil, keyEvent(ctx, t.channel, browser.KeyUp, k)
}

// execKeyDown inserts printable characters as text so that the matching
// keyup cannot produce a second copy.
func execKeyDown(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	k := args.(keyStroke)
	if k.printable() {
		if t.channel == nil {
			return nil, t.page.InsertText(ctx, k.key)
		}
		return nil, t.channel.InsertText(ctx, k.key)
	}
	if t.channel == nil {
		return nil, t.page.KeyDown(ctx, k.key, k.modifiers)
	}
	return nil, keyEvent(ctx, t.channel, browser.KeyDown, k)
}

func execKeyUp(ctx context.Context, d *Dispatcher, t target, args interface{}) (map[string]interface{}, error) {
	k := args.(keyStroke)
	if k.printable() {
		return nil, nil
	}
	if t.channel == nil {
		return nil, t.page.KeyUp(ctx, k.key, k.modifiers)
	}
	return nil, keyEvent(ctx, t.channel, browser.KeyUp, k)
}

func keyEvent(ctx context.Context, ch browser.Channel, typ browser.KeyEventType, k keyStroke) error {
	code, vk, text := k.resolve()
	ev := browser.KeyEvent{
		Type:                  typ,
		Key:                   k.key,
		Code:                  code,
		Modifiers:             k.modifiers,
		WindowsVirtualKeyCode: vk,
	}
	if typ == browser.KeyDown {
		if text == "" {
			// No character: keep the browser from synthesizing one.
			ev.Type = browser.RawKeyDown
		}
		ev.Text = text
	}
	return ch.DispatchKey(ctx, ev)
}

// inspection

const hiddenElements = "script, style, svg, noscript, template"

func execContent(ctx context.Context, d *Dispatcher, t target, _ interface{}) (map[string]interface{}, error) {
	html, err := t.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	text, err := VisibleText(html)
	if err != nil {
		return nil, err
	}
	text, truncated := truncate(text, d.opts.ContentMaxLength)

	snap := d.session.Snapshot()
	return map[string]interface{}{
		"content":   text,
		"url":       snap.URL,
		"title":     snap.Title,
		"truncated": truncated,
	}, nil
}

// VisibleText extracts the human-readable text of an HTML document with
// whitespace collapsed.
func VisibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(hiddenElements).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return strings.Join(strings.Fields(root.Text()), " "), nil
}

func truncate(s string, max int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	return string(runes[:max]), true
}

func (d *Dispatcher) screenshot() Result {
	if !d.session.Snapshot().Running {
		return Fail(browser.ErrNotRunning)
	}
	frame := d.session.LastFrame()
	if len(frame) == 0 {
		return Fail(browser.ErrNoFrame)
	}
	return OK(map[string]interface{}{
		"data":     base64.StdEncoding.EncodeToString(frame),
		"mimeType": mimetype.Detect(frame).String(),
		"size":     len(frame),
	})
}
