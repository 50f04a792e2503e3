package rodriver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

// browserContext is a connected Chromium with one persistent profile.
type browserContext struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     browser.LaunchOptions
	logger   *zap.Logger

	mu     sync.Mutex
	order  map[proto.TargetTargetID]int
	next   int
	cancel context.CancelFunc
}

func newContext(b *rod.Browser, l *launcher.Launcher, opts browser.LaunchOptions, logger *zap.Logger) *browserContext {
	return &browserContext{
		browser:  b,
		launcher: l,
		opts:     opts,
		logger:   logger,
		order:    make(map[proto.TargetTargetID]int),
	}
}

// Pages lists live pages oldest first. Chromium reports targets newest
// first, so pages seen for the first time are ranked in reverse.
func (c *browserContext) Pages(ctx context.Context) ([]browser.Page, error) {
	pages, err := c.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	c.mu.Lock()
	for i := len(pages) - 1; i >= 0; i-- {
		c.rankLocked(pages[i].TargetID)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return c.order[pages[i].TargetID] < c.order[pages[j].TargetID]
	})
	c.mu.Unlock()

	out := make([]browser.Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, c.wrap(ctx, p))
	}
	return out, nil
}

func (c *browserContext) rankLocked(id proto.TargetTargetID) {
	if _, ok := c.order[id]; !ok {
		c.next++
		c.order[id] = c.next
	}
}

func (c *browserContext) NewPage(ctx context.Context) (browser.Page, error) {
	p, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	c.mu.Lock()
	c.rankLocked(p.TargetID)
	c.mu.Unlock()
	return c.wrap(ctx, p), nil
}

// wrap prepares a rod page for use: viewport and the stealth script.
// Failures here only degrade the page, so they are logged.
func (c *browserContext) wrap(ctx context.Context, p *rod.Page) *page {
	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		err := proto.EmulationSetDeviceMetricsOverride{
			Width:             c.opts.ViewportWidth,
			Height:            c.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		}.Call(p.Context(ctx))
		if err != nil {
			c.logger.Debug("viewport override failed", zap.String("target", string(p.TargetID)), zap.Error(err))
		}
	}
	if _, err := p.Context(ctx).EvalOnNewDocument(stealthScript); err != nil {
		c.logger.Debug("stealth script failed", zap.String("target", string(p.TargetID)), zap.Error(err))
	}
	return &page{rp: p, browser: c.browser, logger: c.logger}
}

// Watch subscribes to target creation and destruction. Targets that exist
// when Watch is called are not reported as opened.
func (c *browserContext) Watch(onOpen func(browser.Page), onClose func(pageID string)) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	known := make(map[proto.TargetTargetID]bool)
	if pages, err := c.browser.Pages(); err == nil {
		for _, p := range pages {
			known[p.TargetID] = true
		}
	}

	b := c.browser.Context(ctx)
	wait := b.EachEvent(
		func(e *proto.TargetTargetCreated) {
			info := e.TargetInfo
			if info == nil || info.Type != proto.TargetTargetInfoTypePage || known[info.TargetID] {
				return
			}
			known[info.TargetID] = true

			c.mu.Lock()
			c.rankLocked(info.TargetID)
			c.mu.Unlock()

			// Handlers take locks and call back into the browser; keep
			// them off the event loop.
			go func() {
				evCtx, done := context.WithTimeout(ctx, browserEventTimeout)
				defer done()
				p, err := c.browser.Context(evCtx).PageFromTarget(info.TargetID)
				if err != nil {
					c.logger.Debug("opened target unavailable", zap.String("target", string(info.TargetID)), zap.Error(err))
					return
				}
				onOpen(c.wrap(evCtx, p))
			}()
		},
		func(e *proto.TargetTargetDestroyed) {
			delete(known, e.TargetID)
			c.mu.Lock()
			delete(c.order, e.TargetID)
			c.mu.Unlock()
			go onClose(string(e.TargetID))
		},
		func(e *proto.TargetTargetCrashed) {
			c.logger.Warn("Target crashed", zap.String("target", string(e.TargetID)))
		},
	)

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		c.logger.Warn("Target discovery unavailable", zap.Error(err))
	}

	go wait()
}

func (c *browserContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	err := c.browser.Close()
	// Kill does not touch the profile directory, unlike Cleanup.
	c.launcher.Kill()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
