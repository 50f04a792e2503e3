// Package rodriver implements browser.Driver on top of go-rod and the
// Chrome DevTools Protocol.
package rodriver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

// Hides the most obvious automation fingerprint from page scripts.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// Driver launches Chromium with a persistent profile.
type Driver struct {
	logger *zap.Logger
}

// New creates a driver.
func New(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{logger: logger.Named("rod")}
}

// Launch starts a browser process on opts.ProfileDir and connects to it.
func (d *Driver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Context, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Leakless(true).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Delete(flags.Flag("enable-automation")).
		Set(flags.Flag("no-first-run")).
		Set(flags.Flag("no-default-browser-check"))

	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		l = l.Set(flags.Flag("window-size"),
			strconv.Itoa(opts.ViewportWidth)+","+strconv.Itoa(opts.ViewportHeight))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("start chromium: %w", err)
	}

	// The connection must outlive ctx, which only bounds the launch.
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	d.logger.Info("Connected to browser",
		zap.String("control_url", controlURL),
		zap.String("profile", opts.ProfileDir),
	)

	return newContext(b, l, opts, d.logger), nil
}
