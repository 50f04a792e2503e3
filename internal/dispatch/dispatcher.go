package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
)

// Session is the part of browser.Manager the dispatcher drives.
type Session interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	Recover(ctx context.Context) bool
	ActivePage() (browser.Page, browser.Channel)
	Snapshot() browser.Snapshot
	LastFrame() []byte
	Refresh(ctx context.Context, page browser.Page) (browser.Snapshot, error)
}

// Options tune action behaviour.
type Options struct {
	NavigationTimeout time.Duration
	ContentMaxLength  int
	ViewportWidth     int
	ViewportHeight    int
	// Domains limits navigate targets. The zero value allows any URL.
	Domains DomainPolicy
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.ContentMaxLength <= 0 {
		o.ContentMaxLength = 50000
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = 1280
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = 800
	}
	return o
}

// Dispatcher maps action requests onto the shared browser session.
// It is safe for concurrent use; concurrent actions are not serialized.
type Dispatcher struct {
	session Session
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a dispatcher over session.
func New(session Session, opts Options, logger *zap.Logger, metrics *monitoring.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		session: session,
		opts:    opts.withDefaults(),
		logger:  logger.Named("dispatch"),
		metrics: metrics,
	}
}

// target is the page an action runs against.
type target struct {
	page    browser.Page
	channel browser.Channel
}

// Dispatch runs one action and always returns a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res Result) {
	name := strings.ToLower(strings.TrimSpace(req.Action))
	timer := monitoring.NewTimer(d.metrics, metricName(name))

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Action panicked",
				zap.String("action", name),
				zap.String("request_id", req.ID),
				zap.Any("panic", r),
			)
			res = Fail(fmt.Errorf("%s failed: internal error", name))
			timer.Stop(monitoring.OutcomePanic)
			return
		}
		if res.Failed() {
			timer.Stop(monitoring.OutcomeError)
		} else {
			timer.Stop(monitoring.OutcomeOK)
		}
	}()

	d.logger.Debug("Dispatching action", zap.String("action", name), zap.String("request_id", req.ID))

	if name == "" {
		return Fail(fmt.Errorf("missing action"))
	}

	switch name {
	case "launch":
		return d.launch(ctx)
	case "close":
		return d.close(ctx)
	case "status":
		return OK(snapshotFields(d.session.Snapshot()))
	case "screenshot":
		return d.screenshot()
	}

	act, ok := actions[name]
	if !ok {
		return Fail(fmt.Errorf("unknown action %q", req.Action))
	}

	params := req.Params
	if params == nil {
		params = Params{}
	}
	args, err := act.parse(params)
	if err != nil {
		return Fail(err)
	}
	if act.check != nil {
		if err := act.check(d, args); err != nil {
			return Fail(err)
		}
	}

	t, ok := d.target(ctx)
	if !ok {
		return Fail(browser.ErrNotRunning)
	}

	fields, err := act.exec(ctx, d, t, args)
	if err != nil && browser.IsStale(err) {
		d.logger.Info("Stale page handle, recovering",
			zap.String("action", name),
			zap.Error(err),
		)
		if !d.session.Recover(ctx) {
			// Closed underneath the action.
			if !d.session.Snapshot().Running {
				return Fail(browser.ErrNotRunning)
			}
			return Fail(err)
		}
		if t, ok = d.target(ctx); !ok {
			return Fail(browser.ErrNotRunning)
		}
		fields, err = act.exec(ctx, d, t, args)
	}
	if err != nil {
		d.logger.Warn("Action failed",
			zap.String("action", name),
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return Fail(err)
	}
	return OK(fields)
}

// target returns the active page, recovering once if there is none.
func (d *Dispatcher) target(ctx context.Context) (target, bool) {
	page, ch := d.session.ActivePage()
	if page == nil {
		if !d.session.Recover(ctx) {
			return target{}, false
		}
		page, ch = d.session.ActivePage()
		if page == nil {
			return target{}, false
		}
	}
	return target{page: page, channel: ch}, true
}

func (d *Dispatcher) launch(ctx context.Context) Result {
	if err := d.session.Launch(ctx); err != nil {
		return Fail(err)
	}
	return OK(snapshotFields(d.session.Snapshot()))
}

func (d *Dispatcher) close(ctx context.Context) Result {
	if err := d.session.Close(ctx); err != nil {
		return Fail(err)
	}
	return OK(map[string]interface{}{"running": false})
}

func snapshotFields(s browser.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"running": s.Running,
		"url":     s.URL,
		"title":   s.Title,
	}
}

// metricName bounds the action label to known names.
func metricName(name string) string {
	switch name {
	case "launch", "close", "status", "screenshot":
		return name
	}
	if _, ok := actions[name]; ok {
		return name
	}
	return "unknown"
}
