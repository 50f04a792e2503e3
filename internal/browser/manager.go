package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/resilience"
)

const pageEventTimeout = 15 * time.Second

// Config configures a Manager.
type Config struct {
	Launch     LaunchOptions
	Screencast ScreencastOptions
}

// Manager owns the one shared browser: launch, close, stale-handle
// recovery and the active page binding.
type Manager struct {
	driver   Driver
	opts     LaunchOptions
	stream   *StreamAdapter
	breaker  *resilience.Breaker
	launches singleflight.Group
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	// lifecycle serializes launch, close, recover and page re-attachment.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	s         session
	publisher Publisher
}

// NewManager creates a manager in the uninitialized state.
func NewManager(driver Driver, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("browser")

	m := &Manager{
		driver:    driver,
		opts:      cfg.Launch,
		logger:    logger,
		metrics:   metrics,
		publisher: nopPublisher{},
	}
	m.stream = NewStreamAdapter(cfg.Screencast, m.handleFrame, logger, metrics)
	m.breaker = resilience.New("browser-launch", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("launch breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return m
}

// SetPublisher sets where frames and state updates are pushed.
func (m *Manager) SetPublisher(p Publisher) {
	if p == nil {
		p = nopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// Launch starts the browser if it is not already running. Concurrent calls
// share one outcome.
func (m *Manager) Launch(ctx context.Context) error {
	// The browser outlives the request that started it.
	ctx = context.WithoutCancel(ctx)
	_, err, shared := m.launches.Do("launch", func() (interface{}, error) {
		return nil, m.launch(ctx)
	})
	if shared {
		m.logger.Debug("launch collapsed into in-flight launch")
	}
	return err
}

func (m *Manager) launch(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	prev := m.s.state
	if prev.Running() {
		m.mu.Unlock()
		return nil
	}
	m.s.state = StateLaunching
	m.mu.Unlock()

	m.logger.Info("Launching browser",
		zap.String("profile", m.opts.ProfileDir),
		zap.Bool("headless", m.opts.Headless),
	)

	fail := func(err error) error {
		m.mu.Lock()
		m.s.state = prev
		m.mu.Unlock()
		m.metrics.RecordLaunch(monitoring.OutcomeError)
		m.logger.Error("Browser launch failed", zap.Error(err))
		return fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := resilience.Call(m.breaker, func() (Context, error) {
		return m.driver.Launch(ctx, m.opts)
	})
	if err != nil {
		return fail(err)
	}

	page, err := newestOrNewPage(ctx, bctx, "")
	if err != nil {
		_ = bctx.Close(ctx)
		return fail(err)
	}

	m.mu.Lock()
	m.s.clear()
	m.s.ctx = bctx
	m.s.state = StateActive
	m.mu.Unlock()

	bctx.Watch(m.handlePageOpened, m.handlePageClosed)

	if err := m.attachLocked(ctx, page); err != nil {
		// The page is still usable through the automation primitives.
		m.logger.Warn("Streaming unavailable on initial page", zap.Error(err))
	}

	m.metrics.RecordLaunch(monitoring.OutcomeOK)
	m.logger.Info("Browser launched", zap.String("page", page.ID()))
	return nil
}

// Close tears the browser down and clears every cached field. Closing a
// browser that is not running is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	state := m.s.state
	bctx := m.s.ctx
	m.mu.RUnlock()

	if state == StateUninitialized || state == StateClosed {
		return nil
	}

	m.stream.Detach(ctx)
	if bctx != nil {
		if err := bctx.Close(ctx); err != nil {
			m.logger.Warn("Browser close reported an error", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.s.clear()
	m.s.state = StateClosed
	pub := m.publisher
	m.mu.Unlock()

	pub.PublishClosed()
	m.logger.Info("Browser closed")
	return nil
}

// Recover rebinds the session to the most recent live page with a fresh
// debug channel. It never panics and reports only success or failure.
func (m *Manager) Recover(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Recovery panicked", zap.Any("panic", r))
			ok = false
		}
		m.metrics.RecordRecovery(ok)
	}()

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if !m.s.state.Running() || m.s.ctx == nil {
		m.mu.Unlock()
		return false
	}
	m.s.state = StateRecovering
	bctx := m.s.ctx
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.s.state == StateRecovering {
			m.s.state = StateActive
		}
		m.mu.Unlock()
	}()

	m.logger.Info("Recovering stale page handle")
	m.stream.Detach(ctx)

	page, err := newestOrNewPage(ctx, bctx, "")
	if err != nil {
		m.logger.Warn("Recovery could not find a live page", zap.Error(err))
		return false
	}
	if err := m.attachLocked(ctx, page); err != nil {
		m.logger.Warn("Recovery attached without a debug channel", zap.Error(err))
		if IsStale(err) {
			return false
		}
	}
	return true
}

// ActivePage returns the bound page and its debug channel. Both are nil
// when no page is active; the channel alone is nil when streaming could
// not be set up.
func (m *Manager) ActivePage() (Page, Channel) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.page, m.s.channel
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.state
}

// Snapshot returns the cached url/title/running view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.snapshot()
}

// LastFrame returns the most recent screencast frame, or nil.
func (m *Manager) LastFrame() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.lastFrame
}

// Refresh re-reads url and title from page, caches them if page is still
// the active one, and broadcasts the resulting state. The returned error
// is the read error, if any; the broadcast happens regardless.
func (m *Manager) Refresh(ctx context.Context, page Page) (Snapshot, error) {
	info, err := page.Info(ctx)

	m.mu.Lock()
	if err == nil && m.s.page != nil && m.s.page.ID() == page.ID() {
		m.s.url = info.URL
		m.s.title = info.Title
	}
	snap := m.s.snapshot()
	pub := m.publisher
	m.mu.Unlock()

	pub.PublishState(snap)
	return snap, err
}

// attachLocked binds page as the active page and starts streaming it.
// Callers hold m.lifecycle.
func (m *Manager) attachLocked(ctx context.Context, page Page) error {
	ch, err := m.stream.Attach(ctx, page)

	m.mu.Lock()
	m.s.page = page
	m.s.channel = ch
	m.mu.Unlock()

	if _, infoErr := m.Refresh(ctx, page); infoErr != nil {
		m.logger.Debug("page info unavailable after attach", zap.Error(infoErr))
	}
	return err
}

func (m *Manager) handleFrame(data []byte) {
	m.mu.Lock()
	if !m.s.state.Running() {
		m.mu.Unlock()
		return
	}
	m.s.lastFrame = data
	pub := m.publisher
	m.mu.Unlock()

	pub.PublishFrame(data)
}

func (m *Manager) handlePageOpened(page Page) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	running := m.s.state.Running()
	current := m.s.page
	m.mu.RUnlock()

	if !running || (current != nil && current.ID() == page.ID()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pageEventTimeout)
	defer cancel()

	m.logger.Info("New page opened, switching stream", zap.String("page", page.ID()))
	if err := m.attachLocked(ctx, page); err != nil {
		m.logger.Warn("Failed to stream new page", zap.String("page", page.ID()), zap.Error(err))
	}
}

func (m *Manager) handlePageClosed(pageID string) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	running := m.s.state.Running()
	current := m.s.page
	bctx := m.s.ctx
	m.mu.RUnlock()

	if !running || current == nil || current.ID() != pageID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pageEventTimeout)
	defer cancel()

	m.stream.Detach(ctx)

	pages, err := bctx.Pages(ctx)
	if err == nil {
		pages = without(pages, pageID)
	}
	if err == nil && len(pages) > 0 {
		next := pages[len(pages)-1]
		m.logger.Info("Active page closed, switching stream",
			zap.String("closed", pageID),
			zap.String("page", next.ID()),
		)
		if err := m.attachLocked(ctx, next); err != nil {
			m.logger.Warn("Failed to stream surviving page", zap.Error(err))
		}
		return
	}

	m.logger.Info("Last page closed", zap.String("closed", pageID))
	m.mu.Lock()
	m.s.page = nil
	m.s.channel = nil
	m.s.url = ""
	m.s.title = ""
	snap := m.s.snapshot()
	pub := m.publisher
	m.mu.Unlock()

	pub.PublishState(snap)
}

// newestOrNewPage returns the most recently opened page other than
// exclude, opening a blank one if none is left.
func newestOrNewPage(ctx context.Context, bctx Context, exclude string) (Page, error) {
	pages, err := bctx.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages = without(pages, exclude)
	if len(pages) > 0 {
		return pages[len(pages)-1], nil
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page, nil
}

func without(pages []Page, id string) []Page {
	if id == "" {
		return pages
	}
	out := pages[:0:0]
	for _, p := range pages {
		if p.ID() != id {
			out = append(out, p)
		}
	}
	return out
}

type nopPublisher struct{}

func (nopPublisher) PublishFrame([]byte)   {}
func (nopPublisher) PublishState(Snapshot) {}
func (nopPublisher) PublishClosed()        {}
