// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

// ErrTargetClosed is what a dead handle reports.
var ErrTargetClosed = fmt.Errorf("%w: target closed", browser.ErrStaleHandle)

// Driver launches fake contexts.
type Driver struct {
	// LaunchErr, when set, fails every launch.
	LaunchErr error
	// LaunchDelay slows launches down so concurrent callers overlap.
	LaunchDelay time.Duration
	// StartWith is the number of pages a fresh context opens with.
	StartWith int

	launches atomic.Int32

	mu       sync.Mutex
	contexts []*Context
}

// NewDriver returns a driver whose contexts start with one blank page.
func NewDriver() *Driver {
	return &Driver{StartWith: 1}
}

func (d *Driver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Context, error) {
	d.launches.Add(1)
	if d.LaunchDelay > 0 {
		select {
		case <-time.After(d.LaunchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.LaunchErr != nil {
		return nil, d.LaunchErr
	}

	c := &Context{Opts: opts}
	for i := 0; i < d.StartWith; i++ {
		c.addPage("about:blank")
	}

	d.mu.Lock()
	d.contexts = append(d.contexts, c)
	d.mu.Unlock()
	return c, nil
}

// Launches returns how many times Launch was called.
func (d *Driver) Launches() int {
	return int(d.launches.Load())
}

// Current returns the most recently launched context, or nil.
func (d *Driver) Current() *Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.contexts) == 0 {
		return nil
	}
	return d.contexts[len(d.contexts)-1]
}

// Context is a fake browser context.
type Context struct {
	Opts     browser.LaunchOptions
	CloseErr error

	mu      sync.Mutex
	pages   []*Page
	nextID  int
	closed  int
	onOpen  func(browser.Page)
	onClose func(string)
}

func (c *Context) addPage(url string) *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	p := newPage(fmt.Sprintf("page-%d", c.nextID), url)
	c.pages = append(c.pages, p)
	return p
}

func (c *Context) Pages(ctx context.Context) ([]browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed > 0 {
		return nil, ErrTargetClosed
	}
	out := make([]browser.Page, 0, len(c.pages))
	for _, p := range c.pages {
		out = append(out, p)
	}
	return out, nil
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	return c.addPage("about:blank"), nil
}

func (c *Context) Watch(onOpen func(browser.Page), onClose func(string)) {
	c.mu.Lock()
	c.onOpen = onOpen
	c.onClose = onClose
	c.mu.Unlock()
}

func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed++
	for _, p := range c.pages {
		p.kill()
	}
	c.pages = nil
	c.mu.Unlock()
	return c.CloseErr
}

// Closed returns how many times Close was called.
func (c *Context) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Page returns the live page with id, or nil.
func (c *Context) Page(id string) *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pages {
		if p.id == id {
			return p
		}
	}
	return nil
}

// Newest returns the most recently opened live page, or nil.
func (c *Context) Newest() *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		return nil
	}
	return c.pages[len(c.pages)-1]
}

// OpenTab simulates a page opened from inside the browser and delivers
// the open event.
func (c *Context) OpenTab(url string) *Page {
	p := c.addPage(url)
	c.mu.Lock()
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return p
}

// CloseTab simulates the user closing a tab and delivers the close event.
func (c *Context) CloseTab(id string) {
	c.mu.Lock()
	var closed *Page
	kept := c.pages[:0]
	for _, p := range c.pages {
		if p.id == id {
			closed = p
			continue
		}
		kept = append(kept, p)
	}
	c.pages = kept
	fn := c.onClose
	c.mu.Unlock()

	if closed == nil {
		return
	}
	closed.kill()
	if fn != nil {
		fn(id)
	}
}

// Page is a fake tab. Its handle can be broken without closing the tab.
type Page struct {
	id string

	mu       sync.Mutex
	url      string
	title    string
	html     string
	history  []string
	cursor   int
	dead     bool
	failures map[string][]error
	calls    []string
	texts    []string
	keys     []KeyCall
	channels []*Channel
}

// KeyCall is one key primitive invoked on a page.
type KeyCall struct {
	Op        string
	Key       string
	Modifiers int
}

func newPage(id, url string) *Page {
	return &Page{
		id:       id,
		url:      url,
		title:    titleFor(url),
		history:  []string{url},
		failures: make(map[string][]error),
	}
}

func titleFor(url string) string {
	if url == "about:blank" {
		return ""
	}
	return "Title of " + url
}

// FailNext queues errs to be returned, in order, by the next calls to op.
// Op names match the Page method names ("Navigate", "Attach", "Info"...).
func (p *Page) FailNext(op string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], errs...)
}

// SetHTML sets what HTML returns.
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// Calls returns the operations invoked on the page, in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Texts returns text inserted through the page primitives.
func (p *Page) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// Keys returns the key primitives invoked on the page, in order.
func (p *Page) Keys() []KeyCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]KeyCall(nil), p.keys...)
}

// Channels returns every channel attached to the page.
func (p *Page) Channels() []*Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Channel(nil), p.channels...)
}

// LastChannel returns the most recently attached channel, or nil.
func (p *Page) LastChannel() *Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.channels) == 0 {
		return nil
	}
	return p.channels[len(p.channels)-1]
}

func (p *Page) kill() {
	p.mu.Lock()
	p.dead = true
	chans := p.channels
	p.mu.Unlock()
	for _, ch := range chans {
		ch.kill()
	}
}

// enter records op and returns the error it should fail with, if any.
// Callers hold p.mu.
func (p *Page) enter(op string) error {
	p.calls = append(p.calls, op)
	if p.dead {
		return ErrTargetClosed
	}
	if q := p.failures[op]; len(q) > 0 {
		err := q[0]
		p.failures[op] = q[1:]
		return err
	}
	return nil
}

func (p *Page) ID() string { return p.id }

func (p *Page) Attach(ctx context.Context) (browser.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Attach"); err != nil {
		return nil, err
	}
	ch := &Channel{page: p, SessionID: fmt.Sprintf("%s/session-%d", p.id, len(p.channels)+1)}
	p.channels = append(p.channels, ch)
	return ch, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Navigate"); err != nil {
		return err
	}
	p.history = append(p.history[:p.cursor+1], url)
	p.cursor = len(p.history) - 1
	p.url = url
	p.title = titleFor(url)
	return nil
}

func (p *Page) Back(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Back"); err != nil {
		return err
	}
	if p.cursor > 0 {
		p.cursor--
		p.url = p.history[p.cursor]
		p.title = titleFor(p.url)
	}
	return nil
}

func (p *Page) Forward(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Forward"); err != nil {
		return err
	}
	if p.cursor < len(p.history)-1 {
		p.cursor++
		p.url = p.history[p.cursor]
		p.title = titleFor(p.url)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enter("Reload")
}

func (p *Page) Info(ctx context.Context) (browser.PageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Info"); err != nil {
		return browser.PageInfo{}, err
	}
	return browser.PageInfo{URL: p.url, Title: p.title}, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("HTML"); err != nil {
		return "", err
	}
	return p.html, nil
}

func (p *Page) Click(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enter("Click")
}

func (p *Page) Scroll(ctx context.Context, x, y, deltaX, deltaY float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enter("Scroll")
}

func (p *Page) InsertText(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("InsertText"); err != nil {
		return err
	}
	p.texts = append(p.texts, text)
	return nil
}

func (p *Page) Press(ctx context.Context, key string, modifiers int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key("Press", key, modifiers)
}

func (p *Page) KeyDown(ctx context.Context, key string, modifiers int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key("KeyDown", key, modifiers)
}

func (p *Page) KeyUp(ctx context.Context, key string, modifiers int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key("KeyUp", key, modifiers)
}

func (p *Page) key(op, key string, modifiers int) error {
	if err := p.enter(op); err != nil {
		return err
	}
	p.keys = append(p.keys, KeyCall{Op: op, Key: key, Modifiers: modifiers})
	return nil
}

// Channel is a fake debug channel that records every input event.
type Channel struct {
	SessionID string

	page *Page

	mu          sync.Mutex
	onFrame     func(browser.Frame)
	opts        browser.ScreencastOptions
	streaming   bool
	detached    bool
	dead        bool
	frameSeq    int
	acks        []int
	mouse       []browser.MouseEvent
	keys        []browser.KeyEvent
	texts       []string
	StartErr    error
	DispatchErr error
}

func (c *Channel) kill() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
}

func (c *Channel) check() error {
	if c.dead || c.detached {
		return ErrTargetClosed
	}
	return nil
}

func (c *Channel) StartScreencast(ctx context.Context, opts browser.ScreencastOptions, onFrame func(browser.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.StartErr != nil {
		return c.StartErr
	}
	c.opts = opts
	c.onFrame = onFrame
	c.streaming = true
	return nil
}

func (c *Channel) StopScreencast(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	return c.check()
}

func (c *Channel) AckFrame(ctx context.Context, sessionID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks = append(c.acks, sessionID)
	return c.check()
}

func (c *Channel) DispatchMouse(ctx context.Context, ev browser.MouseEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.DispatchErr != nil {
		return c.DispatchErr
	}
	c.mouse = append(c.mouse, ev)
	return nil
}

func (c *Channel) DispatchKey(ctx context.Context, ev browser.KeyEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.DispatchErr != nil {
		return c.DispatchErr
	}
	c.keys = append(c.keys, ev)
	return nil
}

func (c *Channel) InsertText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.DispatchErr != nil {
		return c.DispatchErr
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *Channel) Detach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	c.streaming = false
	return nil
}

// Emit delivers a frame through the installed screencast callback, the
// way the debug protocol does. It reports whether a callback was set.
func (c *Channel) Emit(data []byte) bool {
	c.mu.Lock()
	fn := c.onFrame
	c.frameSeq++
	seq := c.frameSeq
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(browser.Frame{Data: data, SessionID: seq, Timestamp: time.Now()})
	return true
}

// Streaming reports whether a screencast is running on the channel.
func (c *Channel) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Detached reports whether Detach was called.
func (c *Channel) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}

// Options returns the screencast options the stream was started with.
func (c *Channel) Options() browser.ScreencastOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Acks returns the acknowledged frame sequence numbers.
func (c *Channel) Acks() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.acks...)
}

// Mouse returns the dispatched mouse events.
func (c *Channel) Mouse() []browser.MouseEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]browser.MouseEvent(nil), c.mouse...)
}

// Keys returns the dispatched key events.
func (c *Channel) Keys() []browser.KeyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]browser.KeyEvent(nil), c.keys...)
}

// Texts returns text inserted through the channel.
func (c *Channel) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// Recorder is a browser.Publisher that keeps everything it is sent.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	states []browser.Snapshot
	closed int
}

func (r *Recorder) PublishFrame(data []byte) {
	r.mu.Lock()
	r.frames = append(r.frames, data)
	r.mu.Unlock()
}

func (r *Recorder) PublishState(s browser.Snapshot) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *Recorder) PublishClosed() {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
}

// Frames returns published frames.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

// States returns published states.
func (r *Recorder) States() []browser.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]browser.Snapshot(nil), r.states...)
}

// LastState returns the most recent published state.
func (r *Recorder) LastState() browser.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return browser.Snapshot{}
	}
	return r.states[len(r.states)-1]
}

// Closed returns how many closed events were published.
func (r *Recorder) Closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
