package browser

import (
	"context"
	"time"
)

// Driver starts browser processes. The production implementation lives in
// the rodriver package; tests use browsertest.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Context, error)
}

// LaunchOptions configures a persistent browser context.
type LaunchOptions struct {
	Bin            string
	ProfileDir     string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

// Context is a running browser with a persistent profile.
type Context interface {
	// Pages returns the live pages, oldest first.
	Pages(ctx context.Context) ([]Page, error)

	// NewPage opens a blank page.
	NewPage(ctx context.Context) (Page, error)

	// Watch installs the page lifecycle listeners. Callbacks run on the
	// driver's event goroutine and must not block for long.
	Watch(onOpen func(Page), onClose func(pageID string))

	Close(ctx context.Context) error
}

// Page is a single tab. Methods on Page are the high-level automation
// primitives; low-level input goes through a Channel.
type Page interface {
	ID() string

	// Attach binds a fresh debug channel to the page.
	Attach(ctx context.Context) (Channel, error)

	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error

	Info(ctx context.Context) (PageInfo, error)
	HTML(ctx context.Context) (string, error)

	Click(ctx context.Context, x, y float64) error
	Scroll(ctx context.Context, x, y, deltaX, deltaY float64) error
	InsertText(ctx context.Context, text string) error

	// Key methods take the DOM key name and the CDP modifier bitmask.
	// Modifier keys are held around the key itself.
	Press(ctx context.Context, key string, modifiers int) error
	KeyDown(ctx context.Context, key string, modifiers int) error
	KeyUp(ctx context.Context, key string, modifiers int) error
}

// PageInfo is what the page reports about itself.
type PageInfo struct {
	URL   string
	Title string
}

// Channel is a debug-protocol session bound to one page.
type Channel interface {
	StartScreencast(ctx context.Context, opts ScreencastOptions, onFrame func(Frame)) error
	StopScreencast(ctx context.Context) error
	AckFrame(ctx context.Context, sessionID int) error

	DispatchMouse(ctx context.Context, ev MouseEvent) error
	DispatchKey(ctx context.Context, ev KeyEvent) error
	InsertText(ctx context.Context, text string) error

	Detach(ctx context.Context) error
}

// ScreencastOptions are the fixed encoding parameters of the stream.
type ScreencastOptions struct {
	Format    string // "jpeg" or "png"
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// Frame is one decoded screencast frame.
type Frame struct {
	Data      []byte
	SessionID int
	Timestamp time.Time
}

// MouseEventType mirrors Input.dispatchMouseEvent types.
type MouseEventType string

const (
	MouseMoved    MouseEventType = "mouseMoved"
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
	MouseWheel    MouseEventType = "mouseWheel"
)

// MouseEvent is a low-level pointer event.
type MouseEvent struct {
	Type       MouseEventType
	X, Y       float64
	Button     string
	ClickCount int
	DeltaX     float64
	DeltaY     float64
	Modifiers  int
}

// KeyEventType mirrors Input.dispatchKeyEvent types.
type KeyEventType string

const (
	KeyDown    KeyEventType = "keyDown"
	KeyUp      KeyEventType = "keyUp"
	RawKeyDown KeyEventType = "rawKeyDown"
)

// KeyEvent is a low-level keyboard event.
type KeyEvent struct {
	Type                  KeyEventType
	Key                   string
	Code                  string
	Text                  string
	Modifiers             int
	WindowsVirtualKeyCode int
}
