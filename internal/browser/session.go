package browser

// State is the lifecycle state of the shared browser session.
type State int

const (
	StateUninitialized State = iota
	StateLaunching
	StateActive
	StateRecovering
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateActive:
		return "active"
	case StateRecovering:
		return "recovering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Running reports whether a browser context is alive in this state.
func (s State) Running() bool {
	return s == StateActive || s == StateRecovering
}

// Snapshot is the viewer-facing summary of the session.
type Snapshot struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Running bool   `json:"running"`
}

// Publisher receives everything the session pushes to viewers.
type Publisher interface {
	PublishFrame(data []byte)
	PublishState(s Snapshot)
	PublishClosed()
}

// session holds the mutable fields of the one shared browser. It is only
// touched by Manager under its locks.
type session struct {
	state     State
	ctx       Context
	page      Page
	channel   Channel
	lastFrame []byte
	url       string
	title     string
}

func (s *session) snapshot() Snapshot {
	return Snapshot{URL: s.url, Title: s.title, Running: s.state.Running()}
}

func (s *session) clear() {
	s.ctx = nil
	s.page = nil
	s.channel = nil
	s.lastFrame = nil
	s.url = ""
	s.title = ""
}
