package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests is the number of trial calls allowed while half-open;
	// that many consecutive successes close the breaker again.
	MaxRequests uint32
	// Interval clears the closed-state counts periodically.
	Interval time.Duration
	// Timeout is how long the breaker stays open before a trial call.
	Timeout time.Duration
	// ReadyToTrip decides, after a failure in closed state, whether to open.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is called whenever the state changes, under the
	// breaker lock. It must not call back into the breaker.
	OnStateChange func(name string, from State, to State)
	// IsFailure classifies errors. Nil counts every non-nil error.
	IsFailure func(err error) bool
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker stops calling a failing dependency for a cool-down period.
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
	epoch  uint64
	now    func() time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout == 0 {
		settings.Timeout = time.Minute
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
	b.expiry = b.now().Add(settings.Interval)
	return b
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.advance(b.now())
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Execute runs fn if the breaker admits it. A panic in fn is recorded as
// a failure and re-raised.
func (b *Breaker) Execute(fn func() error) error {
	epoch, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			b.record(epoch, false)
			panic(e)
		}
	}()

	err = fn()
	b.record(epoch, !b.settings.IsFailure(err))
	return err
}

// Call runs fn through b and returns its value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsRejected reports whether err came from the breaker refusing a call
// rather than from the call itself.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, epoch := b.advance(b.now())
	switch {
	case state == StateOpen:
		return epoch, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return epoch, ErrTooManyRequests
	}

	b.counts.Requests++
	return epoch, nil
}

func (b *Breaker) record(epoch uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state, current := b.advance(now)
	// Results from before a state change belong to a finished epoch.
	if current != epoch {
		return
	}

	if ok {
		b.counts.success()
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.transition(StateClosed, now)
		}
		return
	}

	switch state {
	case StateClosed:
		b.counts.failure()
		if b.settings.ReadyToTrip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// advance applies time-based transitions and returns the resulting state
// and epoch.
func (b *Breaker) advance(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if b.expiry.Before(now) {
			b.counts = Counts{}
			b.expiry = now.Add(b.settings.Interval)
			b.epoch++
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, b.epoch
}

func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.counts = Counts{}
	b.epoch++

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
