package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
)

const frameAckTimeout = 2 * time.Second

// StreamAdapter binds a debug channel to the active page and forwards every
// screencast frame it produces.
type StreamAdapter struct {
	opts    ScreencastOptions
	onFrame func([]byte)
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	channel Channel
	gen     uint64 // bumped on every attach/detach; stale callbacks compare against it
}

// NewStreamAdapter creates an adapter that hands decoded frames to onFrame.
func NewStreamAdapter(opts ScreencastOptions, onFrame func([]byte), logger *zap.Logger, metrics *monitoring.Metrics) *StreamAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamAdapter{
		opts:    opts,
		onFrame: onFrame,
		logger:  logger.Named("stream"),
		metrics: metrics,
	}
}

// Attach detaches any previous channel, binds a new one to page and starts
// the screencast on it.
func (s *StreamAdapter) Attach(ctx context.Context, page Page) (Channel, error) {
	s.Detach(ctx)

	ch, err := page.Attach(ctx)
	if err != nil {
		return nil, fmt.Errorf("attach debug channel: %w", err)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.channel = ch
	s.mu.Unlock()

	handler := func(f Frame) {
		// Ack before anything else so the encoder keeps producing.
		ackCtx, cancel := context.WithTimeout(context.Background(), frameAckTimeout)
		if err := ch.AckFrame(ackCtx, f.SessionID); err != nil {
			s.logger.Debug("frame ack failed", zap.Error(err))
		}
		cancel()

		if !s.current(gen) {
			return
		}
		s.metrics.RecordFrame()
		s.onFrame(f.Data)
	}

	if err := ch.StartScreencast(ctx, s.opts, handler); err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.channel = nil
			s.gen++
		}
		s.mu.Unlock()
		_ = ch.Detach(ctx)
		return nil, fmt.Errorf("start screencast: %w", err)
	}

	s.logger.Debug("screencast started",
		zap.String("page", page.ID()),
		zap.String("format", s.opts.Format),
		zap.Int("quality", s.opts.Quality),
	)
	return ch, nil
}

// Detach stops the screencast and releases the channel. Errors are
// swallowed: this races with page and browser teardown.
func (s *StreamAdapter) Detach(ctx context.Context) {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.gen++
	s.mu.Unlock()

	if ch == nil {
		return
	}
	if err := ch.StopScreencast(ctx); err != nil {
		s.logger.Debug("stop screencast failed", zap.Error(err))
	}
	if err := ch.Detach(ctx); err != nil {
		s.logger.Debug("detach channel failed", zap.Error(err))
	}
}

// Channel returns the currently bound channel, or nil.
func (s *StreamAdapter) Channel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

func (s *StreamAdapter) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
