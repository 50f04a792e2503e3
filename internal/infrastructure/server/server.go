package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/browserd/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/dispatch"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	manager  *browser.Manager
	hub      *ws.Hub
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	tracer   *tracing.Tracer
	done     chan struct{}
}

// NewServer wires the browser session, dispatcher, hub and HTTP surface.
func NewServer(cfg *config.Config, driver browser.Driver, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	domains, err := dispatch.NewDomainPolicy(cfg.Browser.AllowedDomains)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	logger.Info("Initializing browserd",
		zap.String("addr", cfg.Addr()),
		zap.String("profile", cfg.ProfilePath()),
		zap.Strings("allowed_domains", domains.Domains()),
		zap.Bool("headless", cfg.Browser.Headless),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New(logger.Logger)

	manager := browser.NewManager(driver, browser.Config{
		Launch: browser.LaunchOptions{
			Bin:            cfg.Browser.Bin,
			ProfileDir:     cfg.ProfilePath(),
			Headless:       cfg.Browser.Headless,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
		},
		Screencast: browser.ScreencastOptions{
			Format:    cfg.Stream.Format,
			Quality:   cfg.Stream.Quality,
			MaxWidth:  cfg.Stream.MaxWidth,
			MaxHeight: cfg.Stream.MaxHeight,
		},
	}, logger.Component("browser"), metrics)

	hub := ws.NewHub(logger.Logger, metrics)
	hub.SetSource(manager)
	manager.SetPublisher(hub)

	dispatcher := dispatch.New(manager, dispatch.Options{
		NavigationTimeout: cfg.Browser.NavigationTimeout.Std(),
		ContentMaxLength:  cfg.Browser.ContentMaxLength,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		Domains:           domains,
	}, logger.Logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	wsHandler := ws.NewHandler(hub, dispatcher, ws.Options{
		ClientBuffer: cfg.Stream.ClientBuffer,
		Tracer:       tracer,
	}, logger.Logger, metrics)
	handlers := apihttp.NewHandlers(dispatcher, manager, wsHandler.HandleConnection, cfg.PortNumber(), metrics, logger.Logger)

	command := []gin.HandlerFunc{handlers.Command}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		command = append([]gin.HandlerFunc{middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		})}, command...)
	}

	router.GET("/", handlers.Root)
	router.POST("/", command...)
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", apihttp.Prometheus(registry))
	router.GET("/metrics/json", handlers.MetricsJSON)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		manager:  manager,
		hub:      hub,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
		tracer:   tracer,
		done:     make(chan struct{}),
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the browser session.
func (s *Server) Manager() *browser.Manager {
	return s.manager
}

// Run listens and serves until ctx is cancelled. If the address is taken
// by another instance of this service it returns ErrAlreadyRunning.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if !isAddrInUse(err) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		if ok, queryErr := queryExisting(ctx, addr); ok {
			s.logger.Info("browserd already running, reusing", zap.String("addr", addr))
			return ErrAlreadyRunning
		} else if queryErr != nil {
			s.logger.Debug("Status query of existing listener failed", zap.Error(queryErr))
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.metrics.RunUptime(s.done)

	if s.config.Browser.LaunchOnStart {
		go func() {
			if err := s.manager.Launch(ctx); err != nil {
				s.logger.Warn("Launch at startup failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not covered by Shutdown.
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	return s.Close(shutdownCtx)
}

// Close closes the browser and flushes logs. Safe to call more than once.
func (s *Server) Close(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}

	s.logger.Info("Shutting down server...")
	s.hub.Close()
	defer s.tracer.Close()
	if err := s.manager.Close(ctx); err != nil {
		s.logger.Error("Failed to close browser", zap.Error(err))
		return fmt.Errorf("close browser: %w", err)
	}
	_ = s.logger.Sync()
	return nil
}
