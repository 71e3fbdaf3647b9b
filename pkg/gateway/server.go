package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/harun/ssegate/internal/config"
	"github.com/harun/ssegate/internal/metrics"
	"github.com/harun/ssegate/pkg/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server is the SSE gateway: one push stream per session plus a command
// endpoint that routes posted messages onto those streams
type Server struct {
	cfg          Config
	registry     *session.Registry
	engine       ProtocolEngine
	router       *Router
	auth         *TokenAuth
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	handler      http.Handler
	server       *http.Server
	shuttingDown atomic.Bool
	newID        func() string
}

// Config holds server configuration
type Config struct {
	Server    config.ServerConfig
	CORS      config.CORSConfig
	Auth      config.AuthConfig
	RateLimit config.RateLimitConfig
	Engine    ProtocolEngine
	Registry  *session.Registry // optional, a fresh registry is created if nil
	Metrics   *metrics.Metrics  // optional
	Logger    zerolog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("protocol engine is required")
	}
	if cfg.Server.StreamPath == "" || cfg.Server.MessagePath == "" {
		return nil, fmt.Errorf("stream and message paths are required")
	}
	if cfg.Server.StreamPath == cfg.Server.MessagePath {
		return nil, fmt.Errorf("stream and message paths must differ")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = config.DefaultConfig().Server.MaxBodyBytes
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = config.DefaultConfig().Server.ShutdownTimeoutSeconds
	}
	if cfg.Registry == nil {
		cfg.Registry = session.NewRegistry()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}

	s := &Server{
		cfg:      cfg,
		registry: cfg.Registry,
		engine:   cfg.Engine,
		auth:     NewTokenAuth(cfg.Auth.Token),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		newID:    uuid.NewString,
	}
	s.router = NewRouter(s.registry, s.engine, s.metrics, s.logger)
	s.handler = s.routes()

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: s.cfg.CORS.AllowedMethods,
		AllowedHeaders: s.cfg.CORS.AllowedHeaders,
		ExposedHeaders: []string{HeaderSessionID, HeaderRequestID},
		MaxAge:         s.cfg.CORS.MaxAgeSeconds,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get(s.cfg.Server.StreamPath, s.handleStream)
		r.Post(s.cfg.Server.MessagePath, s.handleMessage)
	})

	return r
}

// Handler returns the HTTP handler serving every gateway route
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the session registry
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("stream", s.cfg.Server.StreamPath).
		Str("messages", s.cfg.Server.MessagePath).
		Bool("auth", s.auth.Enabled()).
		Msg("Starting SSE gateway")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Stop()
	})

	return g.Wait()
}

// Stop refuses new streams, closes every open stream and shuts the HTTP
// server down within the configured timeout
func (s *Server) Stop() error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info().Int("sessions", s.registry.Count()).Msg("Shutting down SSE gateway")

	for _, sess := range s.registry.Snapshot() {
		sess.Terminate()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("SSE gateway stopped")
	return nil
}

// handleHealth reports liveness and the number of open sessions
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	if s.shuttingDown.Load() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   status,
		"sessions": s.registry.Count(),
	})
}
