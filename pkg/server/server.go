// Package server provides the base HTTP server, middleware chain, runtime
// configuration and response helpers shared by the bookshelf services.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/multierr"

	"github.com/wondertwin-ai/bookshelf/pkg/metrics"
)

// ShutdownTimeout bounds graceful shutdown once the serve context is done.
const ShutdownTimeout = 10 * time.Second

// Config holds the settings common to every bookshelf service.
type Config struct {
	Name     string        `yaml:"-"`
	Port     int           `yaml:"port"`
	Latency  time.Duration `yaml:"latency"`
	FailRate float64       `yaml:"fail_rate"`
	Verbose  bool          `yaml:"verbose"`
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	if c.Port < 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Latency < 0 {
		err = multierr.Append(err, errors.New("latency must not be negative"))
	}
	if c.FailRate < 0 || c.FailRate > 1 {
		err = multierr.Append(err, errors.New("fail_rate must be between 0.0 and 1.0"))
	}
	return err
}

// Server wraps a chi router with the common middleware and provides
// lifecycle management.
type Server struct {
	Router  *chi.Mux
	Logger  *slog.Logger
	Metrics *metrics.Registry
	level   *slog.LevelVar
	mw      *Middleware
	mu      sync.RWMutex // protects cfg during runtime updates
	cfg     Config
}

// New creates a Server for cfg. The logger writes JSON to stdout at Info, or
// Debug when cfg.Verbose is set.
func New(cfg Config) *Server {
	level := new(slog.LevelVar)
	if cfg.Verbose {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("service", cfg.Name)

	s := &Server{
		Router:  chi.NewRouter(),
		Logger:  logger,
		Metrics: metrics.New(cfg.Name),
		level:   level,
		cfg:     cfg,
	}
	s.mw = NewMiddleware(s.Config, logger, s.Metrics)

	// Latency, failure and fault middleware are mounted by the resource
	// route groups so /admin and /metrics are never slowed or failed.
	s.Router.Use(chimw.RequestID)
	s.Router.Use(chimw.RealIP)
	s.Router.Use(chimw.Recoverer)
	s.Router.Use(s.mw.CORS)
	s.Router.Use(s.mw.RequestLog)

	s.Router.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	return s
}

// Middleware returns the middleware instance for external access (e.g., fault injection).
func (s *Server) Middleware() *Middleware {
	return s.mw
}

// Config returns a copy of the current configuration.
func (s *Server) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (s *Server) GetConfig() map[string]any {
	cfg := s.Config()
	return map[string]any{
		"name":      cfg.Name,
		"port":      cfg.Port,
		"latency":   cfg.Latency.String(),
		"fail_rate": cfg.FailRate,
		"verbose":   cfg.Verbose,
	}
}

type configUpdate struct {
	Latency  *time.Duration `mapstructure:"latency"`
	FailRate *float64       `mapstructure:"fail_rate"`
	Verbose  *bool          `mapstructure:"verbose"`
}

// UpdateConfig updates runtime configuration fields from a map.
// This implements the admin.ConfigProvider interface.
// Only latency, fail_rate and verbose can be changed. All fields are
// validated before any are applied.
func (s *Server) UpdateConfig(updates map[string]any) error {
	for _, k := range []string{"name", "port"} {
		if _, ok := updates[k]; ok {
			return fmt.Errorf("%s cannot be changed at runtime", k)
		}
	}

	var cu configUpdate
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cu,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(updates); err != nil {
		return fmt.Errorf("invalid config update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	if cu.Latency != nil {
		next.Latency = *cu.Latency
	}
	if cu.FailRate != nil {
		next.FailRate = *cu.FailRate
	}
	if cu.Verbose != nil {
		next.Verbose = *cu.Verbose
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	if next.Verbose {
		s.level.Set(slog.LevelDebug)
	} else {
		s.level.Set(slog.LevelInfo)
	}
	return nil
}

// Serve listens on the configured port and blocks until ctx is done, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config().Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("starting service", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.Logger.Error("server error", "err", err)
		}
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("shutting down service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so a Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response with the status text as error type.
func Error(w http.ResponseWriter, status int, message string) {
	TypedError(w, status, http.StatusText(status), message)
}

// TypedError writes a JSON error response with an explicit error type.
func TypedError(w http.ResponseWriter, status int, errType, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    status,
		},
	})
}

// Empty writes a bodyless response.
func Empty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}
