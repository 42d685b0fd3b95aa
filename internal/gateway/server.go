package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/absolutelyright/server/internal/accesslog"
	"github.com/absolutelyright/server/internal/config"
	"github.com/absolutelyright/server/internal/hooks"
	"github.com/absolutelyright/server/internal/logging"
	"github.com/absolutelyright/server/internal/store"
	"github.com/gorilla/websocket"
)

// Server is the counter HTTP + WebSocket server.
type Server struct {
	cfg   config.Config
	gate  Gate
	days  *store.DayStore
	log   *logging.Logger
	live  *LiveHub
	hooks *hooks.Manager

	// Homepage access log (optional, nil when disabled)
	pageviews *accesslog.PageviewLog

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for counter and lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithPageviews enables the homepage access log.
func WithPageviews(pv *accesslog.PageviewLog) ServerOption {
	return func(s *Server) {
		s.pageviews = pv
	}
}

// New creates a server backed by days. The access gate is derived from
// cfg.Auth.Secret and stays fixed for the life of the server.
func New(cfg config.Config, days *store.DayStore, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:  cfg,
		gate: NewGate(cfg.Auth.Secret),
		days: days,
		log:  log.Sub("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.hooks == nil {
		s.hooks = hooks.NewManager(log)
	}
	s.live = NewLiveHub(days, log.Sub("live"))
	s.hooks.On(hooks.EventCountsUpdated, "live-feed", s.live.OnCountsUpdated)
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin header are non-browser clients and always pass.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, middlewareOptions{
		log:       s.log,
		origins:   s.cfg.Server.AllowedOrigins,
		pageviews: s.pageviews,
		hooks:     s.hooks,
	})
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	event := s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("gate", s.gate.Mode()).
		Str("static", s.cfg.Server.StaticDir)
	if s.pageviews != nil {
		event = event.Str("pageviews", s.pageviews.Path())
	}
	event.Msg("server ready")

	s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{
		"addr": ln.Addr().String(),
	})

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.live.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
