// Package server is the session backend the monitor talks to: it issues
// session cookies, reports remaining time, and extends, saves, restores and
// restarts sessions. Status changes are also pushed over a WebSocket feed.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rccm-quiz/sessionguard/internal/clock"
	"github.com/rccm-quiz/sessionguard/internal/session"
)

// CookieName carries the session id.
const CookieName = "sessionguard_sid"

// Config holds the server tunables.
type Config struct {
	SessionTTL       time.Duration
	WarningThreshold time.Duration
	PushInterval     time.Duration // 0 disables periodic pushes
	RateLimitRPS     float64       // 0 disables rate limiting
	RateLimitBurst   int
	AuthToken        string
	AllowedOrigins   []string
	SecureCookie     bool
}

type Server struct {
	cfg            Config
	store          session.Store
	hub            *Hub
	clock          clock.Clock
	log            *slog.Logger
	registry       *prometheus.Registry
	metrics        *metrics
	limiter        *sessionLimiter
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

type Option func(*Server)

func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRegistry sets the registry metrics are registered with and served from.
func WithRegistry(r *prometheus.Registry) Option {
	return func(s *Server) { s.registry = r }
}

func New(cfg Config, store session.Store, opts ...Option) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = 5 * time.Minute
	}
	s := &Server{
		cfg:            cfg,
		store:          store,
		clock:          clock.Real(),
		log:            slog.Default(),
		allowedOrigins: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.log = s.log.With("component", "server")
	s.metrics = newMetrics(s.registry)
	s.hub = NewHub(s.log)
	s.hub.onCount = func(n int) { s.metrics.wsConns.Set(float64(n)) }
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = newSessionLimiter(cfg.RateLimitRPS, burst, s.clock.Now)
	}
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			s.allowedOrigins[o] = true
		}
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Hub exposes the push hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(securityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.With(s.requireToken).Get("/ws", s.handleWS)

	r.Route("/api/session", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/status", s.handleStatus)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/extend", s.handleExtend)
			r.Post("/save", s.handleSave)
			r.Post("/restore", s.handleRestore)
			r.Post("/start", s.handleStart)
		})
	})
	return r
}

// Run pushes every connection its status each PushInterval until ctx ends.
func (s *Server) Run(ctx context.Context) {
	if s.cfg.PushInterval <= 0 {
		<-ctx.Done()
		s.hub.CloseAll()
		return
	}
	task := s.clock.Every(s.cfg.PushInterval, func() { s.pushAll(ctx) })
	<-ctx.Done()
	task.Stop()
	s.hub.CloseAll()
}

func (s *Server) pushAll(ctx context.Context) {
	now := s.clock.Now()
	s.hub.PushAll(func(id string) (session.Status, bool) {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return session.Status{}, false
		}
		return sess.Status(now, s.cfg.WarningThreshold), true
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Hostname()
	return len(s.allowedOrigins) == 0 && (host == "localhost" || host == "127.0.0.1" || host == "::1")
}
