package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"billed/internal/cache"
	applog "billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/middleware/ratelimit"
	"billed/internal/middleware/security"
	"billed/internal/middleware/trace"
	"billed/internal/newbill"
	"billed/internal/session"
	"billed/internal/store"
	"billed/internal/views"
	appweb "billed/web"
)

// Pinger is implemented by stores that can check their backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries the server settings.
type Config struct {
	Addr           string
	SubmitTimeout  time.Duration
	MaxUploadBytes int64
	FormTTL        time.Duration
	MaxForms       int
	ModalWidth     int
	RateLimit      ratelimit.Config
}

func (c *Config) setDefaults() {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 15 * time.Second
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 5 << 20
	}
	if c.FormTTL <= 0 {
		c.FormTTL = 30 * time.Minute
	}
	if c.MaxForms <= 0 {
		c.MaxForms = 1000
	}
	if c.ModalWidth <= 0 {
		c.ModalWidth = 800
	}
}

type Server struct {
	http.Server
	config    Config
	store     store.Store
	sessions  *session.Manager
	templates *views.Templates
	logger    *applog.Logger
	registry  *prometheus.Registry

	forms       *newbill.Registry
	lists       singleflight.Group
	cache       *cache.Manager
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	started     time.Time
}

// NewServer configures routes and templates, returning a ready-to-run
// server. Call Shutdown to stop its background goroutines.
func NewServer(cfg Config, st store.Store, sessions *session.Manager, logger *applog.Logger, reg *prometheus.Registry) (*Server, error) {
	cfg.setDefaults()

	templates, err := views.Parse()
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      cfg,
		store:       st,
		sessions:    sessions,
		templates:   templates,
		logger:      logger,
		registry:    reg,
		cache:       cache.NewManager(),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		detector:    security.NewDetector(),
		started:     time.Now(),
	}
	s.forms = newbill.NewRegistry(cfg.MaxForms, cfg.FormTTL, s.newController)
	s.cache.Register(s.forms)
	s.cache.StartCleanup(time.Minute)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) newController(u session.User) *newbill.Controller {
	return newbill.New(u, s.store.Bills(), uiEffects{}, uiEffects{}, newbill.Options{
		SubmitTimeout: s.config.SubmitTimeout,
		Logger:        s.logger.WithComponent(applog.ComponentNewBill).Logger,
	})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.detector.ClientIP).Middleware)
	r.Use(applog.Middleware(s.logger, trace.RequestID))
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.CacheControl("public, max-age=3600")).Handle("/static/*", static)
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Load)

		r.Get("/", s.handleIndex)
		r.With(s.limitPosts).Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(session.Require)
			r.Use(s.limitPosts)

			r.Get("/bills", s.handleBills)
			r.Get("/bills/new", s.handleNewBillForm)
			r.Post("/bills/new", s.handleSubmitBill)
			r.Post("/bills/new/file", s.handleAttachReceipt)
			r.Get("/bills/{id}/receipt", s.handleReceiptModal)
			r.With(security.CacheControl("private, max-age=300")).Get("/receipts/{key}", s.handleReceipt)
		})
	})
	return r
}

// limitPosts applies the rate limiter to POST requests only.
func (s *Server) limitPosts(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ClientIP(r), applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Trop de requêtes, réessayez dans une minute.").
			TriggerErrorNotification("Trop de requêtes, réessayez dans une minute.").
			Write(w)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the HTTP server, the form cache cleanup and the rate
// limiter. Form controllers still in memory are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.cache.Stop()
	s.rateLimiter.Stop()
	s.forms.CloseAll()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
