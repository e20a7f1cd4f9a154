package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fixedspend/internal/core"
	"fixedspend/internal/log"
	"fixedspend/internal/middleware/ratelimit"
	"fixedspend/internal/middleware/security"
	"fixedspend/internal/middleware/trace"
	"fixedspend/internal/remote"
	"fixedspend/internal/services"
	"fixedspend/internal/session"
	appweb "fixedspend/web"
)

// ExpenseService is the dashboard's use case surface.
type ExpenseService interface {
	List(ctx context.Context, sess remote.Session) (services.ExpenseList, error)
	Create(ctx context.Context, sess remote.Session, in core.ExpenseInput) (core.Expense, error)
	Delete(ctx context.Context, sess remote.Session, id string) error
}

// ProfileService loads the profile page aggregate.
type ProfileService interface {
	Load(ctx context.Context, sess remote.Session) (services.Profile, error)
}

// Deps carries everything the server needs. Ready may be nil.
type Deps struct {
	Gate               *session.Gate
	Expenses           ExpenseService
	Profiles           ProfileService
	Ready              remote.Pinger
	Logger             *log.Logger
	Provider           string
	RateLimitPerMinute int
	// Clock overrides time.Now for payment schedules. Tests only.
	Clock func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	gate      *session.Gate
	expenses  ExpenseService
	profiles  ProfileService
	ready     remote.Pinger
	provider  string
	logger    *log.Logger
	now       func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime          time.Time
	expensesCreated int64
	expensesDeleted int64
	mutationErrors  int64
}

const (
	remoteTimeout = 10 * time.Second
	staticMaxAge  = 3600
	readTimeout   = 15 * time.Second
	writeTimeout  = 30 * time.Second
	idleTimeout   = 60 * time.Second
	headerTimeout = 5 * time.Second
)

// NewServer parses the embedded templates and configures routes, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Gate == nil || deps.Expenses == nil || deps.Profiles == nil {
		return nil, errors.New("http server requires a gate, an expense service and a profile service")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector(logger)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: headerTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		templates:        tmpl,
		gate:             deps.Gate,
		expenses:         deps.Expenses,
		profiles:         deps.Profiles,
		ready:            deps.Ready,
		provider:         deps.Provider,
		logger:           logger.WithComponent(log.ComponentHTTP),
		now:              now,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}, ratelimit.WithLogger(logger)),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       appMetrics{uptime: time.Now()},
	}
	s.Handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.traceMiddleware.Handler)
	r.Use(middleware.Recoverer)
	r.Use(s.securityDetector.Handler)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)

	r.Get(session.LoginPath, s.handleLogin)
	// A plain link starts sign-in. The redirect leaves the origin, which
	// form-action 'self' would block for a form submission.
	r.With(limit).Get(session.SignInPath, s.gate.SignIn)
	r.Get(session.DefaultCallbackPath, s.gate.Callback)
	r.Post("/logout", s.gate.SignOut)

	r.Group(func(r chi.Router) {
		r.Use(s.gate.Require)
		r.Use(security.NoStore)

		r.Get("/", s.handleDashboard)
		r.Get("/ui/expenses", s.handleExpenseBoard)
		r.Get("/mypage", s.handleProfile)

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/expenses", s.handleCreateExpense)
			r.Delete("/expenses/{id}", s.handleDeleteExpense)
			r.Post("/expenses/{id}/delete", s.handleDeleteExpense)
		})
	})

	return r
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if IsHTMX(r) {
		NewHTMXResponse().
			Status(http.StatusTooManyRequests).
			TriggerAlert(msgTooManyRequests).
			Write(w)
		return
	}
	http.Error(w, msgTooManyRequests, http.StatusTooManyRequests)
}

// render executes a named template into a buffer first so a failing
// template never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	body, err := executeTemplate(s.templates, name, data)
	if err != nil {
		log.FromContext(r.Context(), s.logger).ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, remoteTimeout)
}
