package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"importdesk/internal/backend"
	"importdesk/internal/cache"
	applog "importdesk/internal/log"
	"importdesk/internal/middleware/ratelimit"
	"importdesk/internal/middleware/security"
	"importdesk/internal/middleware/trace"
	"importdesk/internal/session"
	appweb "importdesk/web"
)

// Config holds the HTTP-facing settings.
type Config struct {
	Addr            string
	UploadMaxBytes  int64
	ListingPageSize int
	SessionTTL      time.Duration
	// RequestsPerMinute bounds mutating requests per client; 0 means the default.
	RequestsPerMinute int
}

// Deps are the collaborators the handlers drive.
type Deps struct {
	Sessions   *session.Registry
	Categories *session.CategorySource
	Expenses   backend.ExpenseLister
	Rules      backend.RuleManager
	// Probe is asked for categories by /readyz, bypassing the cache.
	Probe  backend.CategoryLister
	Caches *cache.Manager
	Logger *applog.Logger
}

type Server struct {
	http.Server
	cfg        Config
	templates  *template.Template
	sessions   *session.Registry
	categories *session.CategorySource
	expenses   backend.ExpenseLister
	rules      backend.RuleManager
	probe      backend.CategoryLister
	logger     *applog.Logger

	// listing pages keyed by "expenses:<page>:<limit>"
	listingCache *cache.LRUCache[backend.ExpensePage]

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.ListingPageSize <= 0 {
		cfg.ListingPageSize = 20
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 10 << 20
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	detector := security.NewDetector()
	s := &Server{
		cfg:          cfg,
		sessions:     deps.Sessions,
		categories:   deps.Categories,
		expenses:     deps.Expenses,
		rules:        deps.Rules,
		probe:        deps.Probe,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		listingCache: cache.NewLRUCache[backend.ExpensePage](50, time.Minute),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
			MutatingOnly:      true,
		}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		started:  time.Now(),
	}
	if deps.Caches != nil {
		deps.Caches.Register(s.listingCache)
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate)
	}
	s.templates = t

	s.Handler = s.routes(logger)
	s.Addr = cfg.Addr
	s.ReadHeaderTimeout = 10 * time.Second
	return s
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	r := mux.NewRouter()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	imp := r.PathPrefix("/import").Subrouter()
	imp.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	imp.HandleFunc("/preview", s.handlePreview).Methods(http.MethodGet)
	imp.HandleFunc("/confirm", s.handleConfirm).Methods(http.MethodPost)
	imp.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	imp.HandleFunc("/rows/{index:[0-9]+}/edit", s.handleRowEdit).Methods(http.MethodPost)
	imp.HandleFunc("/rows/{index:[0-9]+}", s.handleRowSave).Methods(http.MethodPost)
	imp.HandleFunc("/rows/{index:[0-9]+}/cancel", s.handleRowCancel).Methods(http.MethodPost)

	r.HandleFunc("/expenses", s.handleExpenses).Methods(http.MethodGet)

	r.HandleFunc("/rules", s.handleRules).Methods(http.MethodGet)
	r.HandleFunc("/rules", s.handleAddRule).Methods(http.MethodPost)
	r.HandleFunc("/rules/{id:[0-9]+}", s.handleDeleteRule).Methods(http.MethodDelete)

	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError(time.Minute).Write(w)
	})

	var h http.Handler = r
	h = limit(h)
	h = s.detector.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.FromRequest)(h)
	h = applog.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	return h
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a named template into the builder's body.
func (s *Server) render(ctx context.Context, b *HTMXResponseBuilder, name string, data any) *HTMXResponseBuilder {
	if s.templates == nil {
		s.logger.ErrorContext(ctx, "Templates not loaded",
			applog.FieldComponent, applog.ComponentTemplate,
			"template", name)
		return InternalServerError("templates not loaded")
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(ctx, "Template execution failed",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate,
			"template", name)
		return InternalServerError("Error rendering page")
	}
	return b.BodyHTML(buf.String())
}
