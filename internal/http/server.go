// Package http serves the dashboard UI: the full page, the htmx overview
// partial, and the refresh endpoint that feeds the worker queue.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/debuggin-limited/mflow/internal/cache"
	"github.com/debuggin-limited/mflow/internal/core"
	"github.com/debuggin-limited/mflow/internal/log"
	"github.com/debuggin-limited/mflow/internal/services"
	appweb "github.com/debuggin-limited/mflow/web"
)

// DashboardProvider computes dashboard snapshots and tracks the selected
// budget. Satisfied by *services.DashboardService.
type DashboardProvider interface {
	Compute(ctx context.Context, year int) (services.Snapshot, error)
	Select(budgetID int64)
}

// BillWriter persists new recurring bills. Satisfied by
// *storage.SQLiteRepository.
type BillWriter interface {
	CreateBill(ctx context.Context, b core.Bill) (int64, error)
}

// RefreshPublisher enqueues a snapshot refresh. Satisfied by *amqp.Client.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, year int, budgetID int64) error
}

// Options tunes server behavior beyond the listen address.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	provider  DashboardProvider
	bills     BillWriter
	publisher RefreshPublisher // nil when AMQP is not configured

	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *log.Logger
	structured  *log.StructuredLogger

	// Snapshot cache keyed by year and budget selection.
	snapCache    *cache.LRUCache[services.Snapshot]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, provider DashboardProvider, bills BillWriter, publisher RefreshPublisher, opts Options) *Server {
	mux := http.NewServeMux()

	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		provider:     provider,
		bills:        bills,
		publisher:    publisher,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		logger:       logger,
		structured:   log.NewStructuredLogger(logger),
		snapCache:    cache.NewLRUCache[services.Snapshot](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.snapCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	logMW := log.Middleware(logger)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logMW(s.withSecurityHeaders(h)).ServeHTTP(w, r)
		}
	}

	mux.HandleFunc("/", wrap(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/ui/overview", wrap(s.handleOverview))
	mux.HandleFunc("/bills", wrap(s.handleCreateBill))
	mux.HandleFunc("/refresh", wrap(s.handleRefresh))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if hits := atomic.LoadInt64(&s.metrics.rateLimitHits); hits > 0 {
			s.logger.Info("Requests were rate limited this run", "rate_limit_hits", hits)
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		ctx := context.WithValue(r.Context(), requestIDKey, generateRequestID())
		r = r.WithContext(ctx)

		// Rate limit writes only; reads are cheap and cached.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			s.structured.LogHTTPEnd(ctx, r, http.StatusTooManyRequests, time.Since(start).Milliseconds(), clientIP)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
