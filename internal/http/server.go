package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"saldi/internal/log"
	"saldi/internal/middleware/ratelimit"
	"saldi/internal/middleware/security"
	"saldi/internal/middleware/trace"
	"saldi/internal/services"
)

// Services are the application services behind the API.
type Services struct {
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Records    *services.RecordService
	Snapshots  *services.SnapshotService
}

// Options tune the middleware chain.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	accounts   *services.AccountService
	categories *services.CategoryService
	records    *services.RecordService
	snapshots  *services.SnapshotService
	ready      func(ctx context.Context) error

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		accounts:   svc.Accounts,
		categories: svc.Categories,
		records:    svc.Records,
		snapshots:  svc.Snapshots,
		ready:      opts.Ready,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			slog.Warn("Ignoring invalid trusted proxy",
				log.FieldComponent, log.ComponentHTTP,
				"cidr", cidr,
				log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PUT /api/v1/accounts/{id}", s.handleRenameAccount)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", s.handleDeleteAccount)

	mux.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/v1/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/v1/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/v1/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/v1/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/v1/records", s.handleListRecords)
	mux.HandleFunc("POST /api/v1/records", s.handleCreateRecord)
	mux.HandleFunc("GET /api/v1/records/{id}", s.handleGetRecord)
	mux.HandleFunc("PUT /api/v1/records/{id}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /api/v1/records/{id}", s.handleDeleteRecord)

	mux.HandleFunc("GET /api/v1/snapshots", s.handleListSnapshots)
	mux.HandleFunc("GET /api/v1/snapshots/{id}", s.handleGetSnapshot)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		metrics := s.tracer.GetMetrics()
		slog.InfoContext(ctx, "HTTP server stopping",
			log.FieldComponent, log.ComponentHTTP,
			"total_requests", metrics.TotalRequests,
			"server_errors", metrics.ServerErrors,
			"rate_limited", s.limiter.Rejected(),
			"suspicious", s.detector.SuspiciousRequests())
		err = s.Server.Shutdown(ctx)
	})
	return err
}
