package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"monthbook/internal/core"
	"monthbook/internal/identity"
	applog "monthbook/internal/log"
	"monthbook/internal/metrics"
	"monthbook/internal/middleware/ratelimit"
	"monthbook/internal/middleware/security"
	"monthbook/internal/middleware/trace"
	"monthbook/internal/services"
)

// Ledger is the service surface the API serves.
type Ledger interface {
	SubmitTransaction(ctx context.Context, req services.SubmitRequest) (services.SubmitResult, error)
	GetMonthlySummary(ctx context.Context, userID, monthYear string) (core.MonthlyLedger, error)
	Categories(rawType string) ([]string, error)
	Ready(ctx context.Context) error
}

// Config wires optional collaborators into the server.
type Config struct {
	Addr string
	// Identity defaults to identity.Default("").
	Identity           identity.Resolver
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
	// TrustBodyUserID lets a submission body's userId stand in when no
	// resolver finds one. Leave it off when bearer tokens are required.
	TrustBodyUserID bool
	// Logger is attached to every request context.
	Logger *applog.Logger
}

type Server struct {
	http.Server
	ledger      Ledger
	identity    identity.Resolver
	metrics     *metrics.Metrics
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	trustBody   bool

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(cfg Config, ledger Ledger) *Server {
	resolver := cfg.Identity
	if resolver == nil {
		resolver = identity.Default("")
	}

	s := &Server{
		ledger:    ledger,
		identity:  resolver,
		metrics:   cfg.Metrics,
		detector:  security.NewDetector(),
		trustBody: cfg.TrustBodyUserID,
	}
	if cfg.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transactions", s.handleSubmitTransaction)
	mux.HandleFunc("GET /api/ledgers", s.handleMonthlySummary)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	logger := cfg.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP).Middleware(handler)
	handler = s.metrics.Instrument(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
