// Package http serves the transaction JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// TransactionService is the subset of services.TransactionService the
// handlers call.
type TransactionService interface {
	List(ctx context.Context, user core.UserID) ([]core.Transaction, error)
	Create(ctx context.Context, user core.UserID, f core.Fields) (core.Transaction, error)
	Update(ctx context.Context, user core.UserID, id string, patch core.Fields) (core.Transaction, error)
	Delete(ctx context.Context, user core.UserID, id string) error
	Summary(ctx context.Context, user core.UserID) (core.Summary, error)
	Ping(ctx context.Context) error
}

// SessionResolver maps a request to the user its session belongs to.
type SessionResolver interface {
	CurrentUser(r *http.Request) (core.UserID, bool)
}

type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	// TrustedProxies adds CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
	// Metrics, when set, instruments every route and serves GET /metrics.
	Metrics *metrics.Metrics
}

type Server struct {
	http.Server
	svc      TransactionService
	sessions SessionResolver
	limiter  *ratelimit.Limiter
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer registers the API routes and wraps them in tracing, security
// headers and rate limiting.
func NewServer(addr string, svc TransactionService, sessions SessionResolver, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.Limit = opts.RateLimitPerMinute
	}

	s := &Server{
		svc:      svc,
		sessions: sessions,
		limiter:  ratelimit.NewLimiter(limitCfg),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/summary", s.handleSummary)
	mux.HandleFunc("PATCH /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	ips := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			logger.WithComponent(log.ComponentSecurity).Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, ips.ClientIP(r), log.FieldMethod, r.Method)
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	}

	var handler http.Handler = mux
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
		handler = opts.Metrics.Middleware(mux)
	}
	handler = s.limiter.Middleware(ips.ClientIP, onLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, ips.ClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
