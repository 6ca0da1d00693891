package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budsjett/internal/cache"
	"budsjett/internal/core"
	"budsjett/internal/services"
)

// PlanAPI is the mutation surface the server exposes.
type PlanAPI interface {
	CreateAccount(ctx context.Context, name, owner string) (core.Account, error)
	GetAccount(ctx context.Context, owner string, id int64) (core.Account, error)
	CreateItem(ctx context.Context, owner string, it core.BudgetItem) (core.BudgetItem, error)
	GetItem(ctx context.Context, owner string, id int64) (core.BudgetItem, error)
	ListItems(ctx context.Context, owner string, accountID int64) ([]core.BudgetItem, error)
	UpdateItem(ctx context.Context, owner string, id int64, patch services.ItemPatch) (core.BudgetItem, error)
	DeleteItem(ctx context.Context, owner string, id int64) error
	SetOverride(ctx context.Context, owner string, o core.BudgetOverride) error
}

// ProjectionAPI expands a plan into month buckets.
type ProjectionAPI interface {
	Plan(ctx context.Context, owner string, accountID int64, from, to core.Month) ([]core.MonthBucket, error)
}

type Server struct {
	http.Server
	plans       PlanAPI
	projections ProjectionAPI
	rateLimiter *rateLimiter

	// Plan responses are cached per account scope; every write to an
	// account invalidates its whole scope.
	planCache *cache.ScopedCache[[]core.MonthBucket]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, plans PlanAPI, projections ProjectionAPI) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		plans:       plans,
		projections: projections,
		rateLimiter: newRateLimiter(),
		planCache:   cache.NewScopedCache[[]core.MonthBucket](200, 5*time.Minute, 10*time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /accounts", s.withMiddleware(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts/{id}", s.withMiddleware(s.handleGetAccount))

	mux.HandleFunc("POST /items", s.withMiddleware(s.handleCreateItem))
	mux.HandleFunc("GET /items", s.withMiddleware(s.handleListItems))
	mux.HandleFunc("GET /items/{id}", s.withMiddleware(s.handleGetItem))
	mux.HandleFunc("PATCH /items/{id}", s.withMiddleware(s.handleUpdateItem))
	mux.HandleFunc("DELETE /items/{id}", s.withMiddleware(s.handleDeleteItem))
	mux.HandleFunc("PUT /items/{id}/overrides/{month}", s.withMiddleware(s.handleSetOverride))

	mux.HandleFunc("GET /plan", s.withMiddleware(s.handlePlan))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.planCache != nil {
			s.planCache.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit write methods only, reads are cheap and cached.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		setSecurityHeaders(w)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

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

// planRangeKey identifies one requested range inside an account scope.
func planRangeKey(from, to core.Month) string {
	return from.String() + ":" + to.String()
}

// invalidatePlans drops every cached plan response of the account.
func (s *Server) invalidatePlans(accountID int64) {
	s.planCache.Invalidate(accountID)
}
