package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
	"github.com/ariefcatur/go-sales-orders/internal/observability"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

type RouterOptions struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Timeout time.Duration
}

func NewRouter(opts RouterOptions) *chi.Mux {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, traceID, observability.RequestLogger(opts.Logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, apperr.New(apperr.ErrEndpointNotFound, "API_ENDPOINT_NOT_FOUND"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	return r
}

// traceID copies the chi request id into the context the sale events read.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(sales.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
