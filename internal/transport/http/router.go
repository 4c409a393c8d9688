package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unstoppabledomains/nomulus/internal/platform/metrics"
	"github.com/unstoppabledomains/nomulus/pkg/platform/middleware/auth"
	"github.com/unstoppabledomains/nomulus/pkg/platform/middleware/request"
	"github.com/unstoppabledomains/nomulus/pkg/platform/middleware/requesttime"
)

// RouterOption configures optional router behavior.
type RouterOption func(*routerOptions)

type routerOptions struct {
	now func() time.Time
}

// WithTimeSource overrides the request-time clock. Tests use a fake clock
// here so deadline behavior is controllable end to end.
func WithTimeSource(now func() time.Time) RouterOption {
	return func(o *routerOptions) { o.now = now }
}

// NewRouter wires the public endpoints. Everything under /v1 requires a
// registrar bearer token; health and metrics do not.
func NewRouter(h *Handler, validator *auth.Validator, m *metrics.Metrics, logger *slog.Logger, opts ...RouterOption) http.Handler {
	options := routerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.Middleware)
	r.Use(requesttime.WithNow(options.now))
	r.Use(latency(m))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireRegistrar(validator, logger))

		r.Get("/{kind}/{id}", h.handleGetResource)
		r.Post("/{kind}/{id}/transfer", h.handleTransferRequest)
		r.Post("/{kind}/{id}/transfer/approve", h.handleTransferResolve(h.transfers.Approve))
		r.Post("/{kind}/{id}/transfer/reject", h.handleTransferResolve(h.transfers.Reject))
		r.Post("/{kind}/{id}/transfer/cancel", h.handleTransferResolve(h.transfers.Cancel))

		r.Get("/poll", h.handlePollList)
		r.Post("/poll/{id}/ack", h.handlePollAck)
	})
	return r
}

// latency records request duration by route pattern rather than raw path,
// keeping the label cardinality bounded.
func latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RequestDuration.WithLabelValues(
				route, r.Method, strconv.Itoa(ww.Status()),
			).Observe(time.Since(start).Seconds())
		})
	}
}
