package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"optin/internal/consent/handler"
	"optin/internal/platform/health"
	"optin/pkg/platform/middleware/device"
	"optin/pkg/platform/middleware/request"
	"optin/pkg/platform/middleware/requesttime"
)

// Deps are the pieces the router wires together. Pages is the site being
// served behind the consent gate; it may be nil.
type Deps struct {
	Logger         *slog.Logger
	Health         *health.Handler
	Consent        *handler.Handler
	Pages          http.Handler
	Metrics        *request.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata)
	r.Use(device.BotDetection)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(request.LatencyMiddleware(d.Metrics))
	if d.RequestTimeout > 0 {
		r.Use(request.Timeout(d.RequestTimeout))
	}

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Consent.Register(r)

	if d.Pages != nil {
		r.With(d.Consent.PageMiddleware).Handle("/*", d.Pages)
	}
	return r
}
