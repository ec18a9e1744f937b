package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synthome-dev/synthome/internal/middleware"
)

// RouterOptions tune cross-cutting router behavior.
type RouterOptions struct {
	RateLimitPerMin int
	// StaticDir, when set, serves uploaded media under /static/ for the
	// filesystem storage backend.
	StaticDir string
	// Gatherer backs the /metrics endpoint. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter assembles the HTTP surface.
func NewRouter(app *App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/execute", app.Execute)
		r.Get("/executions/{executionID}/status", app.Status)
		r.Post("/webhooks/{executionID}/{jobID}", app.ProviderWebhook)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
