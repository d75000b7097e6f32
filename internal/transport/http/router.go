// Package httptransport assembles the HTTP surface: middleware chain,
// domain handlers, health and metrics endpoints. Handlers stay thin and
// delegate to domain services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applicationhandler "prequal/internal/application/handler"
	documenthandler "prequal/internal/documents/handler"
	"prequal/internal/platform/metrics"
	"prequal/internal/platform/middleware"
	recordhandler "prequal/internal/records/handler"
)

// Registrar is any domain handler that mounts routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router wires together.
type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator

	Applications *applicationhandler.Handler
	Records      *recordhandler.Handler
	Documents    *documenthandler.Handler
}

// requestTimeout bounds every handler; uploads stream within it.
const requestTimeout = 60 * time.Second

// New builds the full router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Everything below acts on behalf of an authenticated vendor. Document
	// uploads are multipart, so the JSON content-type check mounts on a
	// separate group.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))
		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			deps.Applications.Register(r)
			deps.Records.Register(r)
		})
		deps.Documents.Register(r)
	})

	return r
}
