package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/easyhotel/easyhotel/internal/observability"
	"github.com/easyhotel/easyhotel/internal/platform/httpx"
)

// RouteMounter is implemented by every domain handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	ServiceName string
	Metrics     *observability.Metrics
	Handlers    []RouteMounter
	// Endpoints is advertised by GET / as a name to path map.
	Endpoints map[string]string
	// Now overrides the clock used by /health.
	Now func() time.Time
}

// NewRouter constructs the chi.Router with EasyHotel defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	now := params.Now
	if now == nil {
		now = time.Now
	}
	version := "dev"
	if params.Config != nil && params.Config.AppVersion != "" {
		version = params.Config.AppVersion
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"status":    "OK",
			"timestamp": now().UTC().Format(time.RFC3339),
			"service":   params.ServiceName,
			"version":   version,
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"message":   "EasyHotel " + params.ServiceName,
			"version":   version,
			"endpoints": params.Endpoints,
		})
	})

	for _, h := range params.Handlers {
		if h != nil {
			h.MountRoutes(r)
		}
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "route not found", httpx.CodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	})

	return r
}
