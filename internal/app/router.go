package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/frostline-foods/frostline/internal/analytics"
	"github.com/frostline-foods/frostline/internal/audit"
	"github.com/frostline-foods/frostline/internal/bulkimport"
	"github.com/frostline-foods/frostline/internal/inventory"
	"github.com/frostline-foods/frostline/internal/masterdata"
	"github.com/frostline-foods/frostline/internal/observability"
	"github.com/frostline-foods/frostline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InventoryHandler  *inventory.Handler
	ImportHandler     *bulkimport.Handler
	AnalyticsHandler  *analytics.Handler
	AuditHandler      *audit.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Frostline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.InventoryHandler != nil {
		r.Route("/inventory", func(r chi.Router) {
			params.InventoryHandler.MountRoutes(r)
			if params.ImportHandler != nil {
				params.ImportHandler.MountRoutes(r)
			}
		})
	}
	if params.AnalyticsHandler != nil {
		r.Route("/analytics", func(r chi.Router) {
			params.AnalyticsHandler.MountRoutes(r)
		})
	}
	if params.AuditHandler != nil {
		r.Route("/audit", func(r chi.Router) {
			params.AuditHandler.MountRoutes(r)
		})
	}
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", func(r chi.Router) {
			params.MasterDataHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
