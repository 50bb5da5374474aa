package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/container"
	"github.com/cargotrail/cargotrail/internal/masterdata"
	"github.com/cargotrail/cargotrail/internal/observability"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
	"github.com/cargotrail/cargotrail/internal/po"
	"github.com/cargotrail/cargotrail/internal/reports"
	"github.com/cargotrail/cargotrail/internal/shared"
	"github.com/cargotrail/cargotrail/internal/shipment"
	"github.com/cargotrail/cargotrail/internal/status"
	"github.com/cargotrail/cargotrail/jobs"
)

// RouterParams bundles everything the HTTP router needs.
type RouterParams struct {
	Config   *Config
	Logger   *slog.Logger
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	Metrics  *observability.Metrics

	Access brandaccess.Middleware

	Status     *status.Handler
	POs        *po.Handler
	Shipments  *shipment.Handler
	Containers *container.Handler
	Reports    *reports.Handler
	MasterData *masterdata.Handler
	Jobs       *jobs.Handler
}

// NewRouter assembles the full HTTP surface.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()
	MiddlewareStack(r, params.Config, params.Logger, params.Sessions, params.CSRF, params.Metrics)
	r.Use(params.Access.Attach)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		params.Status.MountRoutes(api)
		params.POs.MountRoutes(api)
		params.Shipments.MountRoutes(api)
		params.Containers.MountRoutes(api)
		params.Reports.MountRoutes(api)
		params.MasterData.MountRoutes(api)
	})

	if params.Jobs != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.Jobs.MountRoutes(jr)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
