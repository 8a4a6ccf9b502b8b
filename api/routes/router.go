package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rfm-dashboard/api/controllers"
	"github.com/angelmondragon/rfm-dashboard/api/middleware"
	"github.com/angelmondragon/rfm-dashboard/api/responses"
	"github.com/angelmondragon/rfm-dashboard/internal/dashboard"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	pkgerrors "github.com/angelmondragon/rfm-dashboard/pkg/errors"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dashboardService dashboard.Service,
	sourcePinger controllers.Pinger,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "method not allowed"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, sourcePinger))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", controllers.Dashboard(dashboardService, logg))
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.Customers(dashboardService, logg))
			r.Get("/{customerID}", controllers.Customer(dashboardService, logg))
		})
		r.Post("/rfm", controllers.ComputeRFM(dashboardService, logg))
	})

	return r
}
