package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-checkout/api/controllers"
	"github.com/angelmondragon/marketplace-checkout/api/middleware"
	"github.com/angelmondragon/marketplace-checkout/pkg/config"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Store      controllers.Pinger
	Workspaces controllers.Workspaces
	Catalog    controllers.Catalog
	Gatherer   prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Store, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Checkout.SessionCookieName, cfg.App.IsProd(), logg))
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Workspaces, logg))
			r.Delete("/", controllers.CartClear(deps.Workspaces, logg))
			r.Post("/items", controllers.CartAddItem(deps.Workspaces, deps.Catalog, logg))
			r.Patch("/items/{lineKey}", controllers.CartUpdateItem(deps.Workspaces, deps.Catalog, logg))
			r.Delete("/items/{lineKey}", controllers.CartRemoveItem(deps.Workspaces, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/options", controllers.CheckoutOptions(deps.Workspaces, logg))
			r.Post("/quote", controllers.CheckoutQuote(deps.Workspaces, logg))
			r.Post("/", controllers.CheckoutSubmit(deps.Workspaces, logg))
		})
	})

	return r
}
