package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/graftseed/graft/internal/api/handlers"
	apimiddleware "github.com/graftseed/graft/internal/api/middleware"
	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/metrics"
	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/services"
)

// Dependencies holds everything the API needs to serve requests
type Dependencies struct {
	Version       string
	ClientStore   *models.ClientStore
	SiteStore     *models.SiteStore
	IndexStore    *models.IndexStore
	HistoryStore  *models.HistoryStore
	Pool          *btclient.ClientPool
	IndexService  *services.IndexService
	ReseedService *services.ReseedService
	Metrics       *metrics.Manager
}

// NewRouter creates and configures the main application router
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	clientsHandler := handlers.NewClientsHandler(deps.ClientStore, deps.Pool)
	sitesHandler := handlers.NewSitesHandler(deps.SiteStore)
	indexHandler := handlers.NewIndexHandler(deps.IndexService, deps.Pool)
	reseedHandler := handlers.NewReseedHandler(deps.ReseedService, deps.Pool)
	statsHandler := handlers.NewStatsHandler(deps.ClientStore, deps.SiteStore, deps.IndexStore, deps.HistoryStore)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			handlers.RespondJSON(w, http.StatusOK, map[string]string{
				"status":  "ok",
				"version": deps.Version,
			})
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", clientsHandler.List)
			r.Post("/", clientsHandler.Create)

			r.Route("/{clientID}", func(r chi.Router) {
				r.Get("/", clientsHandler.Get)
				r.Put("/", clientsHandler.Update)
				r.Delete("/", clientsHandler.Delete)
				r.Post("/test", clientsHandler.Test)
				r.Get("/torrents", clientsHandler.Torrents)
			})
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", sitesHandler.List)
			r.Post("/", sitesHandler.Create)
			r.Get("/available", sitesHandler.Available)

			r.Route("/{siteID}", func(r chi.Router) {
				r.Get("/", sitesHandler.Get)
				r.Put("/", sitesHandler.Update)
				r.Delete("/", sitesHandler.Delete)
			})
		})

		r.Route("/index", func(r chi.Router) {
			r.Get("/stats", indexHandler.Stats)
			r.Post("/import/{clientID}", indexHandler.Import)
			r.Delete("/", indexHandler.Clear)
			r.Delete("/{siteID}", indexHandler.ClearBySite)
		})

		r.Route("/reseed", func(r chi.Router) {
			r.Post("/preview", reseedHandler.Preview)
			r.Post("/execute", reseedHandler.Execute)
			r.Get("/history", reseedHandler.History)
		})

		r.Get("/stats", statsHandler.Get)
	})

	if deps.Metrics != nil {
		metricsHandler := handlers.NewMetricsHandler(deps.Metrics)
		r.Get("/metrics", metricsHandler.ServeMetrics)
	}

	return r
}
