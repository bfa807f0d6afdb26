package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Routes groups the API handlers mounted by the server. Nil handlers leave
// their routes unregistered.
type Routes struct {
	Stops     *StopHandler
	Alerts    *AlertHandler
	Bookmarks *BookmarkHandler
	Health    *HealthHandler
}

// Mount registers the API routes on r
func (rt Routes) Mount(r chi.Router) {
	if rt.Health != nil {
		r.Get("/health", rt.Health.Health)
		r.Get("/healthz", rt.Health.Healthz)
		r.Get("/api/health/upstream", rt.Health.GetUpstreamHealth)
	}

	if rt.Stops != nil {
		r.Route("/api/stops/{line}/{stopNum}", func(r chi.Router) {
			r.Get("/", rt.Stops.GetBoard)
			r.Post("/refresh", rt.Stops.RefreshBoard)
			r.Get("/raw", rt.Stops.GetRawSnapshots)
		})
		r.Get("/api/source/{line}", rt.Stops.GetSource)
	}

	if rt.Alerts != nil {
		r.Get("/api/alerts", rt.Alerts.GetAlerts)
	}

	if rt.Bookmarks != nil {
		r.Get("/api/bookmarks", rt.Bookmarks.ListBookmarks)
		r.Post("/api/bookmarks", rt.Bookmarks.SaveBookmark)
		r.Delete("/api/bookmarks/{id}", rt.Bookmarks.DeleteBookmark)
	}
}
