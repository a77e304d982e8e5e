package handlers

import (
	"github.com/go-chi/chi/v5"
)

// API groups the portal's JSON handlers.
type API struct {
	Health     *HealthHandler
	Version    *VersionHandler
	Session    *SessionHandler
	Symbols    *SymbolsHandler
	Portfolios *PortfolioHandler
	Sections   *SectionsHandler
	Market     *MarketHandler
}

// RegisterRoutes mounts every /api route on r. Routes past login require a
// session cookie.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Handle("/health", a.Health)
		r.Handle("/version", a.Version)
		r.Get("/symbols", a.Symbols.Search)

		r.Post("/session/login", a.Session.Login)
		r.Post("/session/register", a.Session.Register)
		r.Post("/session/logout", a.Session.Logout)

		r.Group(func(r chi.Router) {
			r.Use(a.Session.Require)

			r.Get("/session", a.Session.Current)
			r.Post("/typeahead", a.Symbols.Typeahead)

			r.Route("/portfolios", func(r chi.Router) {
				r.Get("/", a.Portfolios.List)
				r.Post("/", a.Portfolios.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.Portfolios.Get)
					r.Delete("/", a.Portfolios.Delete)
					r.Post("/holdings", a.Portfolios.AddHolding)
					r.Put("/holdings/{holdingID}", a.Portfolios.UpdateHolding)
					r.Delete("/holdings/{holdingID}", a.Portfolios.DeleteHolding)
					r.Post("/analyze", a.Portfolios.Analyze)
					r.Delete("/analytics", a.Portfolios.ClearAnalytics)
				})
			})

			r.Get("/sections/{page}", a.Sections.List)
			r.Post("/sections/{page}/{section}/toggle", a.Sections.Toggle)

			r.Get("/top-picks", a.Market.TopPicks)
			r.Get("/market/price/{symbol}", a.Market.Price)
		})
	})
}
