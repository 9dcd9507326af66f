// Package api exposes scraping, pricing and tracking over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cron/track-prices", h.TrackPrices)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/scrape", h.Scrape)
			r.Post("/pricing/recommend", h.Recommend)
			r.Get("/currency/normalize", h.NormalizeCurrency)

			r.Post("/strategies", h.CreateStrategy)

			r.Get("/products", h.ListProducts)
			r.Post("/products", h.AddProduct)
			r.Route("/products/{productID}", func(r chi.Router) {
				r.Put("/cost", h.UpdateCost)
				r.Put("/strategy", h.AssignStrategy)
				r.Post("/competitors", h.AddCompetitor)
				r.Post("/strategy/apply", h.ApplyStrategy)
			})

			r.Route("/competitors/{competitorID}", func(r chi.Router) {
				r.Post("/track", h.TrackCompetitor)
				r.Delete("/", h.DeleteCompetitor)
			})
		})
	})

	return r
}
