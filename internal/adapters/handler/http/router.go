package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type Handlers struct {
	Auth     *AuthHandler
	User     *UserHandler
	Election *ElectionHandler
	Vote     *VoteHandler
	Public   *PublicHandler
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewHandler(h Handlers, authService ports.AuthService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/google/callback", h.Auth.GoogleCallback)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireOrganizer(authService))

			r.Get("/me", h.User.GetMe)

			r.Route("/elections", func(r chi.Router) {
				r.Post("/", h.Election.Create)
				r.Get("/", h.Election.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Election.Get)
					r.Put("/candidates", h.Election.SetCandidates)
					r.Put("/status", h.Election.UpdateStatus)
					r.Post("/tokens/mint", h.Election.MintTokens)
					r.Get("/tokens/stats", h.Election.TokenStats)
					r.Get("/analytics", h.Election.Analytics)
					r.Get("/results", h.Election.Results)
					r.Get("/audit", h.Election.Audit)
				})
			})
		})

		r.Route("/vote", func(r chi.Router) {
			r.Post("/claim", h.Vote.Claim)
			r.Post("/submit", h.Vote.Submit)
		})

		r.Route("/public/{slug}", func(r chi.Router) {
			r.Get("/", h.Public.Get)
			r.Get("/results", h.Public.Results)
			r.Get("/receipts", h.Public.Receipts)
			r.Get("/receipts/{hash}", h.Public.LookupReceipt)
			r.Get("/ballots.json", h.Public.Ballots)
		})
	})

	return r
}
