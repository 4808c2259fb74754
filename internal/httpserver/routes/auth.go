package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/api/auth", func(r chi.Router) {
		r.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:        d.LoginBurst,
			RefillPerMin: d.LoginRefillPerMin,
			MaxEntries:   10000,
			TrustProxy:   d.TrustProxy,
			Logger:       d.Logger,
		})).Post("/login", handlers.Login(d))

		r.Group(func(r chi.Router) {
			r.Use(SessionOnly(d))
			r.Post("/logout", handlers.Logout(d))
			r.Get("/me", handlers.Me(d))
			r.Put("/password", handlers.ChangeOwnPassword(d))
		})
	})
}
