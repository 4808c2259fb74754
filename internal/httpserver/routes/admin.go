package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
)

func init() { Register(registerAdmin, AdminOnly) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/", handlers.CreateUser(d))
		r.Get("/users", handlers.ListUsers(d))
		r.Put("/changePassword", handlers.ChangePassword(d))
		r.Put("/users/{id}/password", handlers.ResetPassword(d))
		r.Delete("/{id}", handlers.DeleteUser(d))
	})
}
