package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
)

func init() { Register(registerCategories, SessionOnly) }

func registerCategories(r chi.Router, d deps.Deps) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", handlers.ListCategories(d))
		r.Post("/", handlers.CreateCategory(d))
		r.Get("/{id}", handlers.GetCategory(d))
		r.Put("/{id}", handlers.RenameCategory(d))
		r.Delete("/{id}", handlers.DeleteCategory(d))
	})
}
