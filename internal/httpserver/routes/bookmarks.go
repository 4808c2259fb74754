package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
)

func init() { Register(registerBookmarks, SessionOnly) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/api/bookmarks", func(r chi.Router) {
		r.Get("/", handlers.ListBookmarks(d))
		r.Get("/lookup", handlers.LookupBookmark(d))
		r.Get("/export", handlers.ExportBookmarks(d))
		r.Get("/category/{id}", handlers.BookmarksByCategory(d))
		r.Get("/{id}", handlers.GetBookmark(d))
		r.Get("/{id}/icon", handlers.BookmarkIcon(d))

		r.Post("/", handlers.CreateBookmark(d))
		r.Post("/addArray", handlers.AddBookmarks(d))
		r.Post("/import", handlers.ImportBookmarks(d))

		r.Put("/changePositions", handlers.ChangePositions(d))
		r.Put("/{id}", handlers.UpdateBookmark(d))
		r.Delete("/{id}", handlers.DeleteBookmark(d))
	})
}
