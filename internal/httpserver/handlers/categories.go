package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func ListCategories(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Categories.List(r.Context())
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		c, err := d.Categories.Create(r.Context(), req.Name)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func GetCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := d.Categories.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func RenameCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		c, err := d.Categories.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// DeleteCategory removes a category; its bookmarks become uncategorized.
func DeleteCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		found, err := d.Categories.Delete(r.Context(), id)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if !found {
			fail(d, w, r, fmt.Errorf("%w: category %s", domain.ErrNotFound, id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
