package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
)

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

func CreateUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}

		u, err := d.Credentials.CreateUser(r.Context(), req.Username, req.Password, req.IsAdmin)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

func ListUsers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := d.Credentials.ListUsers(r.Context())
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// DeleteUser removes an account and its sessions. Admins cannot delete
// themselves.
func DeleteUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == auth.CallerFrom(r.Context()).UserID {
			fail(d, w, r, fmt.Errorf("%w: cannot delete your own account", domain.ErrBadRequest))
			return
		}

		removed, err := d.Credentials.DeleteUser(r.Context(), id)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if !removed {
			fail(d, w, r, fmt.Errorf("%w: user %s", domain.ErrNotFound, id))
			return
		}
		revokeAll(d, r, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

type changePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword updates another user's password after checking the current
// one: 404 for an unknown user, 403 when the current password is wrong.
func ChangePassword(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if req.Username == "" {
			fail(d, w, r, fmt.Errorf("%w: username", domain.ErrMissingField))
			return
		}

		u, err := d.Credentials.ChangePassword(r.Context(), req.Username, req.CurrentPassword, req.NewPassword)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		revokeAll(d, r, u.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// ResetPassword is the admin override: no current password required.
func ResetPassword(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}

		id := chi.URLParam(r, "id")
		if err := d.Credentials.UpdatePassword(r.Context(), id, req.NewPassword); err != nil {
			fail(d, w, r, err)
			return
		}
		revokeAll(d, r, id)
		w.WriteHeader(http.StatusNoContent)
	}
}
