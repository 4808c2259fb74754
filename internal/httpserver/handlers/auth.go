package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// Login checks credentials, registers a new session and sets the session
// cookie. The token is also returned for API clients.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if req.Username == "" || req.Password == "" {
			fail(d, w, r, fmt.Errorf("%w: username and password", domain.ErrMissingField))
			return
		}

		u, err := d.Credentials.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			d.Logger.Info("login failed", logger.String("username", req.Username))
			fail(d, w, r, err)
			return
		}

		tok, err := d.Tokens.Issue(u.ID)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if err := d.Sessions.Add(r.Context(), tok.ID, u.ID, tok.ExpiresAt); err != nil {
			fail(d, w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     d.SessionCookie,
			Value:    tok.Value,
			Path:     "/",
			Expires:  tok.ExpiresAt,
			HttpOnly: true,
			Secure:   d.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		d.Logger.Info("login succeeded", logger.String("user_id", u.ID))
		writeJSON(w, http.StatusOK, loginResponse{Token: tok.Value, ExpiresAt: tok.ExpiresAt, User: u})
	}
}

// Logout revokes the current session and clears the cookie.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.CallerFrom(r.Context())
		if err := d.Sessions.Revoke(r.Context(), c.TokenID); err != nil {
			fail(d, w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     d.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   d.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := d.Credentials.GetByID(r.Context(), auth.CallerFrom(r.Context()).UserID)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

type changeOwnPasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangeOwnPassword lets a signed-in user replace their password. Every
// session of the user, the current one included, is revoked.
func ChangeOwnPassword(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changeOwnPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}

		c := auth.CallerFrom(r.Context())
		if _, err := d.Credentials.ChangePassword(r.Context(), c.Username, req.CurrentPassword, req.NewPassword); err != nil {
			fail(d, w, r, err)
			return
		}
		revokeAll(d, r, c.UserID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// revokeAll drops every session of userID. Failures are logged: the password
// change already happened and sessions still expire on their own.
func revokeAll(d deps.Deps, r *http.Request, userID string) {
	n, err := d.Sessions.RevokeUser(r.Context(), userID)
	if err != nil {
		d.Logger.Error("failed to revoke sessions",
			logger.String("user_id", userID),
			logger.Error(err))
		return
	}
	d.Logger.Info("sessions revoked",
		logger.String("user_id", userID),
		logger.Int("count", n))
}
