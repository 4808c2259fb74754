package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/apierr"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate classifies every request and stores the caller in its
// context. It never rejects; guards below do.
func Authenticate(gate *auth.Gate, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := gate.Classify(r.Context(), TokenFromRequest(r, cookieName))
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

// RequireSession rejects anonymous callers with 401.
func RequireSession(log logger.Logger) func(http.Handler) http.Handler {
	return guard(auth.RequireSession, log)
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(log logger.Logger) func(http.Handler) http.Handler {
	return guard(auth.RequireAdmin, log)
}

func guard(check func(auth.Caller) error, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(auth.CallerFrom(r.Context())); err != nil {
				apierr.Write(w, r, err, log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
