package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler

	// Guard builds an access middleware once deps are known.
	Guard func(d deps.Deps) Middleware
)

// Access levels shared by the route groups.
var (
	SessionOnly Guard = func(d deps.Deps) Middleware { return mw.RequireSession(d.Logger) }
	AdminOnly   Guard = func(d deps.Deps) Middleware { return mw.RequireAdmin(d.Logger) }
	MonitorOnly Guard = func(d deps.Deps) Middleware {
		return mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	}
)

type entry struct {
	reg    Registrar
	guards []Guard
}

var registry []entry

// Register a registrar with optional guards applied to all of its routes.
func Register(reg Registrar, guards ...Guard) {
	registry = append(registry, entry{reg: reg, guards: guards})
}

// Called once per router from NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		if len(e.guards) == 0 {
			e.reg(r, d)
			continue
		}
		mws := make([]Middleware, len(e.guards))
		for i, g := range e.guards {
			mws[i] = g(d)
		}
		e.reg(r.With(mws...), d)
	}
}
