package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

const readyzTimeout = 2 * time.Second

type componentStatus struct {
	OK    bool   `json:"ok"`
	Mode  string `json:"mode,omitempty"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports 503 when the database, or Redis when configured, does not
// answer a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"database": checkDatabase(ctx, d),
			"sessions": checkSessions(ctx, d),
		}

		ready := true
		for name, c := range components {
			if !c.OK {
				ready = false
				d.Logger.Warn("readiness check failed",
					logger.String("component", name),
					logger.String("error", c.Error))
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Components: components})
	}
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if d.DB == nil {
		return componentStatus{OK: false, Error: "not initialized"}
	}
	if err := d.DB.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: "sqlite", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "sqlite"}
}

func checkSessions(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "memory"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Mode: "redis", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "redis"}
}
