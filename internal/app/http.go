package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (a *App) handleInfo(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, map[string]string{
		"service": a.config.GetString("instrument.service_name"),
		"version": a.config.GetString("instrument.service_version"),
		"time":    a.clock.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleHealth pings every configured backing service. Disabled ones are
// reported as such and do not fail the check.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "name", name, "error", err)
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}

	if a.dbConn != nil {
		check("database", a.dbConn.Ping)
	} else {
		resp.Checks["database"] = "disabled"
	}

	if a.cacheConn != nil {
		check("redis", func(ctx context.Context) error { return a.cacheConn.Ping(ctx).Err() })
	} else {
		resp.Checks["redis"] = "disabled"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	a.writeJSON(ctx, w, resp, code)
}

func (a *App) writeJSON(ctx context.Context, w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
