package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/config"
)

// middlewareMaintenance answers 503 for route patterns listed under
// http.maintenance_endpoints, e.g. "/register" while the store is migrated.
// The list is read per request so a config reload takes effect immediately.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeOf(r)
			blocked := slices.ContainsFunc(cfg.GetArray("http.maintenance_endpoints"), func(s string) bool {
				return strings.TrimSpace(s) == route
			})
			if blocked && route != "" {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
