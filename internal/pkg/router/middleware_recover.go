package router

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/stacktrace"
)

// middlewareRecoverer turns a handler panic into a 500 envelope. The panic
// value and stack are logged, never returned to the client.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:errorlint,err113 // sentinel must propagate untouched
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			slog.ErrorContext(r.Context(), "recovered from handler panic",
				"panic", rvr,
				"route", routeOf(r),
				"stack", stacktrace.Frames(debug.Stack()),
			)
			writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
