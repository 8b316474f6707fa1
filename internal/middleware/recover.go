package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
)

// Recover turns a handler panic into a 500 carrying the request id, so an operator can
// find the stack in the log. http.ErrAbortHandler is re-raised for net/http to handle.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			id := RequestIDFrom(r.Context())
			slog.ErrorContext(r.Context(), "handler panic",
				"panic", rec,
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error",
				map[string]string{"request_id": id})
		}()
		next.ServeHTTP(w, r)
	})
}
