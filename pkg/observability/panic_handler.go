package observability

import (
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware turns a handler panic into a logged 500 response. The
// request-scoped logger from the context is used when present.
func RecoveryMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log := logger
				if l, ok := r.Context().Value(LoggerKey).(*Logger); ok {
					log = l
				}
				log.WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					WithField("method", r.Method).
					WithField("path", r.URL.Path).
					Error("PANIC recovered in HTTP handler")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
