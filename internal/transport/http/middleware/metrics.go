package middleware

import (
	"net/http"
	"time"
)

type RequestRecorder interface {
	Record(method, route string, status int, duration time.Duration)
}

// Metrics reports every request under its route pattern, not its raw path.
func Metrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			rec.Record(r.Method, routePattern(r), recorder.status, time.Since(start))
		})
	}
}
