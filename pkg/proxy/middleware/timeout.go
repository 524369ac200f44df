package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware attaches a deadline to the request context. Handlers and
// upstream calls observe the deadline through ctx.Done() and map the
// resulting context.DeadlineExceeded to a 504 envelope themselves; the
// middleware never races the handler for the response writer, which matters
// once an SSE stream is open.
//
// Paths in skip are exempt, so long-lived streaming endpoints can run under
// their own per-provider stream-read timeouts instead.
//
// Example usage:
//
//	handler = TimeoutMiddleware(60*time.Second, "/v1/messages")(handler)
func TimeoutMiddleware(timeout time.Duration, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := skipped[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
