package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

// AuthMiddleware guards API endpoints with the configured proxy key. The
// client presents the key either as "x-api-key: <key>" or as
// "Authorization: Bearer <key>"; comparison is constant-time.
//
// An empty configured key disables the check. Paths in skip (health probes,
// metrics scrapes) are always open.
//
// Example usage:
//
//	handler = AuthMiddleware(cfg.Auth.APIKey, "/health", "/metrics")(handler)
func AuthMiddleware(proxyKey string, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proxyKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := skipped[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			presented := clientKey(r)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(proxyKey)) != 1 {
				errResp := types.NewAuthenticationError("invalid or missing API key")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(errResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey pulls the presented credential from x-api-key or a Bearer header.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("x-api-key"); key != "" {
		return strings.TrimSpace(key)
	}

	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
