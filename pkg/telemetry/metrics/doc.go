// Package metrics exports the proxy's prometheus metrics.
//
// All metrics live under the "vandamme" namespace:
//
//	vandamme_requests_total{provider,model,status}
//	vandamme_request_duration_seconds{provider,stream}
//	vandamme_tokens_total{provider,direction}
//	vandamme_upstream_errors_total{provider,kind}
//	vandamme_cache_hits_total{cache} / vandamme_cache_misses_total{cache}
//	vandamme_cache_entries{cache}
//	vandamme_oauth_refresh_total{provider,outcome}
//
// A single Collector is created at startup; Collector.Handler serves the
// /metrics endpoint.
package metrics
