// Package middleware implements the request/response middleware chain and
// the thought-signature cache that rides on it.
//
// Middleware observes every proxied exchange through four hooks:
// BeforeRequest, AfterResponse (unary), OnStreamChunk (per translated
// event), and OnStreamComplete (exactly once per stream, including failed
// and cancelled ones). The orchestrator drives the chain; middleware never
// talks to the network itself.
package middleware
