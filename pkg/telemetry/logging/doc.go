// Package logging sets up structured logging for the proxy.
//
// The proxy logs through log/slog with a JSON handler by default and a text
// handler for development. Setup installs the configured logger as the
// process default, so call sites use plain slog:
//
//	slog.Info("processing messages request",
//		"request_id", requestID,
//		"provider", provider,
//		"model", model,
//	)
//
// Every record passes through a Redactor before reaching the handler: values
// of credential-shaped keys (api_key, authorization, token, ...) are masked,
// and string values are scanned for embedded API keys and bearer tokens.
// A request that logs an upstream error body cannot leak the key it was
// sent with.
package logging
