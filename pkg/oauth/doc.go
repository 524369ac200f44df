// Package oauth implements OAuth 2.0 credential management for upstream
// providers: persistent token storage, proactive refresh with single-flight
// coalescing, and an interactive PKCE authorization-code login flow.
//
// Credentials are stored one file per provider under
// <root>/oauth/<provider>/auth.json with owner-only permissions. Writes are
// atomic (temp file plus rename) so a crashed refresh never leaves a torn
// record. A fsnotify watcher lets a running server pick up credentials
// written by "vandamme login" in another process without a restart.
package oauth
