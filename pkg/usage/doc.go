// Package usage records a per-request usage ledger.
//
// Every completed request, successful or failed, becomes one row: provider,
// resolved model, token counts, stop reason or error kind, and latency. The
// ledger backs the /health usage summary and gives operators an audit trail
// of what passed through the proxy.
//
// Storage is a WAL-mode SQLite file with a single writer connection. The
// driver is selected at build time: mattn/go-sqlite3 with cgo, modernc.org's
// pure-Go driver without. A cron-scheduled Scheduler prunes rows past the
// configured retention window.
package usage
