package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id    TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	stream        INTEGER NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	stop_reason   TEXT,
	error_kind    TEXT,
	latency_ms    INTEGER NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_created_at ON usage_records(created_at);
CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_records(provider);
`

// LedgerConfig contains settings for the usage ledger.
type LedgerConfig struct {
	// Path is the SQLite database file location.
	Path string

	// BusyTimeout is how long a locked database is retried.
	// Default 5 seconds.
	BusyTimeout time.Duration
}

// Ledger records one row per completed request in a WAL-mode SQLite
// database. Writes go through a single connection; SQLite serializes them.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenLedger opens or creates the ledger database and its schema.
func OpenLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("usage ledger requires a database path")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open(sqliteDriver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database %q: %w", cfg.Path, err)
	}

	// One writer connection keeps SQLite happy under concurrency.
	db.SetMaxOpenConns(1)

	l := &Ledger{
		db:     db,
		logger: slog.Default().With("component", "usage.ledger"),
	}

	if err := l.initialize(cfg.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	l.logger.Info("usage ledger opened", "path", cfg.Path)
	return l, nil
}

func (l *Ledger) initialize(busyTimeout time.Duration) error {
	if _, err := l.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := l.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create usage schema: %w", err)
	}
	return nil
}

// Insert writes one usage row. A zero CreatedAt gets the current time.
func (l *Ledger) Insert(ctx context.Context, rec *Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records (
			request_id, provider, model, stream,
			input_tokens, output_tokens,
			stop_reason, error_kind, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Provider, rec.Model, rec.Stream,
		rec.InputTokens, rec.OutputTokens,
		nullable(rec.StopReason), nullable(rec.ErrorKind),
		rec.LatencyMS, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// Summary returns ledger totals.
func (l *Ledger) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(error_kind)
		FROM usage_records`).Scan(&s.Requests, &s.Errors)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return &s, nil
}

// Prune deletes rows older than cutoff and returns how many were removed.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM usage_records WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// nullable maps empty strings to NULL so COUNT(error_kind) counts failures.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
