package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values applied to zero-valued fields.
const (
	DefaultListenAddress     = "127.0.0.1:8082"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultRequestTimeout    = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath = "/metrics"

	DefaultSignatureTTL        = 60 * time.Minute
	DefaultSignatureMaxEntries = 10000

	DefaultUsageDatabasePath = "vandamme-usage.db"
	DefaultUsageRetention    = 30
	DefaultPruneSchedule     = "0 3 * * *" // daily at 03:00
)

// ApplyDefaults fills zero-valued fields with defaults. Explicitly set values
// are never changed.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{
			"Authorization", "Content-Type", "x-api-key", "anthropic-version", "X-Request-ID",
		}
	}
	if len(cfg.Server.CORS.ExposedHeaders) == 0 {
		cfg.Server.CORS.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = 3600
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Signatures.TTL == 0 {
		cfg.Signatures.TTL = DefaultSignatureTTL
	}
	if cfg.Signatures.MaxEntries == 0 {
		cfg.Signatures.MaxEntries = DefaultSignatureMaxEntries
	}

	if cfg.Usage.DatabasePath == "" {
		cfg.Usage.DatabasePath = DefaultUsageDatabasePath
	}
	if cfg.Usage.RetentionDays == 0 {
		cfg.Usage.RetentionDays = DefaultUsageRetention
	}
	if cfg.Usage.PruneSchedule == "" {
		cfg.Usage.PruneSchedule = DefaultPruneSchedule
	}

	if cfg.OAuth.StorageDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.OAuth.StorageDir = filepath.Join(home, ".vandamme")
		}
	}
}
