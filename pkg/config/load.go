package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, applies VANDAMME_* environment
// overrides and defaults, and validates the result. The sequence is:
//
//  1. Read and unmarshal the YAML file
//  2. Apply environment variable overrides
//  3. Fill remaining zero values with defaults
//  4. Validate
//
// Environment variables always win over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies VANDAMME_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("VANDAMME_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("VANDAMME_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if val := os.Getenv("VANDAMME_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("VANDAMME_SERVER_TLS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Server.TLS.Enabled = b
		}
	}
	if val := os.Getenv("VANDAMME_SERVER_TLS_CERT_FILE"); val != "" {
		cfg.Server.TLS.CertFile = val
	}
	if val := os.Getenv("VANDAMME_SERVER_TLS_KEY_FILE"); val != "" {
		cfg.Server.TLS.KeyFile = val
	}

	if val := os.Getenv("VANDAMME_AUTH_PROXY_KEY"); val != "" {
		cfg.Auth.ProxyKey = val
	}

	if val := os.Getenv("VANDAMME_DEFAULT_PROVIDER"); val != "" {
		cfg.DefaultProvider = val
	}

	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}

	if val := os.Getenv("VANDAMME_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("VANDAMME_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("VANDAMME_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}

	if val := os.Getenv("VANDAMME_USAGE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Usage.Enabled = b
		}
	}
	if val := os.Getenv("VANDAMME_USAGE_DATABASE_PATH"); val != "" {
		cfg.Usage.DatabasePath = val
	}
	if val := os.Getenv("VANDAMME_USAGE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Usage.RetentionDays = i
		}
	}

	if val := os.Getenv("VANDAMME_OAUTH_STORAGE_DIR"); val != "" {
		cfg.OAuth.StorageDir = val
	}
}

// applyProviderEnvOverrides applies VANDAMME_PROVIDERS_<NAME>_<FIELD>
// overrides for one configured provider. NAME is the uppercase provider name
// with dashes mapped to underscores.
func applyProviderEnvOverrides(cfg *Config, name string) {
	provider := cfg.Providers[name]
	prefix := fmt.Sprintf("VANDAMME_PROVIDERS_%s_",
		strings.ToUpper(strings.ReplaceAll(name, "-", "_")))

	modified := false
	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
		modified = true
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		provider.APIKey = val
		modified = true
	}
	if val := os.Getenv(prefix + "MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			provider.MaxRetries = i
			modified = true
		}
	}
	if val := os.Getenv(prefix + "REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.RequestTimeout = d
			modified = true
		}
	}

	if modified {
		cfg.Providers[name] = provider
	}
}
