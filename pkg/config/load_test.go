package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
server:
  listen_address: "127.0.0.1:9000"
  request_timeout: 90s

auth:
  proxy_key: "proxy-secret"

default_provider: gemini

providers:
  gemini:
    api_format: openai-wire
    base_url: https://gemini.example.com/v1
    api_key: sk-g-1
    max_tokens_cap: 4096
    models:
      - gemini-2.5-pro
      - gemini-2.5-flash
  claudeapi:
    api_format: passthrough
    base_url: https://api.anthropic.example.com

aliases:
  fast: "gemini:gemini-2.5-flash"

logging:
  level: debug
  format: text

usage:
  enabled: true
  database_path: /tmp/usage.db
  retention_days: 7
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.RequestTimeout != 90*time.Second {
		t.Errorf("request timeout = %v", cfg.Server.RequestTimeout)
	}
	// Defaults filled what the file left out.
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.ProxyKey != "proxy-secret" {
		t.Errorf("proxy key = %q", cfg.Auth.ProxyKey)
	}
	if cfg.DefaultProvider != "gemini" {
		t.Errorf("default provider = %q", cfg.DefaultProvider)
	}
	if cfg.Aliases["fast"] != "gemini:gemini-2.5-flash" {
		t.Errorf("aliases = %v", cfg.Aliases)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	gemini := cfg.Providers["gemini"]
	if gemini.MaxTokensCap != 4096 || len(gemini.Models) != 2 {
		t.Errorf("gemini = %+v", gemini)
	}
	if !cfg.Usage.Enabled || cfg.Usage.RetentionDays != 7 {
		t.Errorf("usage = %+v", cfg.Usage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := writeConfig(t, `
providers:
  gemini:
    api_format: grpc
    base_url: https://gemini.example.com/v1
`)
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown api format")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VANDAMME_SERVER_LISTEN_ADDRESS", "0.0.0.0:7777")
	t.Setenv("VANDAMME_AUTH_PROXY_KEY", "env-secret")
	t.Setenv("VANDAMME_PROVIDERS_GEMINI_API_KEY", "sk-from-env")
	t.Setenv("VANDAMME_LOGGING_LEVEL", "warn")
	t.Setenv("VANDAMME_USAGE_RETENTION_DAYS", "14")

	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7777" {
		t.Errorf("listen address = %q, env should win", cfg.Server.ListenAddress)
	}
	if cfg.Auth.ProxyKey != "env-secret" {
		t.Errorf("proxy key = %q", cfg.Auth.ProxyKey)
	}
	if cfg.Providers["gemini"].APIKey != "sk-from-env" {
		t.Errorf("gemini api key = %q", cfg.Providers["gemini"].APIKey)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.Usage.RetentionDays != 14 {
		t.Errorf("retention = %d", cfg.Usage.RetentionDays)
	}
}

func TestLoadEnvOverrideIgnoresUnparseable(t *testing.T) {
	t.Setenv("VANDAMME_USAGE_RETENTION_DAYS", "fortnight")

	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Usage.RetentionDays != 7 {
		t.Errorf("retention = %d, want file value kept", cfg.Usage.RetentionDays)
	}
}
