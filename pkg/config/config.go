package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// Config is the root configuration structure.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Auth configures client-facing proxy authentication.
	Auth AuthConfig `yaml:"auth"`

	// Providers maps provider names to their upstream configuration.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// DefaultProvider names the provider used for unprefixed model strings.
	// Empty means the first configured provider in name order.
	DefaultProvider string `yaml:"default_provider"`

	// Aliases maps short model names to "provider:model" targets.
	Aliases map[string]string `yaml:"aliases"`

	// Signatures configures the thought-signature cache middleware.
	Signatures SignaturesConfig `yaml:"signatures"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Usage configures the per-request usage ledger.
	Usage UsageConfig `yaml:"usage"`

	// OAuth configures credential storage shared by the server and the
	// login command.
	OAuth OAuthStorageConfig `yaml:"oauth"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadHeaderTimeout bounds reading the request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// RequestTimeout is the deadline applied to non-streaming requests.
	// Streaming paths are exempt; upstream stream read timeouts bound those.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS enables serving over HTTPS.
	TLS TLSConfig `yaml:"tls"`

	// CORS configures cross-origin headers.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains TLS settings for the listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CORSConfig contains cross-origin settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	ExposedHeaders []string `yaml:"exposed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// AuthConfig contains client-facing authentication settings.
type AuthConfig struct {
	// ProxyKey is the key clients must present via x-api-key or a bearer
	// token. Empty disables proxy authentication.
	ProxyKey string `yaml:"proxy_key"`
}

// ProviderConfig configures one upstream provider.
type ProviderConfig struct {
	// APIFormat is the upstream wire format: "anthropic-wire",
	// "openai-wire", or "passthrough".
	APIFormat string `yaml:"api_format"`

	// BaseURL is the upstream API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is a single static key; shorthand for a one-entry APIKeys.
	APIKey string `yaml:"api_key"`

	// APIKeys is the static key rotation list.
	APIKeys []string `yaml:"api_keys"`

	// OAuth enables OAuth authentication instead of static keys.
	OAuth *OAuthProviderConfig `yaml:"oauth"`

	// ConnectTimeout bounds dialing the upstream.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds a whole unary upstream request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// StreamReadTimeout bounds the gap between stream frames.
	StreamReadTimeout time.Duration `yaml:"stream_read_timeout"`

	// MaxRetries is the retry budget for pre-body network errors.
	MaxRetries int `yaml:"max_retries"`

	// MaxTokensCap clamps client-supplied max_tokens, 0 means no cap.
	MaxTokensCap int `yaml:"max_tokens_cap"`

	// ExtraHeaders are merged onto every upstream call.
	ExtraHeaders map[string]string `yaml:"extra_headers"`

	// Models is the static model list served when the upstream list call
	// fails.
	Models []string `yaml:"models"`
}

// OAuthProviderConfig configures a provider's OAuth endpoints.
type OAuthProviderConfig struct {
	ClientID     string   `yaml:"client_id"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
	CallbackPort int      `yaml:"callback_port"`
}

// SignaturesConfig configures the thought-signature cache.
type SignaturesConfig struct {
	// Enabled turns the middleware on. Default true.
	Enabled *bool `yaml:"enabled"`

	// TTL is how long cached signatures stay retrievable.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the cache; oldest entries are evicted first.
	MaxEntries int `yaml:"max_entries"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// MetricsConfig contains prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// UsageConfig contains usage ledger settings.
type UsageConfig struct {
	// Enabled turns per-request usage recording on.
	Enabled bool `yaml:"enabled"`

	// DatabasePath is the SQLite file location.
	DatabasePath string `yaml:"database_path"`

	// RetentionDays is how long rows are kept before pruning. 0 keeps
	// everything.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the retention job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// OAuthStorageConfig contains credential storage settings.
type OAuthStorageConfig struct {
	// StorageDir is the root directory for persisted credentials.
	// Default ~/.vandamme.
	StorageDir string `yaml:"storage_dir"`
}

// SignaturesEnabled reports whether the thought-signature middleware should
// run, defaulting to enabled when unset.
func (c *SignaturesConfig) SignaturesEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Descriptors converts the provider map into registry descriptors, sorted by
// name for deterministic registry order. It returns the resolved default
// provider name alongside.
func (c *Config) Descriptors() ([]providers.Descriptor, string, error) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	descs := make([]providers.Descriptor, 0, len(names))
	for _, name := range names {
		pc := c.Providers[name]

		keys := pc.APIKeys
		if pc.APIKey != "" {
			keys = append([]string{pc.APIKey}, keys...)
		}
		if len(keys) > 0 && pc.OAuth != nil {
			return nil, "", fmt.Errorf("provider %q: api keys and oauth are mutually exclusive", name)
		}

		auth := providers.Auth{Kind: providers.AuthNone}
		switch {
		case len(keys) > 0:
			auth = providers.Auth{Kind: providers.AuthStaticKeys, Keys: keys}
		case pc.OAuth != nil:
			auth = providers.Auth{
				Kind: providers.AuthOAuth,
				OAuth: &providers.OAuthConfig{
					ClientID:     pc.OAuth.ClientID,
					AuthURL:      pc.OAuth.AuthURL,
					TokenURL:     pc.OAuth.TokenURL,
					Scopes:       pc.OAuth.Scopes,
					CallbackPort: pc.OAuth.CallbackPort,
					StorageDir:   c.OAuth.StorageDir,
				},
			}
		}

		desc := providers.Descriptor{
			Name:              name,
			APIFormat:         pc.APIFormat,
			BaseURL:           pc.BaseURL,
			Auth:              auth,
			ConnectTimeout:    pc.ConnectTimeout,
			RequestTimeout:    pc.RequestTimeout,
			StreamReadTimeout: pc.StreamReadTimeout,
			MaxRetries:        pc.MaxRetries,
			MaxTokensCap:      pc.MaxTokensCap,
			ExtraHeaders:      pc.ExtraHeaders,
			Models:            pc.Models,
		}
		desc.ApplyDefaults()
		descs = append(descs, desc)
	}

	defaultName := c.DefaultProvider
	if defaultName == "" && len(names) > 0 {
		defaultName = names[0]
	}

	return descs, defaultName, nil
}
