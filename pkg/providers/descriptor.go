package providers

import (
	"fmt"
	"net/url"
	"time"
)

// Auth kinds a descriptor may carry.
const (
	AuthStaticKeys = "static-keys"
	AuthOAuth      = "oauth"
	AuthNone       = "none"
)

// OAuthConfig holds the endpoints and client identity for an OAuth provider.
type OAuthConfig struct {
	// ClientID is the registered OAuth client identifier
	ClientID string

	// AuthURL is the authorization endpoint opened in the browser
	AuthURL string

	// TokenURL is the token endpoint used for code exchange and refresh
	TokenURL string

	// Scopes are the requested OAuth scopes
	Scopes []string

	// CallbackPort is the loopback port the login flow listens on
	CallbackPort int

	// StorageDir overrides the credential root directory for this provider
	StorageDir string
}

// Auth is the tagged credential variant of a descriptor. Exactly one mode is
// active, selected by Kind.
type Auth struct {
	// Kind is one of AuthStaticKeys, AuthOAuth, AuthNone
	Kind string

	// Keys is the rotation list for AuthStaticKeys
	Keys []string

	// OAuth is the endpoint configuration for AuthOAuth
	OAuth *OAuthConfig
}

// Descriptor describes one upstream provider. Descriptors are immutable
// after registry initialization.
type Descriptor struct {
	// Name is the provider identifier (e.g. "openrouter", "gemini")
	Name string

	// APIFormat is the upstream wire format, one of the Format constants
	APIFormat string

	// BaseURL is the API endpoint base URL, absolute, without trailing slash
	BaseURL string

	// Auth selects and configures the credential mode
	Auth Auth

	// ConnectTimeout bounds dialing the upstream
	ConnectTimeout time.Duration

	// RequestTimeout bounds a whole unary request
	RequestTimeout time.Duration

	// StreamReadTimeout bounds the gap between stream frames; it resets on
	// every successfully read frame
	StreamReadTimeout time.Duration

	// MaxRetries is the retry budget for pre-body network errors
	MaxRetries int

	// MaxTokensCap clamps the client-supplied max_tokens, 0 means no cap
	MaxTokensCap int

	// ExtraHeaders are constant headers merged onto every upstream call
	ExtraHeaders map[string]string

	// Models is a static model list served as a fallback when the upstream
	// list call fails or the provider exposes none
	Models []string

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// ApplyDefaults fills zero-valued tuning fields with sensible defaults.
// Identity fields (Name, APIFormat, BaseURL, Auth) are never defaulted.
func (d *Descriptor) ApplyDefaults() {
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = 10 * time.Second
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = 120 * time.Second
	}
	if d.StreamReadTimeout == 0 {
		d.StreamReadTimeout = 5 * time.Minute
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 100
	}
	if d.MaxIdleConnsPerHost == 0 {
		d.MaxIdleConnsPerHost = 10
	}
	if d.IdleConnTimeout == 0 {
		d.IdleConnTimeout = 90 * time.Second
	}
	if d.Auth.Kind == "" {
		if len(d.Auth.Keys) > 0 {
			d.Auth.Kind = AuthStaticKeys
		} else if d.Auth.OAuth != nil {
			d.Auth.Kind = AuthOAuth
		} else {
			d.Auth.Kind = AuthNone
		}
	}
}

// Validate checks the descriptor for structural errors. It returns a
// ConfigError naming the offending field.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return &ConfigError{Provider: d.Name, Field: "name", Message: "provider name is required"}
	}

	switch d.APIFormat {
	case FormatAnthropic, FormatOpenAI, FormatPassthrough:
	default:
		return &ConfigError{
			Provider: d.Name,
			Field:    "api_format",
			Message: fmt.Sprintf("must be one of %q, %q, %q; got %q",
				FormatAnthropic, FormatOpenAI, FormatPassthrough, d.APIFormat),
		}
	}

	u, err := url.Parse(d.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Provider: d.Name, Field: "base_url", Message: "must be an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Provider: d.Name, Field: "base_url", Message: "scheme must be http or https"}
	}

	switch d.Auth.Kind {
	case AuthStaticKeys:
		if len(d.Auth.Keys) == 0 {
			return &ConfigError{Provider: d.Name, Field: "auth.keys", Message: "static-keys auth requires at least one key"}
		}
	case AuthOAuth:
		if d.Auth.OAuth == nil {
			return &ConfigError{Provider: d.Name, Field: "auth.oauth", Message: "oauth auth requires endpoint configuration"}
		}
		if d.Auth.OAuth.ClientID == "" {
			return &ConfigError{Provider: d.Name, Field: "auth.oauth.client_id", Message: "client id is required"}
		}
		if d.Auth.OAuth.TokenURL == "" {
			return &ConfigError{Provider: d.Name, Field: "auth.oauth.token_url", Message: "token url is required"}
		}
	case AuthNone:
	default:
		return &ConfigError{
			Provider: d.Name,
			Field:    "auth.kind",
			Message: fmt.Sprintf("must be one of %q, %q, %q; got %q",
				AuthStaticKeys, AuthOAuth, AuthNone, d.Auth.Kind),
		}
	}

	if d.MaxRetries < 0 {
		return &ConfigError{Provider: d.Name, Field: "retries", Message: "must not be negative"}
	}
	if d.MaxTokensCap < 0 {
		return &ConfigError{Provider: d.Name, Field: "max_tokens_cap", Message: "must not be negative"}
	}

	return nil
}

// CapMaxTokens clamps a client-supplied max_tokens to the descriptor's cap.
func (d *Descriptor) CapMaxTokens(n int) int {
	if d.MaxTokensCap > 0 && n > d.MaxTokensCap {
		return d.MaxTokensCap
	}
	return n
}
