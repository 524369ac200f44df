package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration, collecting every error rather than
// stopping at the first.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg)...)
	errs = append(errs, validateAliases(cfg)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "request timeout must not be negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must not be negative",
		})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "cert file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "key file is required when TLS is enabled",
			})
		}
	}

	return errs
}

func validateProviders(cfg *Config) []FieldError {
	var errs []FieldError

	if len(cfg.Providers) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider is required",
		})
		return errs
	}

	if cfg.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
			errs = append(errs, FieldError{
				Field:   "default_provider",
				Message: fmt.Sprintf("provider %q is not configured", cfg.DefaultProvider),
			})
		}
	}

	for name, pc := range cfg.Providers {
		field := func(f string) string { return fmt.Sprintf("providers.%s.%s", name, f) }

		switch pc.APIFormat {
		case "anthropic-wire", "openai-wire", "passthrough":
		case "":
			errs = append(errs, FieldError{
				Field:   field("api_format"),
				Message: "api format is required",
			})
		default:
			errs = append(errs, FieldError{
				Field:   field("api_format"),
				Message: fmt.Sprintf("unknown api format %q", pc.APIFormat),
			})
		}

		u, err := url.Parse(pc.BaseURL)
		if pc.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: "must be an absolute URL",
			})
		}

		hasKeys := pc.APIKey != "" || len(pc.APIKeys) > 0
		if hasKeys && pc.OAuth != nil {
			errs = append(errs, FieldError{
				Field:   field("oauth"),
				Message: "api keys and oauth are mutually exclusive",
			})
		}
		if pc.OAuth != nil {
			if pc.OAuth.ClientID == "" {
				errs = append(errs, FieldError{
					Field:   field("oauth.client_id"),
					Message: "client id is required",
				})
			}
			if pc.OAuth.TokenURL == "" {
				errs = append(errs, FieldError{
					Field:   field("oauth.token_url"),
					Message: "token url is required",
				})
			}
		}
		if pc.MaxRetries < 0 {
			errs = append(errs, FieldError{
				Field:   field("max_retries"),
				Message: "must not be negative",
			})
		}
		if pc.MaxTokensCap < 0 {
			errs = append(errs, FieldError{
				Field:   field("max_tokens_cap"),
				Message: "must not be negative",
			})
		}
	}

	return errs
}

func validateAliases(cfg *Config) []FieldError {
	var errs []FieldError

	for alias, target := range cfg.Aliases {
		provider, _, ok := strings.Cut(target, ":")
		if !ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("aliases.%s", alias),
				Message: fmt.Sprintf("target %q must be provider:model", target),
			})
			continue
		}
		if _, exists := cfg.Providers[provider]; !exists {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("aliases.%s", alias),
				Message: fmt.Sprintf("provider %q is not configured", provider),
			})
		}
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (use debug, info, warn, error)", cfg.Level),
		})
	}
	switch cfg.Format {
	case "", "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (use json or text)", cfg.Format),
		})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.DatabasePath == "" {
		errs = append(errs, FieldError{
			Field:   "usage.database_path",
			Message: "database path is required when the ledger is enabled",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "usage.retention_days",
			Message: "must not be negative",
		})
	}

	return errs
}
