package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credential material in log attributes: values of sensitive
// keys are replaced wholesale, and string values are scanned for embedded
// API keys and bearer tokens.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// sensitiveKeys marks attribute keys whose values are always masked.
var sensitiveKeys = []string{
	"api_key", "apikey", "x-api-key",
	"authorization", "auth",
	"token", "access_token", "refresh_token", "id_token",
	"secret", "password", "proxy_key",
	"private_key",
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			{regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{8,}`), "sk-***"},
			{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
		},
	}
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		if redacted := r.RedactString(a.Value.String()); redacted != a.Value.String() {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

// RedactString masks embedded credentials in a string value.
func (r *Redactor) RedactString(value string) string {
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// isSensitiveKey reports whether the attribute key names credential material.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if lower == sensitive || strings.HasSuffix(lower, "_"+sensitive) {
			return true
		}
	}
	return false
}

// maskValue keeps a short identification prefix of a masked value.
func maskValue(value string) string {
	if len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}
