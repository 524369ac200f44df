// Package providerfactory constructs and caches upstream provider clients.
// It binds each provider's credential mode (static key rotation, OAuth token
// refresh, or none) into the client's credential function, so credentials are
// resolved per call rather than frozen at construction.
package providerfactory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/providers/anthropic"
	"github.com/elifarley/vandamme-proxy/pkg/providers/openai"
)

// Factory hands out one shared client per provider. Clients are created
// lazily on first use and cached for the process lifetime.
//
// Factory is safe for concurrent use.
type Factory struct {
	registry *providers.Registry
	rotator  *providers.KeyRotator

	// tokens supplies access tokens for oauth providers; nil is valid when
	// no oauth provider is configured
	tokens providers.TokenSource

	mu      sync.Mutex
	clients map[string]providers.Client
}

// New creates a factory over registry. tokens may be nil when no configured
// provider uses OAuth.
func New(registry *providers.Registry, tokens providers.TokenSource) *Factory {
	return &Factory{
		registry: registry,
		rotator:  providers.NewKeyRotator(),
		tokens:   tokens,
		clients:  make(map[string]providers.Client),
	}
}

// ClientFor returns the shared client for the named provider, creating it on
// first use. Unknown names return ProviderNotFoundError.
func (f *Factory) ClientFor(_ context.Context, name string) (providers.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[name]; ok {
		return client, nil
	}

	desc, err := f.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	client, err := f.newClient(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for provider %q: %w", name, err)
	}

	f.clients[name] = client

	slog.Debug("provider client created",
		"provider", desc.Name,
		"format", desc.APIFormat,
		"auth", desc.Auth.Kind,
	)
	return client, nil
}

// newClient builds the wire-format adapter for desc with its credential
// function bound in.
func (f *Factory) newClient(desc *providers.Descriptor) (providers.Client, error) {
	creds, err := f.credentialFunc(desc)
	if err != nil {
		return nil, err
	}

	switch desc.APIFormat {
	case providers.FormatOpenAI:
		return openai.NewClient(desc, creds)
	case providers.FormatAnthropic, providers.FormatPassthrough:
		return anthropic.NewClient(desc, creds)
	default:
		return nil, &providers.ConfigError{
			Provider: desc.Name,
			Field:    "api_format",
			Message:  fmt.Sprintf("unsupported api format %q", desc.APIFormat),
		}
	}
}

// credentialFunc binds desc's auth mode to a per-call credential source.
//
// Static keys rotate round-robin across calls and are injected in the header
// style the wire format expects: x-api-key for Anthropic-speaking upstreams,
// a bearer Authorization header for OpenAI-speaking ones. OAuth providers
// always authenticate with a bearer token from the token source.
func (f *Factory) credentialFunc(desc *providers.Descriptor) (providers.CredentialFunc, error) {
	switch desc.Auth.Kind {
	case providers.AuthStaticKeys:
		name := desc.Name
		keys := desc.Auth.Keys
		bearer := desc.APIFormat == providers.FormatOpenAI
		return func(ctx context.Context) (map[string]string, error) {
			key := f.rotator.Next(name, keys)
			if bearer {
				return map[string]string{"Authorization": "Bearer " + key}, nil
			}
			return map[string]string{"x-api-key": key}, nil
		}, nil

	case providers.AuthOAuth:
		if f.tokens == nil {
			return nil, &providers.ConfigError{
				Provider: desc.Name,
				Field:    "auth.oauth",
				Message:  "oauth provider configured but no token source available",
			}
		}
		name := desc.Name
		return func(ctx context.Context) (map[string]string, error) {
			token, _, err := f.tokens.AccessToken(ctx, name)
			if err != nil {
				return nil, err
			}
			return map[string]string{"Authorization": "Bearer " + token}, nil
		}, nil

	case providers.AuthNone:
		return providers.NoCredentials, nil

	default:
		return nil, &providers.ConfigError{
			Provider: desc.Name,
			Field:    "auth.kind",
			Message:  fmt.Sprintf("unsupported auth kind %q", desc.Auth.Kind),
		}
	}
}

// Registry returns the provider registry the factory was built over.
func (f *Factory) Registry() *providers.Registry {
	return f.registry
}

// Close closes every cached client. The factory must not be used afterwards.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for name, client := range f.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.clients, name)
	}
	return firstErr
}
