package oauth

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

const (
	// DefaultRefreshThreshold refreshes tokens this close to expiry.
	DefaultRefreshThreshold = 5 * time.Minute

	// DefaultFallbackInterval refreshes tokens without a known expiry once
	// they are this old, counted from the last refresh.
	DefaultFallbackInterval = 50 * time.Minute
)

// ManagerOptions tunes Manager behaviour. Zero values select defaults.
type ManagerOptions struct {
	// RefreshThreshold is how close to expiry a token is refreshed
	RefreshThreshold time.Duration

	// FallbackInterval bounds token age when the provider reports no expiry
	FallbackInterval time.Duration

	// HardFail makes a failed refresh an error instead of falling back to
	// the stored token
	HardFail bool

	// HTTPClient overrides the client used for token endpoint calls
	HTTPClient *http.Client

	// OnRefresh, when set, is called after every refresh attempt with
	// "success" or "failure"
	OnRefresh func(provider, outcome string)
}

// Manager hands out access tokens for OAuth providers, refreshing them
// proactively. Refreshes are single-flight per provider: concurrent callers
// during a refresh all wait for the one in-flight token endpoint call.
//
// Manager implements providers.TokenSource.
type Manager struct {
	store   *Store
	configs map[string]*providers.OAuthConfig
	opts    ManagerOptions

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]*Credentials

	// now is swappable for tests
	now func() time.Time
}

var _ providers.TokenSource = (*Manager)(nil)

// NewManager creates a manager over store for the given provider OAuth
// configurations, keyed by provider name.
func NewManager(store *Store, configs map[string]*providers.OAuthConfig, opts ManagerOptions) *Manager {
	if opts.RefreshThreshold == 0 {
		opts.RefreshThreshold = DefaultRefreshThreshold
	}
	if opts.FallbackInterval == 0 {
		opts.FallbackInterval = DefaultFallbackInterval
	}

	return &Manager{
		store:   store,
		configs: configs,
		opts:    opts,
		cache:   make(map[string]*Credentials),
		now:     time.Now,
	}
}

// Store returns the underlying credential store.
func (m *Manager) Store() *Store {
	return m.store
}

// AccessToken returns a usable access token and account id for provider. A
// token within the refresh threshold of expiry is refreshed first; failures
// fall back to the stored token unless the manager was built hard-fail.
func (m *Manager) AccessToken(ctx context.Context, provider string) (string, string, error) {
	creds, err := m.load(provider)
	if err != nil {
		return "", "", err
	}

	if m.needsRefresh(creds) && creds.RefreshToken != "" {
		refreshed, err := m.refresh(ctx, provider, creds)
		switch {
		case err == nil:
			creds = refreshed
		case m.opts.HardFail || creds.AccessToken == "" || creds.Expired(m.now()):
			return "", "", err
		default:
			slog.Warn("token refresh failed, using stored token",
				"provider", provider,
				"error", err,
			)
		}
	}

	if creds.AccessToken == "" {
		return "", "", &providers.NotAuthenticatedError{Provider: provider}
	}
	return creds.AccessToken, creds.AccountID, nil
}

// Credentials returns the current credential record for provider without
// triggering a refresh. Used by status reporting.
func (m *Manager) Credentials(provider string) (*Credentials, error) {
	return m.load(provider)
}

// Invalidate drops the in-memory record for provider so the next call
// re-reads the store. The watcher calls this when auth.json changes on disk.
func (m *Manager) Invalidate(provider string) {
	m.mu.Lock()
	delete(m.cache, provider)
	m.mu.Unlock()
	slog.Debug("credential cache invalidated", "provider", provider)
}

// load returns the cached record for provider, reading the store on miss.
func (m *Manager) load(provider string) (*Credentials, error) {
	m.mu.Lock()
	if creds, ok := m.cache[provider]; ok {
		m.mu.Unlock()
		return creds, nil
	}
	m.mu.Unlock()

	creds, err := m.store.Load(provider)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &providers.NotAuthenticatedError{Provider: provider}
		}
		return nil, err
	}

	m.mu.Lock()
	m.cache[provider] = creds
	m.mu.Unlock()
	return creds, nil
}

// needsRefresh applies the expiry threshold, or the last-refresh fallback
// when the provider reported no expiry.
func (m *Manager) needsRefresh(creds *Credentials) bool {
	now := m.now()
	if !creds.ExpiresAt.IsZero() {
		return now.Add(m.opts.RefreshThreshold).After(creds.ExpiresAt)
	}
	if creds.LastRefresh.IsZero() {
		return true
	}
	return now.Sub(creds.LastRefresh) > m.opts.FallbackInterval
}

// refresh exchanges the refresh token for a new record, persists it, and
// updates the cache. Concurrent callers for the same provider share one
// token endpoint call.
func (m *Manager) refresh(ctx context.Context, provider string, creds *Credentials) (*Credentials, error) {
	v, err, _ := m.group.Do(provider, func() (any, error) {
		cfg, ok := m.configs[provider]
		if !ok {
			return nil, &providers.NotAuthenticatedError{Provider: provider}
		}

		slog.Debug("refreshing oauth token", "provider", provider)

		token, err := m.oauth2Config(cfg).TokenSource(m.httpContext(ctx), &oauth2.Token{
			RefreshToken: creds.RefreshToken,
		}).Token()
		if err != nil {
			return nil, m.exchangeError(provider, err)
		}

		refreshed := m.credentialsFromToken(token, creds)
		if err := m.store.Save(provider, refreshed); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cache[provider] = refreshed
		m.mu.Unlock()

		slog.Info("oauth token refreshed",
			"provider", provider,
			"expires_at", refreshed.ExpiresAt,
		)
		return refreshed, nil
	})
	if m.opts.OnRefresh != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		m.opts.OnRefresh(provider, outcome)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Credentials), nil
}

// credentialsFromToken builds a stored record from a token response,
// carrying over fields the endpoint did not re-issue.
func (m *Manager) credentialsFromToken(token *oauth2.Token, prev *Credentials) *Credentials {
	creds := &Credentials{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
		LastRefresh: m.now(),
	}

	creds.RefreshToken = token.RefreshToken
	if creds.RefreshToken == "" && prev != nil {
		creds.RefreshToken = prev.RefreshToken
	}

	if id, ok := token.Extra("id_token").(string); ok && id != "" {
		creds.IDToken = id
		creds.AccountID = accountIDFromIDToken(id)
	} else if prev != nil {
		creds.IDToken = prev.IDToken
		creds.AccountID = prev.AccountID
	}

	return creds
}

// exchangeError converts oauth2 retrieval failures into the package's typed
// error, preserving the token endpoint's status and body.
func (m *Manager) exchangeError(provider string, err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := 0
		if retrieve.Response != nil {
			status = retrieve.Response.StatusCode
		}
		return &ExchangeError{
			Provider:   provider,
			StatusCode: status,
			Body:       string(retrieve.Body),
			Cause:      err,
		}
	}
	return &ExchangeError{Provider: provider, Cause: err}
}

// oauth2Config builds the x/oauth2 configuration for one provider.
func (m *Manager) oauth2Config(cfg *providers.OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID: cfg.ClientID,
		Scopes:   cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}
}

// httpContext injects the override HTTP client for token endpoint calls.
func (m *Manager) httpContext(ctx context.Context) context.Context {
	if m.opts.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, m.opts.HTTPClient)
	}
	return ctx
}
