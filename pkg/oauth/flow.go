package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// DefaultLoginTimeout bounds the whole interactive login.
const DefaultLoginTimeout = 5 * time.Minute

// LoginResult reports a completed interactive login.
type LoginResult struct {
	// Provider is the provider that was authenticated
	Provider string

	// AccountID is the authenticated account, when the identity token
	// carried one
	AccountID string

	// ExpiresAt is the access token expiry, zero if unreported
	ExpiresAt time.Time
}

// Flow runs the one-shot PKCE authorization-code login for a provider: it
// binds a loopback callback server, opens the browser to the authorization
// URL, exchanges the returned code, and persists the credential record.
type Flow struct {
	store   *Store
	timeout time.Duration

	// OpenBrowser launches the user's browser at the authorization URL.
	// Replaceable for tests and for --no-browser mode.
	OpenBrowser func(url string) error

	// AuthURLSink, when set, receives the authorization URL instead of or
	// in addition to the browser launch (used to print it for the user).
	AuthURLSink func(url string)

	// httpClient overrides the client for the token exchange, for tests
	httpClient *http.Client
}

// NewFlow creates a login flow writing through store. timeout bounds the
// whole login; zero selects the default.
func NewFlow(store *Store, timeout time.Duration) *Flow {
	if timeout == 0 {
		timeout = DefaultLoginTimeout
	}
	return &Flow{
		store:       store,
		timeout:     timeout,
		OpenBrowser: openBrowser,
	}
}

// Login runs the interactive flow for provider with the given OAuth
// endpoints. It returns once the credential record is persisted, the context
// is cancelled, or the timeout elapses. Failures never mutate previously
// stored credentials.
func (f *Flow) Login(ctx context.Context, provider string, cfg *providers.OAuthConfig) (*LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	listener, err := f.listen(cfg.CallbackPort)
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback listener: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", port)

	oc := &oauth2.Config{
		ClientID:    cfg.ClientID,
		Scopes:      cfg.Scopes,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}

	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	authURL := oc.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			select {
			case results <- callback{err: &StateMismatchError{Provider: provider}}:
			default:
			}
			return
		}
		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			select {
			case results <- callback{err: fmt.Errorf("authorization denied: %s", errCode)}:
			default:
			}
			return
		}

		fmt.Fprint(w, "Login complete. You can close this window and return to the terminal.")
		select {
		case results <- callback{code: q.Get("code")}:
		default:
		}
	})}

	go server.Serve(listener)
	defer server.Shutdown(context.Background())

	if f.AuthURLSink != nil {
		f.AuthURLSink(authURL)
	}
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			slog.Warn("failed to open browser; visit the authorization URL manually",
				"provider", provider,
				"error", err,
			)
		}
	}

	slog.Info("waiting for oauth callback",
		"provider", provider,
		"redirect_uri", redirectURI,
	)

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &LoginTimeoutError{Provider: provider}
		}
		return nil, ctx.Err()
	}

	token, err := oc.Exchange(f.exchangeContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			status := 0
			if retrieve.Response != nil {
				status = retrieve.Response.StatusCode
			}
			return nil, &ExchangeError{
				Provider:   provider,
				StatusCode: status,
				Body:       string(retrieve.Body),
				Cause:      err,
			}
		}
		return nil, &ExchangeError{Provider: provider, Cause: err}
	}

	creds := &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		LastRefresh:  time.Now(),
	}
	if id, ok := token.Extra("id_token").(string); ok && id != "" {
		creds.IDToken = id
		creds.AccountID = accountIDFromIDToken(id)
	}

	if err := f.store.Save(provider, creds); err != nil {
		return nil, err
	}

	slog.Info("oauth login complete",
		"provider", provider,
		"account", creds.AccountID,
		"expires_at", creds.ExpiresAt,
	)

	return &LoginResult{
		Provider:  provider,
		AccountID: creds.AccountID,
		ExpiresAt: creds.ExpiresAt,
	}, nil
}

// listen binds the loopback callback listener. Port 0 picks a free port.
func (f *Flow) listen(port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
}

// exchangeContext injects the override HTTP client for the token exchange.
func (f *Flow) exchangeContext(ctx context.Context) context.Context {
	if f.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	return ctx
}

// randomState generates the CSRF state parameter.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// openBrowser launches the platform browser at url.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
