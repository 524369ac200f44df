package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// credentialFile is the per-provider credential file name.
	credentialFile = "auth.json"

	// dirMode restricts credential directories to the owner.
	dirMode = 0o700

	// fileMode restricts credential files to the owner.
	fileMode = 0o600
)

// Credentials is a provider's OAuth credential record at rest.
type Credentials struct {
	// AccessToken is the bearer token injected on upstream calls
	AccessToken string `json:"access_token"`

	// RefreshToken obtains new access tokens; empty when the provider
	// issued none
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OpenID identity token, kept for account display
	IDToken string `json:"id_token,omitempty"`

	// AccountID identifies the authenticated account, extracted from the
	// identity token at login time
	AccountID string `json:"account_id,omitempty"`

	// ExpiresAt is when the access token expires; zero when the provider
	// reported no expiry
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// LastRefresh is when the record was last written after a successful
	// exchange or refresh
	LastRefresh time.Time `json:"last_refresh,omitempty"`
}

// Expired reports whether the access token is past its expiry. Records
// without an expiry never report expired here; the manager applies the
// last-refresh fallback instead.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Store persists per-provider credential records under a root directory.
// All writes are atomic and owner-only.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a store rooted at dir. The directory tree is created
// lazily on first save.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the credential file path for provider.
func (s *Store) Path(provider string) string {
	return filepath.Join(s.root, "oauth", provider, credentialFile)
}

// Load reads the credential record for provider. A missing file returns
// fs.ErrNotExist.
func (s *Store) Load(provider string) (*Credentials, error) {
	data, err := os.ReadFile(s.Path(provider))
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials for %q: %w", provider, err)
	}
	return &creds, nil
}

// Save writes the credential record for provider atomically: a sibling temp
// file is written, synced, and renamed over the target. The parent directory
// is created with owner-only permissions.
func (s *Store) Save(provider string, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(provider)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	// MkdirAll leaves pre-existing directories untouched; tighten them.
	if err := os.Chmod(dir, dirMode); err != nil {
		return fmt.Errorf("failed to restrict credential directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, credentialFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(fileMode); err != nil {
		cleanup()
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	slog.Debug("credentials saved", "provider", provider, "path", path)
	return nil
}

// Authenticated reports whether a credential record exists for provider.
func (s *Store) Authenticated(provider string) bool {
	_, err := os.Stat(s.Path(provider))
	return err == nil
}

// Delete removes the credential record for provider. Missing records are not
// an error.
func (s *Store) Delete(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path(provider))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete credentials for %q: %w", provider, err)
	}
	return nil
}

// Watcher observes credential files on disk and reports which provider's
// record changed. It lets a running server notice logins and logouts
// performed by another process.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	changes chan string
	done    chan struct{}
}

// NewWatcher starts watching the credential directories of the given
// providers. Directories that do not exist yet are skipped; they gain a watch
// the next time Rescan is called.
func NewWatcher(store *Store, providers []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		store:   store,
		watcher: fsw,
		changes: make(chan string, 16),
		done:    make(chan struct{}),
	}
	w.Rescan(providers)

	go w.run()
	return w, nil
}

// Rescan adds watches for credential directories that have appeared since
// the watcher was created.
func (w *Watcher) Rescan(providers []string) {
	for _, name := range providers {
		dir := filepath.Dir(w.store.Path(name))
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			slog.Warn("failed to watch credential directory",
				"provider", name,
				"dir", dir,
				"error", err,
			)
		}
	}
}

// Changes delivers the provider name each time its credential file is
// written, renamed into place, or removed.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops the watcher and closes the changes channel.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.changes)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != credentialFile {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// <root>/oauth/<provider>/auth.json
			provider := filepath.Base(filepath.Dir(event.Name))
			select {
			case w.changes <- provider:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("credential watcher error", "error", err)
		}
	}
}
