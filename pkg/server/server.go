package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/elifarley/vandamme-proxy/pkg/config"
	"github.com/elifarley/vandamme-proxy/pkg/middleware"
	"github.com/elifarley/vandamme-proxy/pkg/oauth"
	"github.com/elifarley/vandamme-proxy/pkg/providerfactory"
	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/handlers"
	proxymw "github.com/elifarley/vandamme-proxy/pkg/proxy/middleware"
	"github.com/elifarley/vandamme-proxy/pkg/telemetry/metrics"
	"github.com/elifarley/vandamme-proxy/pkg/usage"
)

// Server is the HTTP proxy server. New wires the provider registry, OAuth
// manager, middleware chain, usage ledger and metrics from configuration;
// Start runs the listener until shutdown.
type Server struct {
	config  *config.Config
	factory *providerfactory.Factory
	store   *oauth.Store
	manager *oauth.Manager
	watcher *oauth.Watcher

	collector *metrics.Collector
	sigCache  *middleware.SignatureCache
	chain     *middleware.Chain
	ledger    *usage.Ledger
	scheduler *usage.Scheduler

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New builds a server from configuration. The returned server owns the
// provider clients, credential watcher, signature cache and usage ledger;
// Close releases them.
func New(cfg *config.Config) (*Server, error) {
	descriptors, defaultName, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}
	registry, err := providers.NewRegistry(descriptors, defaultName, cfg.Aliases)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:       cfg,
		shutdownChan: make(chan struct{}),
	}

	if cfg.Metrics.Enabled {
		s.collector = metrics.NewCollector(nil)
	}

	s.store = oauth.NewStore(cfg.OAuth.StorageDir)

	oauthConfigs := make(map[string]*providers.OAuthConfig)
	var oauthProviders []string
	for _, desc := range registry.List() {
		if desc.Auth.Kind == providers.AuthOAuth {
			oauthConfigs[desc.Name] = desc.Auth.OAuth
			oauthProviders = append(oauthProviders, desc.Name)
		}
	}

	managerOpts := oauth.ManagerOptions{}
	if s.collector != nil {
		managerOpts.OnRefresh = s.collector.RecordOAuthRefresh
	}
	s.manager = oauth.NewManager(s.store, oauthConfigs, managerOpts)
	s.factory = providerfactory.New(registry, s.manager)

	if len(oauthProviders) > 0 {
		watcher, err := oauth.NewWatcher(s.store, oauthProviders)
		if err != nil {
			slog.Warn("credential watcher unavailable, external logins need a restart", "error", err)
		} else {
			s.watcher = watcher
			go func() {
				for provider := range watcher.Changes() {
					slog.Debug("credentials changed on disk", "provider", provider)
					s.manager.Invalidate(provider)
				}
			}()
		}
	}

	var stages []middleware.Middleware
	if cfg.Signatures.SignaturesEnabled() {
		cacheOpts := middleware.CacheOptions{
			TTL:        cfg.Signatures.TTL,
			MaxEntries: cfg.Signatures.MaxEntries,
		}
		if s.collector != nil {
			cacheOpts.Metrics = s.collector
		}
		s.sigCache = middleware.NewSignatureCache(cacheOpts)
		stages = append(stages, middleware.NewThoughtSignatures(s.sigCache))
	}
	s.chain = middleware.NewChain(stages...)

	if cfg.Usage.Enabled {
		ledger, err := usage.OpenLedger(usage.LedgerConfig{Path: cfg.Usage.DatabasePath})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open usage ledger: %w", err)
		}
		s.ledger = ledger
		s.scheduler = usage.NewScheduler(ledger, usage.RetentionConfig{
			Days:     cfg.Usage.RetentionDays,
			Schedule: cfg.Usage.PruneSchedule,
		})
	}

	return s, nil
}

// Start starts the HTTP server and blocks until shutdown, triggered by ctx
// cancellation, SIGINT/SIGTERM, or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.mu.Unlock()

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	srvCfg := s.config.Server
	s.httpServer = &http.Server{
		Addr:    srvCfg.ListenAddress,
		Handler: s.Handler(),
		// No WriteTimeout: SSE responses stay open for the life of the
		// upstream stream.
		ReadHeaderTimeout: srvCfg.ReadHeaderTimeout,
		IdleTimeout:       srvCfg.IdleTimeout,
		MaxHeaderBytes:    srvCfg.MaxHeaderBytes,
	}

	if srvCfg.TLS.Enabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting proxy server",
			"address", srvCfg.ListenAddress,
			"tls_enabled", srvCfg.TLS.Enabled,
			"providers", len(s.factory.Registry().List()),
		)

		var err error
		if srvCfg.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(srvCfg.TLS.CertFile, srvCfg.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.Close()
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server: the listener drains within the
// configured timeout, then owned resources are released.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		// Wake a blocked Start.
		close(s.shutdownChan)

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.Close()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("proxy server stopped")
	})

	return shutdownErr
}

// Close releases resources owned by the server without touching the
// listener. Safe to call more than once.
func (s *Server) Close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.sigCache != nil {
		s.sigCache.Close()
		s.sigCache = nil
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			slog.Warn("failed to close usage ledger", "error", err)
		}
		s.ledger = nil
	}
	if s.factory != nil {
		if err := s.factory.Close(); err != nil {
			slog.Warn("failed to close provider clients", "error", err)
		}
	}
}

// IsRunning reports whether Start is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully assembled HTTP handler, routes and middleware
// included. Exposed for tests that drive the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var sink handlers.UsageSink
	if recording := s.usageSink(); recording != nil {
		sink = recording
	}
	var summarizer handlers.UsageSummarizer
	if s.ledger != nil {
		summarizer = s.ledger
	}

	mux.Handle("/v1/messages", handlers.NewMessagesHandler(s.factory, s.chain, sink))
	mux.Handle("/v1/messages/count_tokens", handlers.NewCountTokensHandler(nil))
	mux.Handle("/v1/models", handlers.NewModelsHandler(s.factory, 0))
	mux.Handle("/health", handlers.NewHealthHandler(s.factory, s.store, summarizer))
	mux.Handle("/test-connection", handlers.NewTestConnectionHandler(s.factory))

	if s.collector != nil {
		mux.Handle(s.config.Metrics.Path, s.collector.Handler())
	}

	var handler http.Handler = mux
	handler = proxymw.AuthMiddleware(s.config.Auth.ProxyKey,
		"/health", s.config.Metrics.Path)(handler)
	handler = proxymw.TimeoutMiddleware(s.config.Server.RequestTimeout,
		"/v1/messages")(handler)
	handler = proxymw.CORSMiddleware(s.corsConfig())(handler)
	handler = proxymw.RequestIDMiddleware(handler)
	handler = proxymw.LoggingMiddleware(handler)
	handler = proxymw.RecoveryMiddleware(handler)

	return handler
}

// usageSink builds the sink handed to the messages handler, or nil when
// neither the ledger nor metrics are enabled.
func (s *Server) usageSink() handlers.UsageSink {
	if s.ledger == nil && s.collector == nil {
		return nil
	}
	return &meteredSink{ledger: s.ledger, collector: s.collector}
}

// configureTLS validates certificate files and pins TLS 1.3.
func (s *Server) configureTLS() (*tls.Config, error) {
	tlsCfg := s.config.Server.TLS
	if tlsCfg.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if tlsCfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}
	if _, err := os.Stat(tlsCfg.CertFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS cert file not found: %s", tlsCfg.CertFile)
	}
	if _, err := os.Stat(tlsCfg.KeyFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS key file not found: %s", tlsCfg.KeyFile)
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}, nil
}

// corsConfig converts the configured CORS settings to the middleware's type.
func (s *Server) corsConfig() *proxymw.CORSConfig {
	cors := s.config.Server.CORS
	return &proxymw.CORSConfig{
		Enabled:        cors.Enabled,
		AllowedOrigins: cors.AllowedOrigins,
		AllowedMethods: cors.AllowedMethods,
		AllowedHeaders: cors.AllowedHeaders,
		ExposedHeaders: cors.ExposedHeaders,
		MaxAge:         cors.MaxAge,
	}
}
