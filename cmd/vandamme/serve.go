package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elifarley/vandamme-proxy/pkg/cli"
	"github.com/elifarley/vandamme-proxy/pkg/config"
	"github.com/elifarley/vandamme-proxy/pkg/server"
	"github.com/elifarley/vandamme-proxy/pkg/telemetry/logging"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

The server listens on the configured address, accepts Anthropic Messages API
requests and dispatches them to the configured upstream providers.

Examples:
  # Start with default config
  vandamme serve

  # Start with custom config
  vandamme serve --config /etc/vandamme/config.yaml

  # Override listen address
  vandamme serve --listen 0.0.0.0:8082

  # Validate config without starting the server
  vandamme serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	if serveFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		fmt.Printf("  providers: %d\n", len(cfg.Providers))
		fmt.Printf("  listen:    %s\n", cfg.Server.ListenAddress)
		return nil
	}

	srv, err := server.New(cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Printf("Vandamme v%s\n", Version)
	fmt.Printf("✓ Configuration loaded from %s (%d providers)\n", cfgFile, len(cfg.Providers))
	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(cli.SetupSignalHandler()); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
