package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vandamme",
	Short: "Vandamme - translating proxy for LLM traffic",
	Long: `Vandamme is an HTTP proxy that accepts Anthropic Messages API requests
and fulfils them against configured upstream providers, translating to and
from the OpenAI Chat Completions format where needed.

It provides:
  - Bidirectional Anthropic <-> OpenAI request and stream translation
  - Static-key rotation and OAuth 2.0 + PKCE provider authentication
  - Model aliases and provider-prefixed model routing
  - A per-request usage ledger and Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
