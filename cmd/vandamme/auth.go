package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/elifarley/vandamme-proxy/pkg/cli"
	"github.com/elifarley/vandamme-proxy/pkg/config"
	"github.com/elifarley/vandamme-proxy/pkg/oauth"
	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// loginTimeout bounds the whole interactive flow, browser round-trip
// included.
const loginTimeout = 5 * time.Minute

var loginFlags struct {
	provider  string
	noBrowser bool
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate an OAuth provider",
	Long: `Run the OAuth 2.0 authorization code flow with PKCE for a provider and
store the resulting credentials.

A browser window opens at the provider's authorization page; after consent
the provider redirects back to a local loopback listener and the exchanged
tokens are written to the credential store.

Examples:
  # Authenticate the provider named "gemini"
  vandamme login --provider gemini

  # Print the authorization URL instead of opening a browser
  vandamme login --provider gemini --no-browser`,
	RunE: runLogin,
}

var logoutFlags struct {
	provider string
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete a provider's stored credentials",
	RunE:  runLogout,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect provider authentication",
}

var authStatusFlags struct {
	output string
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential status for every OAuth provider",
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)

	loginCmd.Flags().StringVarP(&loginFlags.provider, "provider", "p", "", "provider to authenticate")
	loginCmd.Flags().BoolVar(&loginFlags.noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")

	logoutCmd.Flags().StringVarP(&logoutFlags.provider, "provider", "p", "", "provider to log out of")

	authStatusCmd.Flags().StringVarP(&authStatusFlags.output, "output", "o", "text", "output format (text, json)")
}

// oauthDescriptor resolves name to a configured OAuth provider, falling back
// to the default provider when name is empty.
func oauthDescriptor(cfg *config.Config, name string) (*providers.Descriptor, error) {
	descriptors, defaultName, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = defaultName
	}

	for i := range descriptors {
		if descriptors[i].Name != name {
			continue
		}
		if descriptors[i].Auth.Kind != providers.AuthOAuth {
			return nil, fmt.Errorf("provider %q does not use OAuth authentication", name)
		}
		return &descriptors[i], nil
	}
	return nil, fmt.Errorf("provider %q is not configured", name)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	desc, err := oauthDescriptor(cfg, loginFlags.provider)
	if err != nil {
		return err
	}

	flow := oauth.NewFlow(oauth.NewStore(cfg.OAuth.StorageDir), loginTimeout)
	if loginFlags.noBrowser {
		flow.OpenBrowser = nil
		flow.AuthURLSink = func(url string) {
			fmt.Printf("Open this URL in your browser:\n\n  %s\n\n", url)
		}
	} else {
		fmt.Printf("Opening browser for %s authorization...\n", desc.Name)
	}

	result, err := flow.Login(cmd.Context(), desc.Name, desc.Auth.OAuth)
	if err != nil {
		return cli.NewCommandError("login", err)
	}

	fmt.Printf("✓ Logged in to %s", result.Provider)
	if result.AccountID != "" {
		fmt.Printf(" as %s", result.AccountID)
	}
	fmt.Println()
	if !result.ExpiresAt.IsZero() {
		fmt.Printf("  token expires %s\n", result.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	desc, err := oauthDescriptor(cfg, logoutFlags.provider)
	if err != nil {
		return err
	}

	store := oauth.NewStore(cfg.OAuth.StorageDir)
	if !store.Authenticated(desc.Name) {
		fmt.Printf("No stored credentials for %s\n", desc.Name)
		return nil
	}
	if err := store.Delete(desc.Name); err != nil {
		return cli.NewCommandError("logout", err)
	}
	fmt.Printf("✓ Logged out of %s\n", desc.Name)
	return nil
}

// authStatusRow is one provider's credential summary.
type authStatusRow struct {
	Provider      string `json:"provider"`
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"account_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	Expired       bool   `json:"expired,omitempty"`
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	descriptors, _, err := cfg.Descriptors()
	if err != nil {
		return err
	}

	store := oauth.NewStore(cfg.OAuth.StorageDir)
	now := time.Now()

	rows := make([]authStatusRow, 0)
	for i := range descriptors {
		desc := &descriptors[i]
		if desc.Auth.Kind != providers.AuthOAuth {
			continue
		}

		row := authStatusRow{Provider: desc.Name}
		if creds, err := store.Load(desc.Name); err == nil {
			row.Authenticated = true
			row.AccountID = creds.AccountID
			row.Expired = creds.Expired(now)
			if !creds.ExpiresAt.IsZero() {
				row.ExpiresAt = creds.ExpiresAt.Format(time.RFC3339)
			}
		}
		rows = append(rows, row)
	}

	if authStatusFlags.output == string(cli.FormatJSON) {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, rows)
	}

	if len(rows) == 0 {
		fmt.Println("No OAuth providers configured")
		return nil
	}
	for _, row := range rows {
		switch {
		case !row.Authenticated:
			fmt.Printf("%s: not authenticated (run: vandamme login --provider %s)\n", row.Provider, row.Provider)
		case row.Expired:
			fmt.Printf("%s: authenticated, token expired (refreshes on next use)\n", row.Provider)
		default:
			fmt.Printf("%s: authenticated", row.Provider)
			if row.AccountID != "" {
				fmt.Printf(" as %s", row.AccountID)
			}
			if row.ExpiresAt != "" {
				fmt.Printf(", expires %s", row.ExpiresAt)
			}
			fmt.Println()
		}
	}
	return nil
}
