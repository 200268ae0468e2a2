package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/oauth"
	"github.com/llmrelay/llmrelay/internal/store"
	"github.com/spf13/cobra"
)

// tokenCmd represents the token command group
var tokenCmd = &cobra.Command{
	Use:     "token",
	Aliases: []string{"t"},
	Short:   "Manage the OAuth token",
	Long: `Inspect and renew the stored OAuth token.

The relay prefers the OAuth bearer token over the session pool. These
commands drive the authorization-code flow from a terminal:

  llmrelay token auth-url      generate the provider authorization URL
  llmrelay token exchange      trade the pasted code for a token
  llmrelay token status        show presence and expiry
  llmrelay token refresh       renew via the refresh token`,
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored token presence and expiry",
	RunE:  runTokenStatus,
}

var tokenAuthURLCmd = &cobra.Command{
	Use:   "auth-url",
	Short: "Generate the provider authorization URL",
	RunE:  runTokenAuthURL,
}

var tokenExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Exchange an authorization code for a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenExchange,
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the stored token",
	RunE:  runTokenRefresh,
}

func init() {
	tokenCmd.AddCommand(tokenStatusCmd)
	tokenCmd.AddCommand(tokenAuthURLCmd)
	tokenCmd.AddCommand(tokenExchangeCmd)
	tokenCmd.AddCommand(tokenRefreshCmd)
	RootCmd.AddCommand(tokenCmd)
}

// openLifecycle opens the store and builds a token Lifecycle over it. The
// caller must close the returned store.
func openLifecycle() (*oauth.Lifecycle, store.Store, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		cfg = config.Default()
	}

	dbPath := globalFlags.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	return oauth.NewLifecycle(cfg.OAuth, s), s, nil
}

func runTokenStatus(cmd *cobra.Command, args []string) error {
	tokens, s, err := openLifecycle()
	if err != nil {
		return err
	}
	defer s.Close()

	status, err := tokens.Status(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read token status: %w", err)
	}

	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}

	if !status.HasToken {
		fmt.Println("No OAuth token stored. Run 'llmrelay token auth-url' to start the flow.")
		return nil
	}

	state := "valid"
	if status.Expired {
		state = "expired"
	}
	fmt.Printf("Token: %s\n", state)
	if status.ExpiresAt != nil {
		fmt.Printf("Expires at: %s\n", status.ExpiresAt.Format(time.RFC3339))
	}
	if status.Scope != "" {
		fmt.Printf("Scope: %s\n", status.Scope)
	}
	return nil
}

func runTokenAuthURL(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		cfg = config.Default()
	}

	dbPath := globalFlags.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return fmt.Errorf("failed to generate PKCE parameters: %w", err)
	}

	data, err := json.Marshal(pkce)
	if err != nil {
		return err
	}
	if err := s.Put(context.Background(), store.KeyOAuthPKCE, data); err != nil {
		return fmt.Errorf("failed to persist PKCE parameters: %w", err)
	}

	fmt.Println("Open this URL in a browser, authorize, then run 'llmrelay token exchange <code>':")
	fmt.Println(oauth.AuthorizeURL(cfg.OAuth, pkce))
	return nil
}

func runTokenExchange(cmd *cobra.Command, args []string) error {
	tokens, s, err := openLifecycle()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	data, ok, err := s.Get(ctx, store.KeyOAuthPKCE)
	if err != nil {
		return fmt.Errorf("failed to read PKCE parameters: %w", err)
	}
	if !ok {
		return fmt.Errorf("no PKCE parameters stored, run 'llmrelay token auth-url' first")
	}

	var pkce oauth.PKCE
	if err := json.Unmarshal(data, &pkce); err != nil {
		return fmt.Errorf("failed to decode PKCE parameters: %w", err)
	}

	record, err := tokens.Exchange(ctx, args[0], pkce)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	_ = s.Delete(ctx, store.KeyOAuthPKCE)

	fmt.Printf("Token stored, expires at %s\n", record.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runTokenRefresh(cmd *cobra.Command, args []string) error {
	tokens, s, err := openLifecycle()
	if err != nil {
		return err
	}
	defer s.Close()

	record, err := tokens.Refresh(context.Background())
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	fmt.Printf("Token refreshed, expires at %s\n", record.ExpiresAt.Format(time.RFC3339))
	return nil
}
