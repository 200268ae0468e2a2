package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/pool"
	"github.com/llmrelay/llmrelay/internal/store"
	"github.com/spf13/cobra"
)

// accountsCmd represents the accounts command group
var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"a", "acc"},
	Short:   "Manage the session account pool",
	Long: `Inspect and mutate the session account pool.

Accounts hold session-cookie credentials. The relay picks the
least-used active account for every session-mode attempt and demotes
accounts that hit rate limits or auth failures.

Example:
  llmrelay accounts list
  llmrelay accounts add --name "Work" --credential "sessionKey=sk-ant-sid01-..."
  llmrelay accounts remove <id>`,
}

var accountAddFlags struct {
	Name       string
	Credential string
}

var accountsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all pool accounts",
	RunE:    runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a session credential in the pool",
	RunE:  runAccountsAdd,
}

var accountsRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove an account from the pool",
	Args:    cobra.ExactArgs(1),
	RunE:    runAccountsRemove,
}

var accountsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate pool statistics",
	RunE:  runAccountsStats,
}

func init() {
	accountsAddCmd.Flags().StringVar(&accountAddFlags.Name, "name", "", "Display name for the account")
	accountsAddCmd.Flags().StringVar(&accountAddFlags.Credential, "credential", "", "Raw cookie string containing sessionKey=")
	_ = accountsAddCmd.MarkFlagRequired("credential")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsStatsCmd)
	RootCmd.AddCommand(accountsCmd)
}

// openPool opens the store and builds a Pool over it. The caller must
// close the returned store.
func openPool() (*pool.Pool, store.Store, error) {
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

	return pool.New(s, cfg.Session.RateLimitCooldown), s, nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	p, s, err := openPool()
	if err != nil {
		return err
	}
	defer s.Close()

	accounts, err := p.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(accounts)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts in the pool.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUSAGE\tLAST USED\tRESET AT")
	for _, a := range accounts {
		lastUsed := "-"
		if a.LastUsed != nil {
			lastUsed = a.LastUsed.Format(time.RFC3339)
		}
		resetAt := "-"
		if a.RateLimitReset != nil {
			resetAt = a.RateLimitReset.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.ID, a.Name, a.Status, a.UsageCount, lastUsed, resetAt)
	}
	return w.Flush()
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	p, s, err := openPool()
	if err != nil {
		return err
	}
	defer s.Close()

	account, err := p.Create(context.Background(), accountAddFlags.Name, accountAddFlags.Credential)
	if err != nil {
		return fmt.Errorf("failed to add account: %w", err)
	}

	fmt.Printf("Account %q added (id: %s)\n", account.Name, account.ID)
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	p, s, err := openPool()
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := p.Delete(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	fmt.Printf("Account %q removed (id: %s)\n", removed.Name, removed.ID)
	return nil
}

func runAccountsStats(cmd *cobra.Command, args []string) error {
	p, s, err := openPool()
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := p.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read pool stats: %w", err)
	}

	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOTAL\tACTIVE\tINVALID\tRATE LIMITED\tTOTAL USAGE")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
		stats.Total, stats.Active, stats.Invalid, stats.RateLimited, stats.TotalUsage)
	return w.Flush()
}
