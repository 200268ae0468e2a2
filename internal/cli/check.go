package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/store"
	"github.com/llmrelay/llmrelay/internal/upstream"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"c", "health", "status"},
	Short:   "Zero-config health check",
	Long: `Perform a zero-config health check of the relay.

This command checks:
- Database connectivity
- Configuration validity
- Session account pool state
- Upstream endpoint reachability

No configuration or arguments required.

Example:
  llmrelay check`,
	RunE: runCheck,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting health check...")
	}

	results := []CheckResult{
		checkDatabase(),
		checkConfig(),
		checkPool(),
		checkUpstream(),
	}

	return outputCheckResults(results)
}

func checkDatabase() CheckResult {
	result := CheckResult{
		Name:   "Database",
		Status: "OK",
	}

	s, err := store.NewSQLiteStore(globalFlags.DBPath)
	if err != nil {
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("Failed to connect to database: %v", err)
		return result
	}
	defer s.Close()

	result.Message = fmt.Sprintf("Database connected successfully at: %s", globalFlags.DBPath)
	return result
}

func checkConfig() CheckResult {
	result := CheckResult{
		Name:   "Configuration",
		Status: "OK",
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		result.Status = "WARNING"
		result.Message = fmt.Sprintf("Falling back to defaults: %v", err)
		return result
	}

	if err := cfg.Validate(); err != nil {
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("Configuration validation failed: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("Configuration valid (version: %s)", cfg.Version)
	result.Details = fmt.Sprintf("Server: %s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	return result
}

func checkPool() CheckResult {
	result := CheckResult{
		Name:   "Account pool",
		Status: "OK",
	}

	p, s, err := openPool()
	if err != nil {
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("Failed to open pool: %v", err)
		return result
	}
	defer s.Close()

	stats, err := p.Stats(context.Background())
	if err != nil {
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("Failed to read pool stats: %v", err)
		return result
	}

	if stats.Total == 0 {
		result.Status = "WARNING"
		result.Message = "No session accounts configured"
		return result
	}
	if stats.Active == 0 {
		result.Status = "WARNING"
		result.Message = fmt.Sprintf("%d accounts configured, none active", stats.Total)
		return result
	}

	result.Message = fmt.Sprintf("%d accounts configured, %d active", stats.Total, stats.Active)
	result.Details = fmt.Sprintf("Invalid: %d, rate limited: %d", stats.Invalid, stats.RateLimited)
	return result
}

func checkUpstream() CheckResult {
	result := CheckResult{
		Name:   "Upstream",
		Status: "OK",
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		cfg = config.Default()
	}

	client := upstream.NewClient(cfg.Upstream, cfg.Session)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, latency, err := client.Reachable(ctx, cfg.Upstream.MessagesURL)
	if err != nil {
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("Upstream unreachable: %v", err)
		return result
	}
	if !ok {
		result.Status = "WARNING"
		result.Message = "Upstream answered with a server error"
		return result
	}

	result.Message = fmt.Sprintf("Upstream reachable in %s", latency.Truncate(time.Millisecond))
	result.Details = cfg.Upstream.MessagesURL
	return result
}

func outputCheckResults(results []CheckResult) error {
	if globalFlags.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
	failed := false
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Status, r.Message)
		if r.Details != "" {
			fmt.Fprintf(w, "\t\t%s\n", r.Details)
		}
		if r.Status == "FAIL" {
			failed = true
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed {
		return fmt.Errorf("one or more health checks failed")
	}
	return nil
}
