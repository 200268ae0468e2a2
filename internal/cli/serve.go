package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/llmrelay/llmrelay/internal/api"
	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/dispatch"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/maintenance"
	"github.com/llmrelay/llmrelay/internal/metrics"
	"github.com/llmrelay/llmrelay/internal/notify"
	"github.com/llmrelay/llmrelay/internal/oauth"
	"github.com/llmrelay/llmrelay/internal/pool"
	"github.com/llmrelay/llmrelay/internal/store"
	"github.com/llmrelay/llmrelay/internal/upstream"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the relay server",
	Long: `Start the relay server in main mode.

This command starts the HTTP server that relays chat-completion
requests upstream, manages the session account pool and runs the
background token refresh and cooldown recovery jobs.

Example:
  llmrelay serve --config config.yaml --db ./data/llmrelay.db

The server listens on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting llmrelay server...")
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	// Load configuration
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Apply CLI flags to config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if globalFlags.DBPath != "" {
		cfg.Store.Path = globalFlags.DBPath
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)))

	// Create SQLite store with WAL mode enabled
	sqliteStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to create SQLite store: %w", err)
	}

	if globalFlags.Verbose {
		log.Printf("Database initialized at: %s (WAL mode enabled)", cfg.Store.Path)
	}

	// Wire the relay components
	m := metrics.NewMetrics("llmrelay")
	notifier := notify.New(cfg.Telegram)
	accountPool := pool.New(sqliteStore, cfg.Session.RateLimitCooldown, pool.WithLogger(logger))
	tokens := oauth.NewLifecycle(cfg.OAuth, sqliteStore, oauth.WithLogger(logger))
	provider := upstream.NewClient(cfg.Upstream, cfg.Session)
	orchestrator := dispatch.New(accountPool, tokens, provider, cfg.Session.MaxAttempts,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(m),
	)

	// Background jobs: token refresh + cooldown recovery
	runner := maintenance.New(cfg.Maintenance, tokens, accountPool,
		maintenance.WithLogger(logger),
		maintenance.WithMetrics(m),
		maintenance.WithNotifier(notifier),
	)
	runner.Start()

	// React to config file edits: log only, a restart picks them up
	loader.SetOnChange(func(updated *config.Config) {
		logger.Info("configuration file changed, restart to apply",
			"path", globalFlags.Config,
		)
	})
	if err := loader.StartWatcher(); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}

	// Create API server
	server := api.NewServer(cfg, sqliteStore, accountPool, tokens, orchestrator,
		api.WithMetrics(m),
		api.WithLogger(logger),
		api.WithNotifier(notifier),
	)

	setupGracefulShutdown(server, runner, loader, serveFlags.Timeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	log.Printf("Starting llmrelay HTTP server on %s", addr)
	log.Printf("Database: %s (WAL mode enabled)", cfg.Store.Path)

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupGracefulShutdown handles graceful shutdown of all components
func setupGracefulShutdown(server *api.Server, runner *maintenance.Runner, loader *config.Loader, timeout time.Duration) {
	sigChan := api.SetupSignalHandler()

	go func() {
		sig := api.WaitForSignal(sigChan)
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		runner.Stop()
		loader.StopWatcher()

		// Shutdown server (closes the store)
		log.Println("Shutting down API server...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
