package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "llmrelay",
	Short: "llmrelay - dual-mode LLM relay with credential failover",
	Long: `llmrelay forwards chat-completion requests to an upstream LLM provider
using either a single OAuth bearer token or a pool of session-cookie
accounts, with transparent failover between the two.

It manages the account pool state machine, retries across accounts on
rate limits and auth failures, and persists all credential state in a
durable store.

Usage:
  llmrelay [command] [flags]

Available Commands:
  serve      Start the relay server (main mode)
  accounts   Manage the session account pool
  token      Manage the OAuth token
  check      Zero-config health check

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --db string       Path to SQLite database (default "./data/llmrelay.db")
  --verbose         Enable verbose output
  --json            Output in JSON format

Use "llmrelay [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("LLMRELAY_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	dbPath := os.Getenv("LLMRELAY_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/llmrelay.db"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", dbPath, "Path to SQLite database")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of llmrelay",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// printVersion prints the version information
func printVersion() {
	info := GetVersionInfo()
	println("llmrelay Version:", info.Version)
	println("Go Version:", info.GoVersion)
	println("OS/Arch:", info.OS+"/"+info.Arch)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
