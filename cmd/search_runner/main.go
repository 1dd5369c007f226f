// Package main provides the entry point for the search runner CLI and
// HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "search_runner",
	Short: "Personal automation runner",
	Long:  "Search Runner executes free-text job payloads inside reattachable tmux sessions, persists their artifacts, and tracks run history with optional recurring schedules.",
}

var (
	flagConfigPath  string
	flagDatabaseURL string
	flagStorage     string
	flagDataDir     string
	flagVerbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.PersistentFlags().StringVar(&flagStorage, "storage", "", "Record store backend: postgres or memory")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Directory for artifacts and payload files")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print detailed output")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
