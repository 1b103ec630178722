// Package main provides the entry point for the shorts autopilot CLI and HTTP trigger server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Short-form video automation",
	Long: `Autopilot turns trending topics into short vertical videos and posts them to YouTube,
Instagram and TikTok for each configured content niche, then collects their engagement.

Configuration is layered: --config JSON file, then environment variables (.env is loaded),
then built-in defaults. Command-line flags override all of them.`,
	SilenceUsage: true,
}

var (
	configPath  string
	databaseURL string
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
