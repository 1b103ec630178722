package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/shorts-autopilot/internal/config"
	"github.com/jonathan/shorts-autopilot/internal/server"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a Bearer token for the trigger endpoints",
	Long: `Signs a token with TRIGGER_SECRET, valid for TRIGGER_TOKEN_HOURS (default 24).
The subject names the caller in server logs, e.g. "cron" or "ops".`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Caller name embedded in the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	auth, err := config.NewTriggerAuthConfig()
	if err != nil {
		return err
	}
	token, err := server.NewTokenService(auth).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
