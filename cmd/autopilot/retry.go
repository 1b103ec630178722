package main

import (
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Re-run a failed generate job",
	Long:  `Starts a fresh run for the niche of a failed job. Jobs in any other state are rejected unchanged.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.withWorkflow(ctx); err != nil {
		return err
	}

	report, runErr := a.workflow.RetryWithReport(ctx, args[0])
	a.printer.PrintRunReport(report, runErr)
	return runErr
}
