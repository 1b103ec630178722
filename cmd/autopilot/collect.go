package main

import (
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Refresh engagement metrics for recently posted videos",
	Long: `Reads views, likes, comments and shares from every platform a video was posted to within
the analytics window (analytics_days, default 7) and stores a snapshot per post.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, _ []string) error {
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

	summary, err := a.collector.CollectAll(ctx)
	if err != nil {
		return err
	}
	a.printer.PrintCollectSummary(summary)
	return nil
}
