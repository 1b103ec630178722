package main

import (
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run niches at their posting slots until interrupted",
	Long: `Wakes every schedule_tick (default 1m), runs each niche whose preferred posting times passed
since the previous tick, and collects analytics every collect_every (default 6h).
Slots missed while the scheduler was not running are not replayed.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
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

	return a.newLoop().Run(ctx)
}
