package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/shorts-autopilot/internal/scheduler"
)

var generateNiche string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the content workflow once",
	Long: `Runs trending topics -> creative brief -> video synthesis -> storage -> platform fan-out.

With --niche a single niche runs and its full report is printed. Without it every niche runs
in order with a pause between them; a failed niche does not stop the rest.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateNiche, "niche", "n", "", "Niche ID to run (default: all niches)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
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

	if generateNiche != "" {
		niche, err := a.store.GetNiche(ctx, generateNiche)
		if err != nil {
			return err
		}
		if niche == nil {
			return fmt.Errorf("niche %q not found (run \"autopilot niches sync\" first)", generateNiche)
		}
		report, runErr := a.workflow.RunWithReport(ctx, niche)
		if cfg.Verbose && report != nil {
			a.printer.PrintTopics(report.Topics)
			a.printer.PrintBrief(report.Brief)
		}
		a.printer.PrintRunReport(report, runErr)
		return runErr
	}

	niches, err := a.store.ListNiches(ctx)
	if err != nil {
		return err
	}
	if len(niches) == 0 {
		return fmt.Errorf("no niches configured (run \"autopilot niches sync\" first)")
	}

	outcomes := a.driver.RunAll(ctx, niches)
	a.printer.PrintOutcomes(outcomes)
	if failed := countFailed(outcomes); failed == len(niches) {
		return fmt.Errorf("all %d niche runs failed", failed)
	}
	return nil
}

// countFailed counts outcomes that carry an error.
func countFailed(outcomes []scheduler.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
