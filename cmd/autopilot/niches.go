package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/shorts-autopilot/internal/config"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

var (
	nichesFile  string
	nichesPrune bool
)

var nichesCmd = &cobra.Command{
	Use:   "niches",
	Short: "Manage content niches",
}

var nichesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load the YAML niche catalogue into the database",
	Long: `Reads the niche catalogue (--file, niches_file or NICHES_FILE, default niches.yaml), expands
${ENV} references in credential values, validates every niche and upserts it.
With --prune, niches missing from the file are deleted.`,
	RunE: runNichesSync,
}

var nichesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List niches with their enabled platforms and schedule",
	RunE:  runNichesList,
}

func init() {
	nichesSyncCmd.Flags().StringVarP(&nichesFile, "file", "f", "", "Path to the niche catalogue YAML")
	nichesSyncCmd.Flags().BoolVar(&nichesPrune, "prune", false, "Delete niches that are not in the file")
	nichesCmd.AddCommand(nichesSyncCmd, nichesListCmd)
	rootCmd.AddCommand(nichesCmd)
}

// nicheStore is the subset of the record store the niche commands use.
type nicheStore interface {
	UpsertNiche(ctx context.Context, niche *types.ContentNiche) error
	ListNiches(ctx context.Context) ([]types.ContentNiche, error)
	DeleteNiche(ctx context.Context, id string) error
}

// syncResult reports what a catalogue sync changed.
type syncResult struct {
	Upserted []string
	Deleted  []string
}

// syncNiches upserts every catalogue niche and, with prune, deletes stored niches absent from it.
func syncNiches(ctx context.Context, store nicheStore, niches []types.ContentNiche, prune bool) (syncResult, error) {
	var res syncResult
	keep := make(map[string]bool, len(niches))
	for i := range niches {
		if err := store.UpsertNiche(ctx, &niches[i]); err != nil {
			return res, fmt.Errorf("failed to save niche %s: %w", niches[i].ID, err)
		}
		keep[niches[i].ID] = true
		res.Upserted = append(res.Upserted, niches[i].ID)
	}
	if !prune {
		return res, nil
	}

	stored, err := store.ListNiches(ctx)
	if err != nil {
		return res, err
	}
	for _, n := range stored {
		if keep[n.ID] {
			continue
		}
		if err := store.DeleteNiche(ctx, n.ID); err != nil {
			return res, fmt.Errorf("failed to delete niche %s: %w", n.ID, err)
		}
		res.Deleted = append(res.Deleted, n.ID)
	}
	return res, nil
}

func runNichesSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.NichesFile
	if cmd.Flags().Changed("file") {
		path = nichesFile
	}

	niches, err := config.LoadNiches(path)
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

	res, err := syncNiches(ctx, a.store, niches, nichesPrune)
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d niche(s) from %s: %s\n", len(res.Upserted), path, strings.Join(res.Upserted, ", "))
	if len(res.Deleted) > 0 {
		fmt.Printf("Deleted %d niche(s): %s\n", len(res.Deleted), strings.Join(res.Deleted, ", "))
	}
	return nil
}

func runNichesList(cmd *cobra.Command, _ []string) error {
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

	niches, err := a.store.ListNiches(ctx)
	if err != nil {
		return err
	}
	return writeNicheTable(os.Stdout, niches)
}

// writeNicheTable prints one row per niche. Credentials are never printed.
func writeNicheTable(out io.Writer, niches []types.ContentNiche) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPLATFORMS\tSCHEDULE")
	for _, n := range niches {
		enabled := n.Credentials.Enabled()
		names := make([]string, len(enabled))
		for i, p := range enabled {
			names[i] = string(p)
		}
		if len(names) == 0 {
			names = []string{"-"}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Name, strings.Join(names, ","), describeSchedule(n.Schedule))
	}
	return w.Flush()
}

func describeSchedule(s types.PostingSchedule) string {
	times := slices.Clone(s.PreferredTimes)
	if len(times) == 0 && s.TimesPerDay == 0 {
		return "manual"
	}
	desc := fmt.Sprintf("%d/day", s.TimesPerDay)
	if len(times) > 0 {
		slices.Sort(times)
		desc = strings.Join(times, " ")
	}
	return desc + " " + s.Location().String()
}
